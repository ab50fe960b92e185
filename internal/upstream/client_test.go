package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atmin009/tutor-frontend/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, onUnauthorized func(ctx context.Context)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, nil, onUnauthorized)
}

func TestBearerTokenFromContext(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{}})
	}, nil)

	ctx := WithToken(context.Background(), "abc123")
	_, err := client.PaymentStatus(ctx, "ORD-1")
	require.NoError(t, err)
	require.Equal(t, "Bearer abc123", gotAuth)
}

func TestUnauthorizedInvokesCallback(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, func(ctx context.Context) { called = true })

	_, err := client.PaymentStatus(context.Background(), "ORD-1")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.True(t, called)
}

func TestErrorMessageExtraction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "โค้ดส่วนลดหมดอายุ"})
	}, nil)

	_, err := client.ValidateCoupon(context.Background(), "OLD", 1)
	require.Error(t, err)
	require.Equal(t, "โค้ดส่วนลดหมดอายุ", Message(err, "fallback"))

	var ue *Error
	require.ErrorAs(t, err, &ue)
	require.Equal(t, http.StatusBadRequest, ue.StatusCode)
}

func TestErrorMessageFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	_, err := client.PaymentStatus(context.Background(), "ORD-1")
	require.Error(t, err)
	require.Equal(t, genericMessage, Message(err, "unused"))
}

func TestMessageTransportFallback(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond, nil, nil)
	_, err := client.PaymentStatus(context.Background(), "ORD-1")
	require.Error(t, err)
	require.Equal(t, "fallback", Message(err, "fallback"))
}

func TestCreatePaymentDecodesEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/create", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "qrnone", body["paymentType"])
		require.Equal(t, "SALE50", body["couponCode"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"orderId":    "ORD-9",
				"amount":     890.0,
				"qrImageUrl": "https://pay.example.com/qr/ORD-9.png",
			},
			"message": "created",
		})
	}, nil)

	session, err := client.CreatePayment(context.Background(), 3, models.MethodQR, "SALE50")
	require.NoError(t, err)
	require.Equal(t, "ORD-9", session.OrderID)
	require.Equal(t, 890.0, session.Amount)
	require.NotNil(t, session.QRImageURL)
}

func TestPaymentStatusQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "ORD-5", r.URL.Query().Get("orderId"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"orderId": "ORD-5", "status": "paid", "transactionId": "TXN-5"},
		})
	}, nil)

	st, err := client.PaymentStatus(context.Background(), "ORD-5")
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPaid, st.Status)
	require.Equal(t, "TXN-5", st.Transaction())
}

func TestLoginNotEnveloped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token": "backend-token",
			"user":  map[string]interface{}{"id": "u-1", "name": "A"},
		})
	}, nil)

	res, err := client.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, "backend-token", res.Token)
	require.Equal(t, "u-1", res.User.ID)
}
