package upstream

import (
	"context"
	"net/http"
	"net/url"

	"github.com/atmin009/tutor-frontend/internal/models"
)

type createPaymentRequest struct {
	CourseID    int                  `json:"courseId"`
	PaymentType models.PaymentMethod `json:"paymentType"`
	CouponCode  string               `json:"couponCode,omitempty"`
}

// CreatePayment creates a payment session for the course with the given
// method and optional coupon code.
func (c *Client) CreatePayment(ctx context.Context, courseID int, method models.PaymentMethod, couponCode string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	req := createPaymentRequest{CourseID: courseID, PaymentType: method, CouponCode: couponCode}
	if err := c.postData(ctx, "/payments/create", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// PaymentStatus fetches the current status of an order.
func (c *Client) PaymentStatus(ctx context.Context, orderID string) (*models.PaymentStatus, error) {
	var status models.PaymentStatus
	q := url.Values{"orderId": {orderID}}
	if err := c.getData(ctx, "/payments/status", q, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

type confirmPaymentRequest struct {
	OrderID       string `json:"orderId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

// ConfirmPayment asks the backend to finalize enrollment for an order. The
// call is idempotent server-side; the response body is not consumed beyond
// logging.
func (c *Client) ConfirmPayment(ctx context.Context, orderID, transactionID string) error {
	req := confirmPaymentRequest{OrderID: orderID, TransactionID: transactionID}
	return c.do(ctx, http.MethodPost, "/payments/confirm", nil, req, nil)
}

type validateCouponRequest struct {
	Code     string `json:"code"`
	CourseID int    `json:"courseId"`
}

type validateCouponData struct {
	DiscountAmount float64 `json:"discountAmount"`
}

// ValidateCoupon checks a coupon code against a course and returns the
// discount amount.
func (c *Client) ValidateCoupon(ctx context.Context, code string, courseID int) (float64, error) {
	var data validateCouponData
	req := validateCouponRequest{Code: code, CourseID: courseID}
	if err := c.postData(ctx, "/coupons/validate", req, &data); err != nil {
		return 0, err
	}
	return data.DiscountAmount, nil
}
