package checkout

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/internal/auth"
	"github.com/atmin009/tutor-frontend/internal/models"
	"github.com/atmin009/tutor-frontend/internal/upstream"
	"github.com/atmin009/tutor-frontend/pkg/response"
)

// contextUserID mirrors the middleware gin-context key; redeclared to avoid
// importing the middleware package from a handler it wraps.
const contextUserID = "user_id"

// Handler exposes the checkout flow over HTTP: lifecycle endpoints, the
// WebSocket event stream, the gateway webhook, and the browser landing pages
// the payment gateway redirects back to.
type Handler struct {
	registry    *Registry
	settler     Settler
	events      *OrderEvents
	frontendURL string
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewHandler creates a checkout handler. frontendURL is the SPA base used
// for browser redirects.
func NewHandler(registry *Registry, settler Settler, events *OrderEvents, frontendURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:    registry,
		settler:     settler,
		events:      events,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) courseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("courseId"))
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid course id")
		return 0, false
	}
	return id, true
}

// Start handles POST /checkout/:courseId/start.
func (h *Handler) Start(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	token, _ := upstream.TokenFrom(c.Request.Context())
	ck, err := h.registry.Start(c.Request.Context(), c.GetString(contextUserID), courseID, token)
	if err != nil {
		response.BadRequest(c, upstream.Message(err, "Failed to create payment session"))
		return
	}
	response.OK(c, ck.Snapshot(), "checkout started")
}

// Get handles GET /checkout/:courseId.
func (h *Handler) Get(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	ck, ok := h.registry.Get(c.GetString(contextUserID), courseID)
	if !ok {
		response.NotFound(c, "no active checkout for this course")
		return
	}
	response.OK(c, ck.Snapshot(), "")
}

// SelectMethodRequest is the body for POST /checkout/:courseId/method.
type SelectMethodRequest struct {
	Method models.PaymentMethod `json:"method" binding:"required"`
}

// SelectMethod handles POST /checkout/:courseId/method.
func (h *Handler) SelectMethod(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	var req SelectMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Method.Valid() {
		response.BadRequest(c, "invalid payment method")
		return
	}
	ck, ok := h.registry.Get(c.GetString(contextUserID), courseID)
	if !ok {
		response.NotFound(c, "no active checkout for this course")
		return
	}
	if err := ck.SelectMethod(c.Request.Context(), req.Method); err != nil {
		response.BadRequest(c, upstream.Message(err, "Failed to create card payment session"))
		return
	}
	response.OK(c, ck.Snapshot(), "")
}

// CouponRequest is the body for POST /checkout/:courseId/coupon.
type CouponRequest struct {
	Code string `json:"code"`
}

// ApplyCoupon handles POST /checkout/:courseId/coupon.
func (h *Handler) ApplyCoupon(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ck, ok := h.registry.Get(c.GetString(contextUserID), courseID)
	if !ok {
		response.NotFound(c, "no active checkout for this course")
		return
	}
	if _, err := ck.ApplyCoupon(c.Request.Context(), req.Code); err != nil {
		if err == ErrEmptyCoupon {
			response.BadRequest(c, "กรุณาใส่โค้ดส่วนลด")
			return
		}
		response.BadRequest(c, upstream.Message(err, "โค้ดส่วนลดไม่ถูกต้อง"))
		return
	}
	response.OK(c, ck.Snapshot(), "coupon applied")
}

// RemoveCoupon handles DELETE /checkout/:courseId/coupon.
func (h *Handler) RemoveCoupon(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	ck, ok := h.registry.Get(c.GetString(contextUserID), courseID)
	if !ok {
		response.NotFound(c, "no active checkout for this course")
		return
	}
	if err := ck.RemoveCoupon(c.Request.Context()); err != nil {
		response.BadRequest(c, upstream.Message(err, "Failed to create payment session"))
		return
	}
	response.OK(c, ck.Snapshot(), "coupon removed")
}

// Teardown handles DELETE /checkout/:courseId.
func (h *Handler) Teardown(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	h.registry.Teardown(c.GetString(contextUserID), courseID)
	response.NoContent(c)
}

// Stream handles GET /checkout/:courseId/ws: upgrades to WebSocket and
// forwards checkout events until the client disconnects or the checkout is
// torn down.
func (h *Handler) Stream(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	ck, ok := h.registry.Get(c.GetString(contextUserID), courseID)
	if !ok {
		response.NotFound(c, "no active checkout for this course")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := ck.Subscribe()
	defer cancel()

	snap := ck.Snapshot()
	if err := conn.WriteJSON(Event{State: snap.State, Status: snap.Status, RedirectTo: snap.RedirectTo}); err != nil {
		return
	}

	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// ConfirmRequest is the body for POST /payments/confirm.
type ConfirmRequest struct {
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
}

// Confirm handles POST /payments/confirm by delegating to the settler, so
// manual confirms share the same dedupe as the poller and landing paths.
func (h *Handler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	token, _ := upstream.TokenFrom(c.Request.Context())
	order := SettleOrder{OrderID: req.OrderID, TransactionID: req.TransactionID, Token: token}
	if err := h.settler.Settle(c.Request.Context(), order); err != nil {
		if err == ErrNothingToSettle {
			response.BadRequest(c, "orderId or transactionId required")
			return
		}
		// Best effort: confirmation may already have happened via the
		// upstream webhook.
		h.logger.Warn("manual settle failed", zap.Error(err))
	}
	response.OK(c, nil, "payment confirmation scheduled")
}

// WebhookPayload is the body the payment gateway posts on order updates.
type WebhookPayload struct {
	OrderID       string  `json:"orderId" binding:"required"`
	Status        string  `json:"status" binding:"required"`
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	PaymentType   string  `json:"paymentType"`
}

// Webhook handles POST /webhooks/payment: publishes the order event so any
// checkout watching the order reacts without waiting for its next poll tick.
func (h *Handler) Webhook(c *gin.Context) {
	var payload WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid payload: "+err.Error())
		return
	}
	ev := OrderEvent{
		OrderID:       payload.OrderID,
		Status:        payload.Status,
		TransactionID: payload.TransactionID,
		Amount:        payload.Amount,
		PaymentType:   payload.PaymentType,
	}
	if err := h.events.Publish(ev); err != nil {
		h.logger.Error("publish order event failed", zap.Error(err), zap.String("order_id", payload.OrderID))
		response.Internal(c, "failed to process event")
		return
	}
	h.logger.Info("order event received",
		zap.String("order_id", payload.OrderID), zap.String("status", payload.Status))
	response.OK(c, nil, "accepted")
}

// PaymentSuccess handles the gateway-return landing (GET /payment/success
// and course-learning URLs carrying gateway query params). One best-effort
// settle when a transaction id is present, then a delayed redirect to the
// learning page, or the dashboard when no course id resolves.
func (h *Handler) PaymentSuccess(c *gin.Context) {
	if !h.requireBrowserSession(c) {
		return
	}

	courseID := h.resolveCourseID(c)
	txn := c.Query("idpay")
	if txn != "" {
		token, _ := upstream.TokenFrom(c.Request.Context())
		order := SettleOrder{TransactionID: txn, CourseID: courseID, Token: token}
		if err := h.settler.Settle(c.Request.Context(), order); err != nil {
			// Swallowed: the payment may already be confirmed by the
			// upstream webhook.
			h.logger.Warn("deep-link settle failed", zap.Error(err), zap.String("transaction_id", txn))
		}
	} else {
		h.logger.Info("gateway return without transaction id, skipping confirmation")
	}

	target := h.frontendURL + "/learning"
	if courseID > 0 {
		target = fmt.Sprintf("%s/learning/%d", h.frontendURL, courseID)
	}
	h.renderLanding(c, 2, "Payment Successful", "Redirecting you to your course...", target)
}

// PaymentFail handles GET /payment/fail.
func (h *Handler) PaymentFail(c *gin.Context) {
	if !h.requireBrowserSession(c) {
		return
	}
	msg := c.Query("message")
	if msg == "" {
		msg = "Payment failed or was cancelled"
	}
	h.renderLanding(c, 5, "Payment Failed", msg, h.frontendURL+"/")
}

// PaymentCancel handles GET /payment/cancel.
func (h *Handler) PaymentCancel(c *gin.Context) {
	if !h.requireBrowserSession(c) {
		return
	}
	h.renderLanding(c, 5, "Payment Cancelled", "Your payment was cancelled.", h.frontendURL+"/")
}

// LearningEntry handles browser navigations to /learning and
// /learning/:courseId. The gateway redirects back to the course-learning URL
// with its own query params; their presence routes to the confirmation
// landing instead of the SPA.
func (h *Handler) LearningEntry(c *gin.Context) {
	if c.Query("idpay") != "" || c.Query("paymentMethod") != "" {
		h.PaymentSuccess(c)
		return
	}
	c.Redirect(http.StatusFound, h.frontendURL+c.Request.URL.RequestURI())
}

// requireBrowserSession redirects anonymous browsers to the SPA login page,
// preserving the full landing URL so confirmation can resume after login.
func (h *Handler) requireBrowserSession(c *gin.Context) bool {
	if _, ok := auth.SessionFrom(c.Request.Context()); ok {
		return true
	}
	redirect := h.frontendURL + "/auth/login?redirect=" + url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusFound, redirect)
	return false
}

// resolveCourseID extracts the course id from the courseId query param or,
// failing that, from a /learning/:courseId path segment. Returns 0 when
// neither resolves.
func (h *Handler) resolveCourseID(c *gin.Context) int {
	if id, err := strconv.Atoi(c.Query("courseId")); err == nil && id > 0 {
		return id
	}
	parts := strings.Split(c.Request.URL.Path, "/")
	for i, part := range parts {
		if part == "learning" && i+1 < len(parts) {
			if id, err := strconv.Atoi(parts[i+1]); err == nil && id > 0 {
				return id
			}
		}
	}
	return 0
}

const landingPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="%d;url=%s">
<title>%s</title>
</head>
<body>
<h1>%s</h1>
<p>%s</p>
<p><a href="%s">Continue</a></p>
</body>
</html>`

func (h *Handler) renderLanding(c *gin.Context, delaySeconds int, title, message, target string) {
	safeTarget := html.EscapeString(target)
	page := fmt.Sprintf(landingPage,
		delaySeconds, safeTarget,
		html.EscapeString(title), html.EscapeString(title),
		html.EscapeString(message), safeTarget,
	)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
