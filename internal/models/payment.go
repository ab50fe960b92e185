package models

// PaymentMethod is the gateway payment channel. "qrnone" is the gateway's
// name for the PromptPay QR flow.
type PaymentMethod string

const (
	MethodQR   PaymentMethod = "qrnone"
	MethodCard PaymentMethod = "card"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == MethodQR || m == MethodCard
}

// Order status values reported by the backend. The set is open: anything
// other than paid/failed is treated as non-terminal.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// PaymentSession binds a course purchase intent to a payment method, amount
// and gateway artifact (QR image or redirect URL). Immutable once created;
// a coupon or method change requires a new session.
type PaymentSession struct {
	OrderID        string   `json:"orderId"`
	Amount         float64  `json:"amount"`
	OriginalAmount *float64 `json:"originalAmount,omitempty"`
	DiscountAmount *float64 `json:"discountAmount,omitempty"`
	CouponID       *int     `json:"couponId,omitempty"`
	TransactionID  string   `json:"transactionId"`
	PaymentURL     *string  `json:"paymentUrl"`
	QRImageURL     *string  `json:"qrImageUrl"`
	CourseTitle    string   `json:"courseTitle"`
}

// PaymentStatus is one observation of an order's state, produced by polling
// or by a gateway webhook. Never cached beyond the observation.
type PaymentStatus struct {
	ID            int     `json:"id"`
	OrderID       string  `json:"orderId"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	PaymentType   *string `json:"paymentType"`
	TransactionID *string `json:"transactionId"`
}

// Transaction returns the transaction id, or empty when absent.
func (s *PaymentStatus) Transaction() string {
	if s.TransactionID == nil {
		return ""
	}
	return *s.TransactionID
}

// Coupon is an applied discount code. Validity is decided by the backend;
// the code is normalized to upper case client-side.
type Coupon struct {
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discountAmount"`
}
