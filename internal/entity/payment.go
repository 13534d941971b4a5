package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	// PaymentMethodMobileTransfer is the C2P mobile payment, settled synchronously.
	PaymentMethodMobileTransfer PaymentMethod = "c2p"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
)

const DefaultCurrency = "USD"

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMobileTransfer, PaymentMethodPayPal, PaymentMethodCard, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// SettlesImmediately is true for methods acknowledged in the same request.
func (m PaymentMethod) SettlesImmediately() bool {
	return m == PaymentMethodMobileTransfer
}

// PaymentRequest carries the method and its method-specific fields.
type PaymentRequest struct {
	Method          PaymentMethod `json:"payment_method"`
	MobilePhone     string        `json:"c2p_phone"`
	MobileReference string        `json:"c2p_reference"`
}

func (r PaymentRequest) Validate() error {
	if !r.Method.Valid() {
		return Validationf("unknown payment method %q", r.Method)
	}
	if r.Method == PaymentMethodMobileTransfer {
		if r.MobilePhone == "" {
			return Validationf("C2P phone number is required")
		}
		if r.MobileReference == "" {
			return Validationf("C2P reference is required")
		}
	}
	return nil
}

// Payment is the single payment attempt of a sub-order.
type Payment struct {
	ID              int64           `json:"id"`
	SubOrderID      int64           `json:"sub_order_id"`
	Method          PaymentMethod   `json:"payment_method"`
	MobilePhone     string          `json:"c2p_phone,omitempty"`
	MobileReference string          `json:"c2p_reference,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	TransactionRef  string          `json:"transaction_id,omitempty"`
	PaidAt          *time.Time      `json:"payment_date,omitempty"`
	IsSuccessful    bool            `json:"is_successful"`
	CreatedAt       time.Time       `json:"created_at"`
}

// MobileTransactionRef is the deterministic reference of a C2P payment.
func MobileTransactionRef(orderNumber string) string {
	return "C2P-" + orderNumber
}
