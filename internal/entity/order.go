package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MasterOrder groups the sub-orders of a checkout that spans several sellers.
// PaymentStatus is derived from the sub-orders and never set directly.
type MasterOrder struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	ClientID      int64           `json:"client_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	SubOrders     []*SubOrder     `json:"sub_orders,omitempty"`
}

// SubOrder is one seller's share of a checkout, the unit of payment and fulfillment.
type SubOrder struct {
	ID                   int64           `json:"id"`
	MasterOrderID        *int64          `json:"master_order_id,omitempty"`
	ClientID             int64           `json:"client_id"`
	SellerID             int64           `json:"seller_id"`
	OrderNumber          string          `json:"order_number"`
	CheckoutToken        string          `json:"-"`
	Status               OrderStatus     `json:"status"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	Tax                  decimal.Decimal `json:"tax"`
	DeliveryFee          decimal.Decimal `json:"delivery_fee"`
	Total                decimal.Decimal `json:"total"`
	DeliveryType         DeliveryType    `json:"delivery_type"`
	DeliveryAddress      string          `json:"delivery_address"`
	DeliveryInstructions string          `json:"delivery_instructions"`
	ClientNotes          string          `json:"client_notes"`
	PaymentDeadline      time.Time       `json:"payment_deadline"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	DeliveredAt          *time.Time      `json:"delivered_at,omitempty"`
	Items                []OrderItem     `json:"items,omitempty"`
}

// CanPay reports whether a payment may still be submitted.
func (o *SubOrder) CanPay() bool {
	return o.Status == StatusPending && o.PaymentStatus == PaymentPending
}

// OrderItem is a line of a sub-order, priced at checkout time.
type OrderItem struct {
	ID         int64           `json:"id"`
	SubOrderID int64           `json:"sub_order_id"`
	ProductID  int64           `json:"product_id"`
	VariantID  *int64          `json:"variant_id,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// DeliverySelection is what the client chooses at checkout.
type DeliverySelection struct {
	Type         DeliveryType `json:"delivery_type"`
	Address      string       `json:"delivery_address"`
	Instructions string       `json:"delivery_instructions"`
	ClientNotes  string       `json:"client_notes"`
}

func (d DeliverySelection) Validate() error {
	if !d.Type.Valid() {
		return Validationf("unknown delivery type %q", d.Type)
	}
	if d.Type != DeliveryPickup && d.Address == "" {
		return Validationf("delivery address is required")
	}
	return nil
}
