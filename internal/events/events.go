package events

import (
	"context"
	"time"

	"marketplace-service/internal/entity"
)

type EventType string

const (
	CheckoutCompleted EventType = "checkout_completed"
	PaymentSubmitted  EventType = "payment_submitted"
	PaymentCompleted  EventType = "payment_completed"
	StatusChanged     EventType = "status_changed"
	DeliveryStarted   EventType = "delivery_started"
	ReviewCreated     EventType = "review_created"
)

// OrderEvent is published after the change it describes has been committed.
type OrderEvent struct {
	Type          EventType            `json:"type"`
	SubOrderID    int64                `json:"sub_order_id"`
	OrderNumber   string               `json:"order_number"`
	MasterOrderID *int64               `json:"master_order_id,omitempty"`
	ClientID      int64                `json:"client_id"`
	SellerID      int64                `json:"seller_id"`
	Status        entity.OrderStatus   `json:"status"`
	PaymentStatus entity.PaymentStatus `json:"payment_status"`
	Items         []Item               `json:"items,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

type Item struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// FromSubOrder fills the event from the sub-order as it is now.
func FromSubOrder(t EventType, o *entity.SubOrder, at time.Time) OrderEvent {
	evt := OrderEvent{
		Type:          t,
		SubOrderID:    o.ID,
		OrderNumber:   o.OrderNumber,
		MasterOrderID: o.MasterOrderID,
		ClientID:      o.ClientID,
		SellerID:      o.SellerID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		OccurredAt:    at,
	}
	for _, it := range o.Items {
		evt.Items = append(evt.Items, Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return evt
}

type Publisher interface {
	Publish(ctx context.Context, evts ...OrderEvent) error
}
