package entity

import "fmt"

type OrderStatus string

const (
	StatusPending          OrderStatus = "pending"
	StatusPaid             OrderStatus = "paid"
	StatusConfirmed        OrderStatus = "confirmed"
	StatusPreparing        OrderStatus = "preparing"
	StatusReadyForDelivery OrderStatus = "ready_for_delivery"
	StatusInDelivery       OrderStatus = "in_delivery"
	StatusDelivered        OrderStatus = "delivered"
	StatusCancelled        OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// FulfillmentChain is the forward order of sub-order statuses.
var FulfillmentChain = []OrderStatus{
	StatusPending,
	StatusPaid,
	StatusConfirmed,
	StatusPreparing,
	StatusReadyForDelivery,
	StatusInDelivery,
	StatusDelivered,
}

type transitionRule struct {
	next    OrderStatus
	allowed []OrderStatus
}

// fulfillmentFlow lists, per status, the implicit next status and every status
// a seller may set explicitly. pending cannot skip paid and paid cannot skip
// confirmed, so stock is always deducted before fulfillment starts.
var fulfillmentFlow = map[OrderStatus]transitionRule{
	StatusPending: {
		next:    StatusPaid,
		allowed: []OrderStatus{StatusPaid, StatusCancelled},
	},
	StatusPaid: {
		next:    StatusConfirmed,
		allowed: []OrderStatus{StatusConfirmed, StatusCancelled},
	},
	StatusConfirmed: {
		next:    StatusPreparing,
		allowed: []OrderStatus{StatusPreparing, StatusReadyForDelivery, StatusInDelivery, StatusDelivered, StatusCancelled},
	},
	StatusPreparing: {
		next:    StatusReadyForDelivery,
		allowed: []OrderStatus{StatusReadyForDelivery, StatusInDelivery, StatusDelivered, StatusCancelled},
	},
	StatusReadyForDelivery: {
		next:    StatusInDelivery,
		allowed: []OrderStatus{StatusInDelivery, StatusDelivered, StatusCancelled},
	},
	StatusInDelivery: {
		next:    StatusDelivered,
		allowed: []OrderStatus{StatusDelivered, StatusCancelled},
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// ParseOrderStatus rejects anything outside the known statuses.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := fulfillmentFlow[st]; !ok {
		return "", Validationf("unknown order status %q", s)
	}
	return st, nil
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Next is the implicit successor in the forward chain.
func (s OrderStatus) Next() (OrderStatus, bool) {
	rule, ok := fulfillmentFlow[s]
	if !ok || rule.next == "" {
		return "", false
	}
	return rule.next, true
}

// AllowedTargets is what a seller may request from s.
func (s OrderStatus) AllowedTargets() []OrderStatus {
	rule := fulfillmentFlow[s]
	out := make([]OrderStatus, len(rule.allowed))
	copy(out, rule.allowed)
	return out
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, a := range fulfillmentFlow[s].allowed {
		if a == target {
			return true
		}
	}
	return false
}

// Rank is the position in FulfillmentChain, or -1 for cancelled.
func (s OrderStatus) Rank() int {
	for i, st := range FulfillmentChain {
		if st == s {
			return i
		}
	}
	return -1
}

// ResolveTarget applies the seller update rule: requesting the current status
// advances to the next one, anything else must be an allowed transition.
func ResolveTarget(current, requested OrderStatus) (OrderStatus, error) {
	if current.IsTerminal() {
		return "", fmt.Errorf("%w (%s)", ErrFinalState, current)
	}
	if requested == current {
		next, ok := current.Next()
		if !ok {
			return "", fmt.Errorf("%w (%s)", ErrFinalState, current)
		}
		return next, nil
	}
	if !current.CanTransitionTo(requested) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, requested)
	}
	return requested, nil
}
