package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketplace-service/internal/entity"
	"marketplace-service/internal/events"
	"marketplace-service/internal/metrics"
	"marketplace-service/internal/pricing"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/session"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const checkoutAttempts = 3

type Options struct {
	PaymentWindow     time.Duration
	LowStockThreshold int
}

// OrderService runs the checkout-to-fulfillment pipeline.
type OrderService struct {
	catalog   repository.CatalogRepository
	repo      repository.OrderStore
	carts     session.CartStore
	guard     session.CheckoutGuard
	quoter    pricing.DeliveryQuoter
	publisher events.Publisher
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(catalog repository.CatalogRepository, repo repository.OrderStore, carts session.CartStore, guard session.CheckoutGuard,
	quoter pricing.DeliveryQuoter, publisher events.Publisher, m *metrics.Metrics, opts Options) *OrderService {
	if opts.PaymentWindow <= 0 {
		opts.PaymentWindow = 24 * time.Hour
	}
	return &OrderService{
		catalog:   catalog,
		repo:      repo,
		carts:     carts,
		guard:     guard,
		quoter:    quoter,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		now:       time.Now,
	}
}

// CheckoutResult holds the master order when the cart spanned several sellers,
// and the created sub-orders in seller order.
type CheckoutResult struct {
	Master    *entity.MasterOrder `json:"master_order,omitempty"`
	SubOrders []*entity.SubOrder  `json:"sub_orders"`
}

// Checkout turns the caller's cart into one sub-order per seller, plus a
// master order when there is more than one seller. The cart is cleared only
// once everything is stored.
func (s *OrderService) Checkout(ctx context.Context, p entity.Principal, sel entity.DeliverySelection) (*CheckoutResult, error) {
	if !p.IsClient() {
		return nil, fmt.Errorf("%w: only clients can check out", entity.ErrForbidden)
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.carts.Load(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, entity.Validationf("cart is empty")
	}

	acquired, err := s.guard.Acquire(ctx, cart.Token)
	if err != nil {
		return nil, err
	}
	if !acquired {
		logger.Warn().Int64("client_id", p.ProfileID).Str("token", cart.Token).Msg("Duplicate checkout")
		return nil, entity.Conflictf("this cart has already been checked out")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := s.guard.Release(context.WithoutCancel(ctx), cart.Token); err != nil {
			logger.Error().Err(err).Str("token", cart.Token).Msg("Error releasing checkout token")
		}
	}()

	subs, err := s.buildSubOrders(ctx, p, cart, sel)
	if err != nil {
		s.metrics.Checkout("failed", 0)
		return nil, err
	}

	var master *entity.MasterOrder
	if len(subs) > 1 {
		master = &entity.MasterOrder{
			ClientID:      p.ProfileID,
			TotalAmount:   decimal.Zero,
			PaymentStatus: entity.PaymentPending,
			CreatedAt:     subs[0].CreatedAt,
		}
		for _, o := range subs {
			master.TotalAmount = master.TotalAmount.Add(o.Total)
		}
	}

	for attempt := 1; ; attempt++ {
		if master != nil {
			master.Number = newNumber("MO-", 8)
		}
		for _, o := range subs {
			o.OrderNumber = newNumber("ORD-", 8)
		}
		err = s.repo.CreateCheckout(ctx, master, subs)
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) || attempt == checkoutAttempts {
			break
		}
		logger.Warn().Int("attempt", attempt).Msg("Order number collision, retrying")
	}
	if err != nil {
		logger.Error().Err(err).Int64("client_id", p.ProfileID).Msg("Error creating orders")
		s.metrics.Checkout("failed", 0)
		return nil, err
	}
	committed = true

	if err := s.carts.Delete(ctx, p.SessionID); err != nil {
		logger.Error().Err(err).Str("session", p.SessionID).Msg("Error clearing cart after checkout")
	}
	s.metrics.Checkout("ok", len(subs))

	evts := make([]events.OrderEvent, 0, len(subs))
	for _, o := range subs {
		logger.Info().Int64("sub_order_id", o.ID).Str("order_number", o.OrderNumber).Int64("seller_id", o.SellerID).Msg("Sub-order created")
		evts = append(evts, events.FromSubOrder(events.CheckoutCompleted, o, o.CreatedAt))
	}
	s.publish(ctx, evts...)

	return &CheckoutResult{Master: master, SubOrders: subs}, nil
}

func (s *OrderService) buildSubOrders(ctx context.Context, p entity.Principal, cart *entity.Cart, sel entity.DeliverySelection) ([]*entity.SubOrder, error) {
	now := s.now()
	groups := cart.GroupBySeller()

	subs := make([]*entity.SubOrder, 0, len(groups))
	for _, sellerID := range cart.SellerIDs() {
		o := &entity.SubOrder{
			ClientID:             p.ProfileID,
			SellerID:             sellerID,
			CheckoutToken:        cart.Token,
			Status:               entity.StatusPending,
			PaymentStatus:        entity.PaymentPending,
			Subtotal:             decimal.Zero,
			Tax:                  decimal.Zero,
			DeliveryType:         sel.Type,
			DeliveryAddress:      sel.Address,
			DeliveryInstructions: sel.Instructions,
			ClientNotes:          sel.ClientNotes,
			PaymentDeadline:      now.Add(s.opts.PaymentWindow),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		for _, line := range groups[sellerID] {
			// only checks that the product still exists; the price is the cart snapshot
			if _, err := s.catalog.GetProduct(ctx, line.ProductID); err != nil {
				if errors.Is(err, entity.ErrNotFound) {
					return nil, entity.Validationf("product %d is no longer available", line.ProductID)
				}
				return nil, err
			}
			o.Items = append(o.Items, entity.OrderItem{
				ProductID:  line.ProductID,
				Quantity:   line.Quantity,
				UnitPrice:  line.UnitPrice,
				TotalPrice: line.Total(),
			})
			o.Subtotal = o.Subtotal.Add(line.Total())
		}

		fee, err := s.quoter.DeliveryFee(ctx, sellerID, sel.Type, o.Subtotal)
		if err != nil {
			logger.Error().Err(err).Int64("seller_id", sellerID).Msg("Error getting delivery fee")
			return nil, err
		}
		o.DeliveryFee = fee
		o.Total = o.Subtotal.Add(o.Tax).Add(o.DeliveryFee)
		subs = append(subs, o)
	}
	return subs, nil
}

// PaymentResult tells the caller whether the payment settled the order or
// still waits for verification.
type PaymentResult struct {
	Payment              *entity.Payment  `json:"payment"`
	SubOrder             *entity.SubOrder `json:"sub_order"`
	AwaitingVerification bool             `json:"awaiting_verification"`
}

// SubmitPayment records the single payment of a sub-order. Mobile transfers
// settle immediately; every other method waits for the seller to verify it.
func (s *OrderService) SubmitPayment(ctx context.Context, p entity.Principal, subOrderID int64, req entity.PaymentRequest) (*PaymentResult, error) {
	order, err := s.repo.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	if !p.OwnsAsClient(order) && !p.OwnsAsSeller(order) {
		logger.Warn().Int64("sub_order_id", subOrderID).Int64("user_id", p.UserID).Msg("Payment by non-owner")
		return nil, fmt.Errorf("%w: not your order", entity.ErrForbidden)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPayment(ctx, subOrderID); err == nil {
		s.metrics.Payment(string(req.Method), "duplicate")
		return nil, entity.Conflictf("sub-order %s already has a payment", order.OrderNumber)
	} else if !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}
	if !order.CanPay() {
		return nil, fmt.Errorf("%w: sub-order %s cannot be paid (%s/%s)", entity.ErrInvalidTransition, order.OrderNumber, order.Status, order.PaymentStatus)
	}

	now := s.now()
	payment := &entity.Payment{
		SubOrderID:      order.ID,
		Method:          req.Method,
		MobilePhone:     req.MobilePhone,
		MobileReference: req.MobileReference,
		Amount:          order.Total,
		Currency:        entity.DefaultCurrency,
		CreatedAt:       now,
	}
	if req.Method.SettlesImmediately() {
		payment.IsSuccessful = true
		payment.PaidAt = &now
		payment.TransactionRef = entity.MobileTransactionRef(order.OrderNumber)
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, entity.ErrConflict) {
			s.metrics.Payment(string(req.Method), "duplicate")
		} else {
			logger.Error().Err(err).Int64("sub_order_id", subOrderID).Msg("Error creating payment")
		}
		return nil, err
	}

	updated, err := s.repo.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return nil, err
	}

	result := &PaymentResult{Payment: payment, SubOrder: updated, AwaitingVerification: !payment.IsSuccessful}
	if payment.IsSuccessful {
		s.metrics.Payment(string(req.Method), "completed")
		s.metrics.Transition(string(entity.StatusPending), string(entity.StatusPaid))
		logger.Info().Int64("sub_order_id", subOrderID).Str("transaction_id", payment.TransactionRef).Msg("Payment completed")
		s.publish(ctx, events.FromSubOrder(events.PaymentCompleted, updated, now))
	} else {
		s.metrics.Payment(string(req.Method), "pending")
		logger.Info().Int64("sub_order_id", subOrderID).Str("method", string(req.Method)).Msg("Payment awaiting verification")
		s.publish(ctx, events.FromSubOrder(events.PaymentSubmitted, updated, now))
	}
	return result, nil
}

// publish sends events after commit. Failures are logged only, the state
// change has already happened.
func (s *OrderService) publish(ctx context.Context, evts ...events.OrderEvent) {
	if s.publisher == nil || len(evts) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, evts...); err != nil {
		logger.Error().Err(err).Int("events", len(evts)).Msg("Error publishing order events")
	}
}

// newNumber returns prefix followed by n uppercase hex characters.
func newNumber(prefix string, n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(hex[:n])
}
