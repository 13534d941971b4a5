package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/entity"
	"marketplace-service/internal/events"
)

// UpdateStatus applies a seller's status request. Requesting the current
// status advances to the next one. paid -> confirmed deducts stock and
// pending -> paid marks the payment verified.
func (s *OrderService) UpdateStatus(ctx context.Context, p entity.Principal, subOrderID int64, requested string) (*entity.SubOrder, error) {
	order, err := s.repo.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	if !p.OwnsAsSeller(order) {
		logger.Warn().Int64("sub_order_id", subOrderID).Int64("user_id", p.UserID).Msg("Status change by non-owner")
		return nil, fmt.Errorf("%w: not your order", entity.ErrForbidden)
	}

	target, err := entity.ParseOrderStatus(requested)
	if err != nil {
		return nil, err
	}
	next, err := entity.ResolveTarget(order.Status, target)
	if err != nil {
		logger.Warn().Err(err).Int64("sub_order_id", subOrderID).Msg("Rejected status change")
		return nil, err
	}

	now := s.now()
	switch {
	case order.Status == entity.StatusPaid && next == entity.StatusConfirmed:
		err = s.repo.ConfirmAndDeductStock(ctx, order.ID, now)
		var stockErr *entity.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.metrics.StockRejected()
			logger.Warn().Int64("sub_order_id", subOrderID).Int64("product_id", stockErr.ProductID).
				Int("available", stockErr.Available).Int("requested", stockErr.Requested).Msg("Insufficient stock to confirm")
		}
	case order.Status == entity.StatusPending && next == entity.StatusPaid:
		err = s.repo.VerifyPayment(ctx, order.ID, now)
	default:
		err = s.repo.UpdateStatus(ctx, order.ID, order.Status, next, now)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(order.Status), string(next))
	logger.Info().Int64("sub_order_id", subOrderID).Str("from", string(order.Status)).Str("to", string(next)).Msg("Sub-order status changed")

	updated, err := s.repo.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.FromSubOrder(events.StatusChanged, updated, now))
	return updated, nil
}

type StartDeliveryRequest struct {
	Type                entity.DeliveryType    `json:"delivery_type"`
	ExternalService     entity.ExternalService `json:"external_service"`
	CourierName         string                 `json:"delivery_person_name"`
	CourierPhone        string                 `json:"delivery_person_phone"`
	EstimatedDeliveryAt *time.Time             `json:"estimated_delivery_time"`
}

func (r StartDeliveryRequest) Validate() error {
	if !r.Type.Valid() {
		return entity.Validationf("unknown delivery type %q", r.Type)
	}
	if r.Type == entity.DeliveryExternal && !r.ExternalService.Valid() {
		return entity.Validationf("unknown external delivery service %q", r.ExternalService)
	}
	return nil
}

// StartDelivery hands a ready sub-order to a courier and moves it to
// in_delivery.
func (s *OrderService) StartDelivery(ctx context.Context, p entity.Principal, subOrderID int64, req StartDeliveryRequest) (*entity.Delivery, error) {
	order, err := s.repo.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	if !p.OwnsAsSeller(order) {
		return nil, fmt.Errorf("%w: not your order", entity.ErrForbidden)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if order.Status != entity.StatusReadyForDelivery {
		logger.Warn().Int64("sub_order_id", subOrderID).Str("status", string(order.Status)).Msg("Delivery started too early")
		return nil, fmt.Errorf("%w: sub-order %s is %s, not ready for delivery", entity.ErrInvalidTransition, order.OrderNumber, order.Status)
	}

	now := s.now()
	d := &entity.Delivery{
		SubOrderID:          order.ID,
		Type:                req.Type,
		Status:              entity.DeliveryStatusAssigned,
		TrackingRef:         newNumber("TRK-", 10),
		EstimatedDeliveryAt: req.EstimatedDeliveryAt,
		CourierName:         req.CourierName,
		CourierPhone:        req.CourierPhone,
		AssignedAt:          &now,
	}
	if req.Type == entity.DeliveryExternal {
		d.ExternalService = req.ExternalService
	}

	if err := s.repo.StartDelivery(ctx, d, now); err != nil {
		return nil, err
	}
	s.metrics.Transition(string(entity.StatusReadyForDelivery), string(entity.StatusInDelivery))
	logger.Info().Int64("sub_order_id", subOrderID).Str("tracking", d.TrackingRef).Msg("Delivery started")

	order.Status = entity.StatusInDelivery
	order.UpdatedAt = now
	s.publish(ctx, events.FromSubOrder(events.DeliveryStarted, order, now))
	return d, nil
}

type DeliveryView struct {
	SubOrder *entity.SubOrder `json:"sub_order"`
	Delivery *entity.Delivery `json:"delivery,omitempty"`
}

// DeliveryStatus shows the owning client where the order is. Delivery is nil
// until the seller starts it.
func (s *OrderService) DeliveryStatus(ctx context.Context, p entity.Principal, subOrderID int64) (*DeliveryView, error) {
	order, err := s.repo.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	if !p.OwnsAsClient(order) {
		return nil, fmt.Errorf("%w: not your order", entity.ErrForbidden)
	}

	view := &DeliveryView{SubOrder: order}
	d, err := s.repo.GetDelivery(ctx, subOrderID)
	switch {
	case err == nil:
		view.Delivery = d
	case !errors.Is(err, entity.ErrNotFound):
		return nil, err
	}
	return view, nil
}

// CreateReview lets the client rate a delivered sub-order once and returns
// the seller's new rating.
func (s *OrderService) CreateReview(ctx context.Context, p entity.Principal, subOrderID int64, rating int, comment string) (*entity.Review, *entity.SellerRating, error) {
	order, err := s.repo.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return nil, nil, err
	}
	if !p.OwnsAsClient(order) {
		return nil, nil, fmt.Errorf("%w: not your order", entity.ErrForbidden)
	}

	review := &entity.Review{
		SubOrderID: order.ID,
		ClientID:   order.ClientID,
		SellerID:   order.SellerID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  s.now(),
	}
	if err := review.Validate(); err != nil {
		return nil, nil, err
	}
	if order.Status != entity.StatusDelivered {
		return nil, nil, fmt.Errorf("%w: only delivered orders can be reviewed", entity.ErrInvalidTransition)
	}

	sellerRating, err := s.repo.CreateReview(ctx, review)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Int64("sub_order_id", subOrderID).Int("rating", rating).Str("seller_rating", sellerRating.Rating.String()).Msg("Review created")
	s.publish(ctx, events.FromSubOrder(events.ReviewCreated, order, review.CreatedAt))
	return review, sellerRating, nil
}
