package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace-service/internal/entity"
)

func requireClient(p entity.Principal) error {
	if !p.IsClient() {
		return fmt.Errorf("%w: client profile required", entity.ErrForbidden)
	}
	return nil
}

func requireSeller(p entity.Principal) error {
	if !p.IsSeller() {
		return fmt.Errorf("%w: seller profile required", entity.ErrForbidden)
	}
	return nil
}

func (s *OrderService) ListMasterOrders(ctx context.Context, p entity.Principal) ([]*entity.MasterOrder, error) {
	if err := requireClient(p); err != nil {
		return nil, err
	}
	return s.repo.ListMasterOrders(ctx, p.ProfileID)
}

func (s *OrderService) ListClientOrders(ctx context.Context, p entity.Principal) ([]*entity.SubOrder, error) {
	if err := requireClient(p); err != nil {
		return nil, err
	}
	return s.repo.ListClientSubOrders(ctx, p.ProfileID)
}

func (s *OrderService) GetMasterOrder(ctx context.Context, p entity.Principal, id int64) (*entity.MasterOrder, error) {
	if err := requireClient(p); err != nil {
		return nil, err
	}
	m, err := s.repo.GetMasterOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.ClientID != p.ProfileID {
		return nil, fmt.Errorf("%w: not your order", entity.ErrForbidden)
	}
	return m, nil
}

type ClientOrderView struct {
	SubOrder  *entity.SubOrder `json:"sub_order"`
	Payment   *entity.Payment  `json:"payment,omitempty"`
	CanPay    bool             `json:"can_pay"`
	CanReview bool             `json:"can_review"`
}

func (s *OrderService) GetClientOrder(ctx context.Context, p entity.Principal, id int64) (*ClientOrderView, error) {
	order, err := s.repo.GetSubOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.OwnsAsClient(order) {
		return nil, fmt.Errorf("%w: not your order", entity.ErrForbidden)
	}

	view := &ClientOrderView{SubOrder: order, CanPay: order.CanPay()}
	if view.Payment, err = s.optionalPayment(ctx, id); err != nil {
		return nil, err
	}
	if order.Status == entity.StatusDelivered {
		reviewed, err := s.repo.HasReview(ctx, id)
		if err != nil {
			return nil, err
		}
		view.CanReview = !reviewed
	}
	return view, nil
}

// ListSellerOrders filters by status when status is not empty.
func (s *OrderService) ListSellerOrders(ctx context.Context, p entity.Principal, status string) ([]*entity.SubOrder, error) {
	if err := requireSeller(p); err != nil {
		return nil, err
	}
	var filter entity.OrderStatus
	if status != "" {
		st, err := entity.ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		filter = st
	}
	return s.repo.ListSellerSubOrders(ctx, p.ProfileID, filter)
}

type SellerOrderView struct {
	SubOrder        *entity.SubOrder     `json:"sub_order"`
	Payment         *entity.Payment      `json:"payment,omitempty"`
	Delivery        *entity.Delivery     `json:"delivery,omitempty"`
	AllowedStatuses []entity.OrderStatus `json:"allowed_statuses"`
}

func (s *OrderService) GetSellerOrder(ctx context.Context, p entity.Principal, id int64) (*SellerOrderView, error) {
	order, err := s.repo.GetSubOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.OwnsAsSeller(order) {
		return nil, fmt.Errorf("%w: not your order", entity.ErrForbidden)
	}

	view := &SellerOrderView{SubOrder: order, AllowedStatuses: order.Status.AllowedTargets()}
	if view.Payment, err = s.optionalPayment(ctx, id); err != nil {
		return nil, err
	}
	d, err := s.repo.GetDelivery(ctx, id)
	switch {
	case err == nil:
		view.Delivery = d
	case !errors.Is(err, entity.ErrNotFound):
		return nil, err
	}
	return view, nil
}

type Dashboard struct {
	AwaitingConfirmation int                  `json:"awaiting_confirmation"`
	LowStock             []entity.Product     `json:"low_stock_products"`
	Rating               *entity.SellerRating `json:"rating"`
}

// Dashboard summarises what a seller has to act on.
func (s *OrderService) Dashboard(ctx context.Context, p entity.Principal) (*Dashboard, error) {
	if err := requireSeller(p); err != nil {
		return nil, err
	}
	awaiting, err := s.repo.CountSellerSubOrders(ctx, p.ProfileID, entity.StatusPaid)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.catalog.LowStockProducts(ctx, p.ProfileID, s.opts.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	rating, err := s.repo.GetSellerRating(ctx, p.ProfileID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{AwaitingConfirmation: awaiting, LowStock: lowStock, Rating: rating}, nil
}

func (s *OrderService) optionalPayment(ctx context.Context, subOrderID int64) (*entity.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, subOrderID)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, nil
	}
	return payment, err
}
