package service

import (
	"context"
	"errors"
	"iter"

	"github.com/shopspring/decimal"

	"marketplace-service/internal/entity"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/session"
)

// CartService edits the session cart of the caller.
type CartService struct {
	catalog repository.CatalogRepository
	carts   session.CartStore
}

func NewCartService(catalog repository.CatalogRepository, carts session.CartStore) *CartService {
	return &CartService{catalog: catalog, carts: carts}
}

// CartItemView is a cart line with the product as the catalog has it now.
type CartItemView struct {
	Line    entity.CartLine `json:"line"`
	Product *entity.Product `json:"product"`
	Total   decimal.Decimal `json:"total"`
}

func (s *CartService) Get(ctx context.Context, sessionID string) (*entity.Cart, error) {
	return s.carts.Load(ctx, sessionID)
}

// Add puts quantity units of a product in the cart. With override the line
// quantity is replaced instead of incremented.
func (s *CartService) Add(ctx context.Context, sessionID string, productID int64, quantity int, override bool) (*entity.Cart, error) {
	product, err := s.catalog.GetActiveProduct(ctx, productID)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, entity.Validationf("product %d is not available", productID)
	}
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := cart.Add(product, quantity, override); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, sessionID, cart); err != nil {
		logger.Error().Err(err).Str("session", sessionID).Msg("Error saving cart")
		return nil, err
	}
	return cart, nil
}

// Update sets the quantity of a line; zero removes it.
func (s *CartService) Update(ctx context.Context, sessionID string, productID int64, quantity int) (*entity.Cart, error) {
	if quantity < 0 {
		return nil, entity.Validationf("quantity must not be negative")
	}
	if quantity == 0 {
		return s.Remove(ctx, sessionID, productID)
	}
	return s.Add(ctx, sessionID, productID, quantity, true)
}

func (s *CartService) Remove(ctx context.Context, sessionID string, productID int64) (*entity.Cart, error) {
	cart, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := cart.Lines[productID]; !ok {
		return cart, nil
	}
	cart.Remove(productID)
	if err := s.carts.Save(ctx, sessionID, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	return s.carts.Delete(ctx, sessionID)
}

// Items yields the lines of cart in product order, resolving each product
// against the catalog on every traversal. Lines whose product disappeared are
// skipped.
func (s *CartService) Items(ctx context.Context, cart *entity.Cart) iter.Seq[CartItemView] {
	return func(yield func(CartItemView) bool) {
		for _, line := range cart.SortedLines() {
			product, err := s.catalog.GetProduct(ctx, line.ProductID)
			if err != nil {
				logger.Warn().Err(err).Int64("product_id", line.ProductID).Msg("Skipping cart line")
				continue
			}
			if !yield(CartItemView{Line: line, Product: product, Total: line.Total()}) {
				return
			}
		}
	}
}
