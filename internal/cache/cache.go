package cache

import (
	"context"
	"errors"

	"marketplace-service/internal/entity"
)

// ProductCache holds catalog products for display and cart lookups. Stock
// deduction never reads through it.
type ProductCache interface {
	Get(ctx context.Context, productID int64) (*entity.Product, error)
	Set(ctx context.Context, product *entity.Product) error
	Delete(ctx context.Context, productIDs ...int64) error
}

var ErrCacheMiss = errors.New("cache miss")
