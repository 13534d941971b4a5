package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"marketplace-service/internal/cache"
	"marketplace-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// CachedCatalog reads products through the product cache. Concurrent misses
// for the same product share one database read. Cache failures fall back to
// the database.
type CachedCatalog struct {
	CatalogRepository
	cache cache.ProductCache
	group singleflight.Group
}

func NewCachedCatalog(next CatalogRepository, c cache.ProductCache) *CachedCatalog {
	return &CachedCatalog{CatalogRepository: next, cache: c}
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id int64) (*entity.Product, error) {
	p, err := c.cache.Get(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn().Err(err).Int64("product_id", id).Msg("Product cache read failed")
	}

	v, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		p, err := c.CatalogRepository.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, p); err != nil {
			logger.Warn().Err(err).Int64("product_id", id).Msg("Product cache write failed")
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*entity.Product)
	return &cp, nil
}

func (c *CachedCatalog) GetActiveProduct(ctx context.Context, id int64) (*entity.Product, error) {
	p, err := c.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("product: %w", entity.ErrNotFound)
	}
	return p, nil
}
