package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-service/internal/entity"
)

func setupTestRedis(t *testing.T) (*RedisProductCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisProductCache(client, time.Minute), mr
}

func TestGet_CacheMiss(t *testing.T) {
	c, _ := setupTestRedis(t)

	p, err := c.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, p)
}

func TestSetThenGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	in := &entity.Product{ID: 5, SellerID: 2, Name: "Aspirin", Price: decimal.RequireFromString("3.20"), StockQuantity: 8, IsActive: true}
	require.NoError(t, c.Set(ctx, in))
	assert.True(t, mr.Exists("product:5"))
	assert.Equal(t, time.Minute, mr.TTL("product:5"))

	out, err := c.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", out.Name)
	assert.True(t, out.Price.Equal(in.Price))
	assert.Equal(t, 8, out.StockQuantity)
}

func TestGet_InvalidJSON(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("product:1", "{not json"))

	_, err := c.Get(context.Background(), 1)
	assert.ErrorContains(t, err, "unmarshal product failed")
}

func TestDelete(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &entity.Product{ID: 1}))
	require.NoError(t, c.Set(ctx, &entity.Product{ID: 2}))
	require.NoError(t, c.Delete(ctx, 1, 2, 3))

	assert.False(t, mr.Exists("product:1"))
	assert.False(t, mr.Exists("product:2"))
	assert.NoError(t, c.Delete(ctx))
}
