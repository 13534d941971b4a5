package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-service/internal/entity"
	"marketplace-service/internal/events"
)

type fakeCache struct {
	deleted []int64
	err     error
}

func (f *fakeCache) Get(context.Context, int64) (*entity.Product, error) { return nil, nil }
func (f *fakeCache) Set(context.Context, *entity.Product) error          { return nil }
func (f *fakeCache) Delete(_ context.Context, ids ...int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, ids...)
	return nil
}

type fakeReader struct {
	msgs chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func message(t *testing.T, typ events.EventType, status entity.OrderStatus, products ...int64) kafka.Message {
	t.Helper()
	order := &entity.SubOrder{ID: 1, SellerID: 2, Status: status}
	for _, id := range products {
		order.Items = append(order.Items, entity.OrderItem{ProductID: id, Quantity: 1})
	}
	msg, err := events.NewMessage(events.FromSubOrder(typ, order, time.Now()))
	require.NoError(t, err)
	return msg
}

func TestHandleMessage_EvictsOnConfirmation(t *testing.T) {
	c := &fakeCache{}
	consumer := NewConsumer(nil, c)

	consumer.HandleMessage(context.Background(), message(t, events.StatusChanged, entity.StatusConfirmed, 4, 5))
	assert.Equal(t, []int64{4, 5}, c.deleted)
}

func TestHandleMessage_IgnoresOtherEvents(t *testing.T) {
	c := &fakeCache{}
	consumer := NewConsumer(nil, c)

	consumer.HandleMessage(context.Background(), message(t, events.StatusChanged, entity.StatusPreparing, 4))
	consumer.HandleMessage(context.Background(), message(t, events.CheckoutCompleted, entity.StatusPending, 4))
	consumer.HandleMessage(context.Background(), kafka.Message{Value: []byte("garbage")})
	assert.Empty(t, c.deleted)
}

func TestHandleMessage_CacheErrorIsSwallowed(t *testing.T) {
	consumer := NewConsumer(nil, &fakeCache{err: errors.New("redis down")})
	consumer.HandleMessage(context.Background(), message(t, events.StatusChanged, entity.StatusConfirmed, 4))
}

func TestRun_StopsOnCancel(t *testing.T) {
	c := &fakeCache{}
	reader := &fakeReader{msgs: make(chan kafka.Message)}
	consumer := NewConsumer(reader, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- consumer.Run(ctx) }()

	reader.msgs <- message(t, events.StatusChanged, entity.StatusConfirmed, 9)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, []int64{9}, c.deleted)
}
