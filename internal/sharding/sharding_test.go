package sharding

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func sellerMessage(id string) kafka.Message {
	return kafka.Message{Headers: []kafka.Header{{Key: SellerHeader, Value: []byte(id)}}}
}

func TestSellerBalancer_SameSellerSamePartition(t *testing.T) {
	b := NewSellerBalancer()
	partitions := []int{0, 1, 2}

	assert.Equal(t, 1, b.Balance(sellerMessage("7"), partitions...))
	assert.Equal(t, 1, b.Balance(sellerMessage("7"), partitions...))
	assert.Equal(t, 0, b.Balance(sellerMessage("9"), partitions...))
}

func TestSellerBalancer_UsesPartitionIDs(t *testing.T) {
	b := NewSellerBalancer()
	assert.Equal(t, 12, b.Balance(sellerMessage("5"), 10, 11, 12))
}

func TestSellerBalancer_FallbackWithoutHeader(t *testing.T) {
	b := NewSellerBalancer()
	got := b.Balance(kafka.Message{Value: []byte("x")}, 0, 1)
	assert.Contains(t, []int{0, 1}, got)

	got = b.Balance(sellerMessage("abc"), 0, 1)
	assert.Contains(t, []int{0, 1}, got)
}

func TestPartitionFor(t *testing.T) {
	assert.Equal(t, 0, PartitionFor(6, 3))
	assert.Equal(t, 2, PartitionFor(-5, 3))
}
