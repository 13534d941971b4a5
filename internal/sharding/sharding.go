package sharding

import (
	"strconv"

	"github.com/segmentio/kafka-go"
)

// SellerHeader carries the seller id of an order event.
const SellerHeader = "seller-id"

// SellerBalancer pins every event of a seller to the same partition so a
// seller's order events are consumed in order.
type SellerBalancer struct {
	fallback kafka.Balancer
}

func NewSellerBalancer() *SellerBalancer {
	return &SellerBalancer{fallback: &kafka.LeastBytes{}}
}

// PartitionFor maps a seller id onto one of n partitions.
func PartitionFor(sellerID int64, n int) int {
	if sellerID < 0 {
		sellerID = -sellerID
	}
	return int(sellerID % int64(n))
}

func (b *SellerBalancer) Balance(msg kafka.Message, partitions ...int) int {
	for _, h := range msg.Headers {
		if h.Key != SellerHeader {
			continue
		}
		id, err := strconv.ParseInt(string(h.Value), 10, 64)
		if err != nil {
			break
		}
		return partitions[PartitionFor(id, len(partitions))]
	}
	return b.fallback.Balance(msg, partitions...)
}
