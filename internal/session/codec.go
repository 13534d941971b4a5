package session

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"marketplace-service/internal/entity"
)

// cartSchemaVersion is bumped whenever the blob layout changes. Blobs with
// any other version are dropped on load.
const cartSchemaVersion = 1

type cartBlob struct {
	Version int                 `json:"version"`
	Token   string              `json:"token"`
	Lines   map[string]lineBlob `json:"lines"`
}

type lineBlob struct {
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	SellerID int64           `json:"seller_id"`
}

func encodeCart(cart *entity.Cart) ([]byte, error) {
	blob := cartBlob{
		Version: cartSchemaVersion,
		Token:   cart.Token,
		Lines:   make(map[string]lineBlob, len(cart.Lines)),
	}
	for id, l := range cart.Lines {
		blob.Lines[strconv.FormatInt(id, 10)] = lineBlob{
			Quantity: l.Quantity,
			Price:    l.UnitPrice,
			SellerID: l.SellerID,
		}
	}
	return json.Marshal(blob)
}

func decodeCart(data []byte) (*entity.Cart, error) {
	var blob cartBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if blob.Version != cartSchemaVersion {
		return nil, fmt.Errorf("unsupported cart version %d", blob.Version)
	}

	cart := entity.NewCart()
	if blob.Token != "" {
		cart.Token = blob.Token
	}
	for key, l := range blob.Lines {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad product key %q: %w", key, err)
		}
		if l.Quantity < 1 {
			continue
		}
		cart.Lines[id] = entity.CartLine{
			ProductID: id,
			SellerID:  l.SellerID,
			Quantity:  l.Quantity,
			UnitPrice: l.Price,
		}
	}
	return cart, nil
}
