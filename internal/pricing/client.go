package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"marketplace-service/internal/entity"
)

// DeliveryQuoter prices the delivery of one sub-order.
type DeliveryQuoter interface {
	DeliveryFee(ctx context.Context, sellerID int64, deliveryType entity.DeliveryType, subtotal decimal.Decimal) (decimal.Decimal, error)
}

// Client asks the pricing service for delivery fees. With an empty base URL
// every fee is zero.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type feeResponse struct {
	Fee decimal.Decimal `json:"fee"`
}

func (c *Client) DeliveryFee(ctx context.Context, sellerID int64, deliveryType entity.DeliveryType, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if c.baseURL == "" || deliveryType == entity.DeliveryPickup {
		return decimal.Zero, nil
	}

	q := url.Values{}
	q.Set("seller_id", strconv.FormatInt(sellerID, 10))
	q.Set("type", string(deliveryType))
	q.Set("subtotal", subtotal.StringFixed(2))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/delivery-fee?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("failed to get delivery fee: status %d", resp.StatusCode)
	}

	var body feeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode delivery fee failed: %w", err)
	}
	if body.Fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative delivery fee %s", body.Fee)
	}
	return body.Fee, nil
}
