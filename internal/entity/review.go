package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Review struct {
	ID         int64     `json:"id"`
	SubOrderID int64     `json:"sub_order_id"`
	ClientID   int64     `json:"client_id"`
	SellerID   int64     `json:"seller_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return Validationf("rating must be between 1 and 5")
	}
	return nil
}

// SellerRating is the mean of all reviews of a seller.
type SellerRating struct {
	SellerID     int64           `json:"seller_id"`
	Rating       decimal.Decimal `json:"rating"`
	TotalReviews int             `json:"total_reviews"`
}
