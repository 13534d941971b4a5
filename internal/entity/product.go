package entity

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Product is the catalog view the order pipeline needs.
type Product struct {
	ID                 int64           `json:"id"`
	SellerID           int64           `json:"seller_id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	StockQuantity      int             `json:"stock_quantity"`
	IsActive           bool            `json:"is_active"`
}

// DiscountedPrice is the unit price a cart snapshots.
func (p *Product) DiscountedPrice() decimal.Decimal {
	if p.DiscountPercentage.IsPositive() {
		factor := decimal.NewFromInt(1).Sub(p.DiscountPercentage.Div(hundred))
		return p.Price.Mul(factor).Round(2)
	}
	return p.Price
}

/*
Schema MySQL for products (owned by the catalog, shared with orders):
CREATE TABLE products (
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  seller_id BIGINT NOT NULL,
  name VARCHAR(200) NOT NULL,
  price DECIMAL(10,2) NOT NULL,
  discount_percentage DECIMAL(5,2) NOT NULL DEFAULT 0,
  stock_quantity INT UNSIGNED NOT NULL DEFAULT 0,
  is_active TINYINT(1) NOT NULL DEFAULT 1
);
*/
