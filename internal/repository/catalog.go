package repository

import (
	"context"

	"marketplace-service/internal/entity"
)

const productColumns = `id, seller_id, name, price, discount_percentage, stock_quantity, is_active`

func scanProduct(s scanner) (*entity.Product, error) {
	p := &entity.Product{}
	err := s.Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.DiscountPercentage, &p.StockQuantity, &p.IsActive)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "product")
	}
	return p, nil
}

func (r *Repository) GetActiveProduct(ctx context.Context, id int64) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ? AND is_active = 1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "product")
	}
	return p, nil
}

func (r *Repository) LowStockProducts(ctx context.Context, sellerID int64, threshold int) ([]entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE seller_id = ? AND is_active = 1 AND stock_quantity <= ?
		ORDER BY stock_quantity, id`
	rows, err := r.db.QueryContext(ctx, query, sellerID, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}
