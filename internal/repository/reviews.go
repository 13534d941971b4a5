package repository

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace-service/internal/entity"
)

const recomputeSellerRating = `INSERT INTO seller_ratings (seller_id, rating, total_reviews)
	SELECT ?, ROUND(AVG(rating), 2), COUNT(*) FROM reviews WHERE seller_id = ?
	ON DUPLICATE KEY UPDATE rating = VALUES(rating), total_reviews = VALUES(total_reviews)`

func (r *Repository) CreateReview(ctx context.Context, rv *entity.Review) (*entity.SellerRating, error) {
	var rating *entity.SellerRating
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		status, _, _, err := lockSubOrder(ctx, tx, rv.SubOrderID)
		if err != nil {
			return err
		}
		if status != entity.StatusDelivered {
			return fmt.Errorf("%w: sub-order %d is %s, not delivered", entity.ErrInvalidTransition, rv.SubOrderID, status)
		}

		query := `INSERT INTO reviews (sub_order_id, client_id, seller_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, query, rv.SubOrderID, rv.ClientID, rv.SellerID, rv.Rating, rv.Comment, rv.CreatedAt)
		if err != nil {
			return translateError(err, "review")
		}
		if rv.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, recomputeSellerRating, rv.SellerID, rv.SellerID); err != nil {
			return err
		}
		rating, err = sellerRating(ctx, tx, rv.SellerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}

func (r *Repository) HasReview(ctx context.Context, subOrderID int64) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE sub_order_id = ?`, subOrderID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) GetSellerRating(ctx context.Context, sellerID int64) (*entity.SellerRating, error) {
	return sellerRating(ctx, r.db, sellerID)
}

func sellerRating(ctx context.Context, q queryer, sellerID int64) (*entity.SellerRating, error) {
	sr := &entity.SellerRating{SellerID: sellerID}
	err := q.QueryRowContext(ctx, `SELECT rating, total_reviews FROM seller_ratings WHERE seller_id = ?`, sellerID).Scan(&sr.Rating, &sr.TotalReviews)
	if err == sql.ErrNoRows {
		return sr, nil
	}
	if err != nil {
		return nil, err
	}
	return sr, nil
}
