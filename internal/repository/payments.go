package repository

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace-service/internal/entity"
)

func (r *Repository) CreatePayment(ctx context.Context, p *entity.Payment) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		status, payment, master, err := lockSubOrder(ctx, tx, p.SubOrderID)
		if err != nil {
			return err
		}

		var exists int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE sub_order_id = ?`, p.SubOrderID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return entity.Conflictf("sub-order %d already has a payment", p.SubOrderID)
		}
		if status != entity.StatusPending || payment != entity.PaymentPending {
			return fmt.Errorf("%w: sub-order %d cannot be paid (%s/%s)", entity.ErrInvalidTransition, p.SubOrderID, status, payment)
		}

		query := `INSERT INTO payments (sub_order_id, payment_method, c2p_phone, c2p_reference, amount, currency, transaction_id, payment_date, is_successful, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, query, p.SubOrderID, p.Method, p.MobilePhone, p.MobileReference, p.Amount, p.Currency,
			p.TransactionRef, nullTime(p.PaidAt), p.IsSuccessful, p.CreatedAt)
		if err != nil {
			return translateError(err, "payment")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = id

		if !p.IsSuccessful {
			_, err := tx.ExecContext(ctx, `UPDATE sub_orders SET payment_status = ?, updated_at = ? WHERE id = ?`,
				entity.PaymentProcessing, p.CreatedAt, p.SubOrderID)
			return err
		}
		settle := `UPDATE sub_orders SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, settle, entity.StatusPaid, entity.PaymentCompleted, p.CreatedAt, p.SubOrderID); err != nil {
			return err
		}
		if master.Valid {
			if _, err := tx.ExecContext(ctx, recomputeMasterPayment, master.Int64); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetPayment(ctx context.Context, subOrderID int64) (*entity.Payment, error) {
	query := `SELECT id, sub_order_id, payment_method, c2p_phone, c2p_reference, amount, currency, transaction_id, payment_date, is_successful, created_at
		FROM payments WHERE sub_order_id = ?`
	p := &entity.Payment{}
	var paidAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, subOrderID).Scan(&p.ID, &p.SubOrderID, &p.Method, &p.MobilePhone, &p.MobileReference,
		&p.Amount, &p.Currency, &p.TransactionRef, &paidAt, &p.IsSuccessful, &p.CreatedAt)
	if err != nil {
		return nil, translateError(err, "payment")
	}
	p.PaidAt = timePtr(paidAt)
	return p, nil
}
