package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketplace-service/internal/entity"
)

const subOrderColumns = `id, master_order_id, client_id, seller_id, order_number, checkout_token, status, payment_status,
	subtotal, tax, delivery_fee, total, delivery_type, delivery_address, delivery_instructions, client_notes,
	payment_deadline, created_at, updated_at, delivered_at`

const masterOrderColumns = `id, order_number, client_id, total_amount, payment_status, created_at`

// recomputeMasterPayment derives the master payment status from its sub-orders.
const recomputeMasterPayment = `UPDATE master_orders m
	SET payment_status = IF(EXISTS(SELECT 1 FROM sub_orders s WHERE s.master_order_id = m.id AND s.payment_status <> 'completed'), 'pending', 'completed')
	WHERE m.id = ?`

func scanSubOrder(s scanner) (*entity.SubOrder, error) {
	o := &entity.SubOrder{}
	var master sql.NullInt64
	var delivered sql.NullTime
	err := s.Scan(&o.ID, &master, &o.ClientID, &o.SellerID, &o.OrderNumber, &o.CheckoutToken, &o.Status, &o.PaymentStatus,
		&o.Subtotal, &o.Tax, &o.DeliveryFee, &o.Total, &o.DeliveryType, &o.DeliveryAddress, &o.DeliveryInstructions, &o.ClientNotes,
		&o.PaymentDeadline, &o.CreatedAt, &o.UpdatedAt, &delivered)
	if err != nil {
		return nil, err
	}
	if master.Valid {
		id := master.Int64
		o.MasterOrderID = &id
	}
	o.DeliveredAt = timePtr(delivered)
	return o, nil
}

func scanMasterOrder(s scanner) (*entity.MasterOrder, error) {
	m := &entity.MasterOrder{}
	if err := s.Scan(&m.ID, &m.Number, &m.ClientID, &m.TotalAmount, &m.PaymentStatus, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repository) CreateCheckout(ctx context.Context, master *entity.MasterOrder, subs []*entity.SubOrder) error {
	// Start a transaction
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	var masterID *int64
	if master != nil {
		masterQuery := `INSERT INTO master_orders (order_number, client_id, total_amount, payment_status, created_at) VALUES (?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, masterQuery, master.Number, master.ClientID, master.TotalAmount, master.PaymentStatus, master.CreatedAt)
		if err != nil {
			tx.Rollback()
			return translateError(err, "master order")
		}
		id, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			return err
		}
		masterID = &id
	}

	subQuery := `INSERT INTO sub_orders (master_order_id, client_id, seller_id, order_number, checkout_token, status, payment_status,
		subtotal, tax, delivery_fee, total, delivery_type, delivery_address, delivery_instructions, client_notes,
		payment_deadline, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, o := range subs {
		var parent sql.NullInt64
		if masterID != nil {
			parent = sql.NullInt64{Int64: *masterID, Valid: true}
		}
		res, err := tx.ExecContext(ctx, subQuery, parent, o.ClientID, o.SellerID, o.OrderNumber, o.CheckoutToken, o.Status, o.PaymentStatus,
			o.Subtotal, o.Tax, o.DeliveryFee, o.Total, o.DeliveryType, o.DeliveryAddress, o.DeliveryInstructions, o.ClientNotes,
			o.PaymentDeadline, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			tx.Rollback()
			return translateError(err, "sub-order")
		}
		subID, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			return err
		}

		// Insert order items with batch
		itemQuery := `INSERT INTO order_items (sub_order_id, product_id, variant_id, quantity, unit_price, total_price) VALUES `
		var values []any
		for _, it := range o.Items {
			itemQuery += "(?, ?, ?, ?, ?, ?),"
			var variant sql.NullInt64
			if it.VariantID != nil {
				variant = sql.NullInt64{Int64: *it.VariantID, Valid: true}
			}
			values = append(values, subID, it.ProductID, variant, it.Quantity, it.UnitPrice, it.TotalPrice)
		}
		itemQuery = strings.TrimSuffix(itemQuery, ",")

		if _, err := tx.ExecContext(ctx, itemQuery, values...); err != nil {
			tx.Rollback()
			return err
		}

		o.ID = subID
		o.MasterOrderID = masterID
		for i := range o.Items {
			o.Items[i].SubOrderID = subID
		}
	}

	// Commit the transaction
	if err := tx.Commit(); err != nil {
		return err
	}

	if master != nil {
		master.ID = *masterID
		master.SubOrders = subs
	}
	return nil
}

func (r *Repository) GetSubOrder(ctx context.Context, id int64) (*entity.SubOrder, error) {
	query := `SELECT ` + subOrderColumns + ` FROM sub_orders WHERE id = ?`
	o, err := scanSubOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "sub-order")
	}
	items, err := r.itemsFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repository) GetMasterOrder(ctx context.Context, id int64) (*entity.MasterOrder, error) {
	query := `SELECT ` + masterOrderColumns + ` FROM master_orders WHERE id = ?`
	m, err := scanMasterOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "master order")
	}

	subs, err := r.listSubOrders(ctx, `WHERE master_order_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(subs))
	for i, o := range subs {
		ids[i] = o.ID
	}
	items, err := r.itemsFor(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, o := range subs {
		o.Items = items[o.ID]
	}
	m.SubOrders = subs
	return m, nil
}

func (r *Repository) ListMasterOrders(ctx context.Context, clientID int64) ([]*entity.MasterOrder, error) {
	query := `SELECT ` + masterOrderColumns + ` FROM master_orders WHERE client_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.MasterOrder
	for rows.Next() {
		m, err := scanMasterOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) ListClientSubOrders(ctx context.Context, clientID int64) ([]*entity.SubOrder, error) {
	return r.listSubOrders(ctx, `WHERE client_id = ? ORDER BY created_at DESC, id DESC`, clientID)
}

func (r *Repository) ListSellerSubOrders(ctx context.Context, sellerID int64, status entity.OrderStatus) ([]*entity.SubOrder, error) {
	if status == "" {
		return r.listSubOrders(ctx, `WHERE seller_id = ? ORDER BY created_at DESC, id DESC`, sellerID)
	}
	return r.listSubOrders(ctx, `WHERE seller_id = ? AND status = ? ORDER BY created_at DESC, id DESC`, sellerID, status)
}

func (r *Repository) CountSellerSubOrders(ctx context.Context, sellerID int64, status entity.OrderStatus) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM sub_orders WHERE seller_id = ? AND status = ?`
	if err := r.db.QueryRowContext(ctx, query, sellerID, status).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repository) listSubOrders(ctx context.Context, where string, args ...any) ([]*entity.SubOrder, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subOrderColumns+` FROM sub_orders `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.SubOrder
	for rows.Next() {
		o, err := scanSubOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// itemsFor loads the items of the given sub-orders keyed by sub-order id.
func (r *Repository) itemsFor(ctx context.Context, subOrderIDs ...int64) (map[int64][]entity.OrderItem, error) {
	out := make(map[int64][]entity.OrderItem)
	if len(subOrderIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(subOrderIDs)), ",")
	args := make([]any, len(subOrderIDs))
	for i, id := range subOrderIDs {
		args[i] = id
	}

	query := `SELECT id, sub_order_id, product_id, variant_id, quantity, unit_price, total_price
		FROM order_items WHERE sub_order_id IN (` + placeholders + `) ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it entity.OrderItem
		var variant sql.NullInt64
		if err := rows.Scan(&it.ID, &it.SubOrderID, &it.ProductID, &variant, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		if variant.Valid {
			v := variant.Int64
			it.VariantID = &v
		}
		out[it.SubOrderID] = append(out[it.SubOrderID], it)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to entity.OrderStatus, at time.Time) error {
	var res sql.Result
	var err error
	if to == entity.StatusDelivered {
		query := `UPDATE sub_orders SET status = ?, updated_at = ?, delivered_at = ? WHERE id = ? AND status = ?`
		res, err = r.db.ExecContext(ctx, query, to, at, at, id, from)
	} else {
		query := `UPDATE sub_orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
		res, err = r.db.ExecContext(ctx, query, to, at, id, from)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.staleStatus(ctx, r.db, id, from)
	}
	return nil
}

// staleStatus explains why a compare-and-set on status matched no row.
func (r *Repository) staleStatus(ctx context.Context, q queryer, id int64, expected entity.OrderStatus) error {
	var current entity.OrderStatus
	err := q.QueryRowContext(ctx, `SELECT status FROM sub_orders WHERE id = ?`, id).Scan(&current)
	if err != nil {
		return translateError(err, "sub-order")
	}
	return entity.Conflictf("sub-order %d is %s, expected %s", id, current, expected)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lockSubOrder(ctx context.Context, tx *sql.Tx, id int64) (entity.OrderStatus, entity.PaymentStatus, sql.NullInt64, error) {
	var status entity.OrderStatus
	var payment entity.PaymentStatus
	var master sql.NullInt64
	query := `SELECT status, payment_status, master_order_id FROM sub_orders WHERE id = ? FOR UPDATE`
	err := tx.QueryRowContext(ctx, query, id).Scan(&status, &payment, &master)
	if err != nil {
		return "", "", master, translateError(err, "sub-order")
	}
	return status, payment, master, nil
}

type stockLine struct {
	productID int64
	quantity  int
}

func (r *Repository) ConfirmAndDeductStock(ctx context.Context, id int64, at time.Time) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		status, _, _, err := lockSubOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if status != entity.StatusPaid {
			return fmt.Errorf("%w: sub-order %d is %s, not paid", entity.ErrInvalidTransition, id, status)
		}

		rows, err := tx.QueryContext(ctx, `SELECT product_id, SUM(quantity) FROM order_items WHERE sub_order_id = ? GROUP BY product_id`, id)
		if err != nil {
			return err
		}
		var lines []stockLine
		for rows.Next() {
			var l stockLine
			if err := rows.Scan(&l.productID, &l.quantity); err != nil {
				rows.Close()
				return err
			}
			lines = append(lines, l)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		// fixed lock order across concurrent confirmations
		sort.Slice(lines, func(i, j int) bool { return lines[i].productID < lines[j].productID })

		for _, l := range lines {
			res, err := tx.ExecContext(ctx, `UPDATE products SET stock_quantity = stock_quantity - ? WHERE id = ? AND stock_quantity >= ?`,
				l.quantity, l.productID, l.quantity)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				var name string
				var available int
				err := tx.QueryRowContext(ctx, `SELECT name, stock_quantity FROM products WHERE id = ?`, l.productID).Scan(&name, &available)
				if err != nil {
					return translateError(err, "product")
				}
				return &entity.InsufficientStockError{ProductID: l.productID, ProductName: name, Available: available, Requested: l.quantity}
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE sub_orders SET status = ?, updated_at = ? WHERE id = ?`, entity.StatusConfirmed, at, id)
		return err
	})
}

func (r *Repository) VerifyPayment(ctx context.Context, id int64, at time.Time) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		status, _, master, err := lockSubOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if status != entity.StatusPending {
			return entity.Conflictf("sub-order %d is %s, expected %s", id, status, entity.StatusPending)
		}

		query := `UPDATE sub_orders SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, entity.StatusPaid, entity.PaymentCompleted, at, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE payments SET is_successful = 1, payment_date = ? WHERE sub_order_id = ?`, at, id); err != nil {
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
