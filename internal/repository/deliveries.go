package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketplace-service/internal/entity"
)

func (r *Repository) StartDelivery(ctx context.Context, d *entity.Delivery, at time.Time) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		status, _, _, err := lockSubOrder(ctx, tx, d.SubOrderID)
		if err != nil {
			return err
		}
		if status != entity.StatusReadyForDelivery {
			return fmt.Errorf("%w: sub-order %d is %s, not ready for delivery", entity.ErrInvalidTransition, d.SubOrderID, status)
		}

		var external sql.NullString
		if d.ExternalService != "" {
			external = sql.NullString{String: string(d.ExternalService), Valid: true}
		}
		query := `INSERT INTO deliveries (sub_order_id, delivery_type, status, external_service, tracking_number, estimated_delivery_time,
			delivery_person_name, delivery_person_phone, assigned_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, query, d.SubOrderID, d.Type, d.Status, external, d.TrackingRef, nullTime(d.EstimatedDeliveryAt),
			d.CourierName, d.CourierPhone, nullTime(d.AssignedAt))
		if err != nil {
			return translateError(err, "delivery")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		d.ID = id

		_, err = tx.ExecContext(ctx, `UPDATE sub_orders SET status = ?, updated_at = ? WHERE id = ?`, entity.StatusInDelivery, at, d.SubOrderID)
		return err
	})
}

func (r *Repository) GetDelivery(ctx context.Context, subOrderID int64) (*entity.Delivery, error) {
	query := `SELECT id, sub_order_id, delivery_type, status, external_service, tracking_number, estimated_delivery_time,
		delivery_person_name, delivery_person_phone, assigned_at, picked_up_at, delivered_at
		FROM deliveries WHERE sub_order_id = ?`
	d := &entity.Delivery{}
	var external sql.NullString
	var eta, assigned, picked, delivered sql.NullTime
	err := r.db.QueryRowContext(ctx, query, subOrderID).Scan(&d.ID, &d.SubOrderID, &d.Type, &d.Status, &external, &d.TrackingRef, &eta,
		&d.CourierName, &d.CourierPhone, &assigned, &picked, &delivered)
	if err != nil {
		return nil, translateError(err, "delivery")
	}
	d.ExternalService = entity.ExternalService(external.String)
	d.EstimatedDeliveryAt = timePtr(eta)
	d.AssignedAt = timePtr(assigned)
	d.PickedUpAt = timePtr(picked)
	d.DeliveredAt = timePtr(delivered)
	return d, nil
}
