package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"marketplace-service/internal/entity"
)

// ErrDuplicateOrderNumber means a generated order number collided; the caller
// may retry with a fresh number.
var ErrDuplicateOrderNumber = fmt.Errorf("%w: duplicate order number", entity.ErrConflict)

const mysqlDuplicateEntry = 1062

type CatalogRepository interface {
	GetProduct(ctx context.Context, id int64) (*entity.Product, error)
	GetActiveProduct(ctx context.Context, id int64) (*entity.Product, error)
	LowStockProducts(ctx context.Context, sellerID int64, threshold int) ([]entity.Product, error)
}

type OrderRepository interface {
	// CreateCheckout stores the master order (nil for a single seller) and all
	// sub-orders with their items, or nothing.
	CreateCheckout(ctx context.Context, master *entity.MasterOrder, subs []*entity.SubOrder) error
	GetSubOrder(ctx context.Context, id int64) (*entity.SubOrder, error)
	GetMasterOrder(ctx context.Context, id int64) (*entity.MasterOrder, error)
	ListMasterOrders(ctx context.Context, clientID int64) ([]*entity.MasterOrder, error)
	ListClientSubOrders(ctx context.Context, clientID int64) ([]*entity.SubOrder, error)
	// ListSellerSubOrders filters by status unless status is empty.
	ListSellerSubOrders(ctx context.Context, sellerID int64, status entity.OrderStatus) ([]*entity.SubOrder, error)
	CountSellerSubOrders(ctx context.Context, sellerID int64, status entity.OrderStatus) (int, error)
	// UpdateStatus moves a sub-order from one status to another and fails
	// with ErrConflict if it is no longer in from.
	UpdateStatus(ctx context.Context, id int64, from, to entity.OrderStatus, at time.Time) error
	// ConfirmAndDeductStock moves a paid sub-order to confirmed and takes its
	// items out of stock. Either every product is decremented or none is.
	ConfirmAndDeductStock(ctx context.Context, id int64, at time.Time) error
	// VerifyPayment marks a pending sub-order paid after manual verification.
	VerifyPayment(ctx context.Context, id int64, at time.Time) error
}

type PaymentRepository interface {
	// CreatePayment inserts the single payment of a sub-order. A successful
	// payment also settles the sub-order and its master order.
	CreatePayment(ctx context.Context, p *entity.Payment) error
	GetPayment(ctx context.Context, subOrderID int64) (*entity.Payment, error)
}

type DeliveryRepository interface {
	// StartDelivery requires the sub-order to be ready_for_delivery and moves
	// it to in_delivery.
	StartDelivery(ctx context.Context, d *entity.Delivery, at time.Time) error
	GetDelivery(ctx context.Context, subOrderID int64) (*entity.Delivery, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, r *entity.Review) (*entity.SellerRating, error)
	HasReview(ctx context.Context, subOrderID int64) (bool, error)
	GetSellerRating(ctx context.Context, sellerID int64) (*entity.SellerRating, error)
}

// OrderStore is everything the order pipeline persists.
type OrderStore interface {
	OrderRepository
	PaymentRepository
	DeliveryRepository
	ReviewRepository
}

// Repository is the MySQL implementation of CatalogRepository and OrderStore.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// translateError maps driver errors onto entity errors.
func translateError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, entity.ErrNotFound)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		if strings.Contains(me.Message, "order_number") {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("%w: %s already exists", entity.ErrConflict, what)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
