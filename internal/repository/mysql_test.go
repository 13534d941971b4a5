package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-service/internal/entity"
)

func setupMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewRepository(db), mock
}

func lockRows(status, payment string, master any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"status", "payment_status", "master_order_id"}).AddRow(status, payment, master)
}

const lockQuery = "SELECT status, payment_status, master_order_id FROM sub_orders WHERE id = ? FOR UPDATE"

func TestRepository_CreateCheckoutMultiSeller(t *testing.T) {
	repo, mock := setupMock(t)
	ctx := context.Background()

	a := newSubOrder(10, item(1, 2, 10))
	b := newSubOrder(20, item(2, 1, 5))
	master := &entity.MasterOrder{Number: "MO-1", ClientID: 7, TotalAmount: decimal.NewFromInt(25), PaymentStatus: entity.PaymentPending, CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO master_orders")).WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sub_orders")).WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs(int64(21), int64(1), nil, 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sub_orders")).WillReturnResult(sqlmock.NewResult(22, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateCheckout(ctx, master, []*entity.SubOrder{a, b}))
	assert.Equal(t, int64(10), master.ID)
	assert.Equal(t, int64(21), a.ID)
	assert.Equal(t, int64(22), b.ID)
	require.NotNil(t, b.MasterOrderID)
	assert.Equal(t, int64(10), *b.MasterOrderID)
	assert.Equal(t, int64(22), b.Items[0].SubOrderID)
}

func TestRepository_CreateCheckoutDuplicateOrderNumber(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sub_orders")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ORD-1' for key 'sub_orders.uq_sub_orders_order_number'"})
	mock.ExpectRollback()

	err := repo.CreateCheckout(context.Background(), nil, []*entity.SubOrder{newSubOrder(10, item(1, 1, 10))})
	assert.ErrorIs(t, err, ErrDuplicateOrderNumber)
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestRepository_CreateCheckoutDuplicateToken(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sub_orders")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'tok-10' for key 'sub_orders.uq_sub_orders_checkout'"})
	mock.ExpectRollback()

	err := repo.CreateCheckout(context.Background(), nil, []*entity.SubOrder{newSubOrder(10, item(1, 1, 10))})
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.False(t, errors.Is(err, ErrDuplicateOrderNumber))
}

func TestRepository_GetSubOrderNotFound(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sub_orders WHERE id = ?")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetSubOrder(context.Background(), 4)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestRepository_ConfirmAndDeductStock(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(5)).WillReturnRows(lockRows("paid", "completed", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT product_id, SUM(quantity) FROM order_items")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(2, 3).AddRow(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock_quantity = stock_quantity - ? WHERE id = ? AND stock_quantity >= ?")).
		WithArgs(1, int64(1), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock_quantity")).
		WithArgs(3, int64(2), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sub_orders SET status = ?, updated_at = ? WHERE id = ?")).
		WithArgs("confirmed", sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ConfirmAndDeductStock(context.Background(), 5, time.Now()))
}

func TestRepository_ConfirmInsufficientStockRollsBack(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(5)).WillReturnRows(lockRows("paid", "completed", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT product_id, SUM(quantity) FROM order_items")).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(3, 5))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock_quantity")).
		WithArgs(5, int64(3), 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, stock_quantity FROM products WHERE id = ?")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "stock_quantity"}).AddRow("ProductC", 3))
	mock.ExpectRollback()

	err := repo.ConfirmAndDeductStock(context.Background(), 5, time.Now())
	var stockErr *entity.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "ProductC", stockErr.ProductName)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)
}

func TestRepository_ConfirmRequiresPaid(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(5)).WillReturnRows(lockRows("pending", "pending", nil))
	mock.ExpectRollback()

	err := repo.ConfirmAndDeductStock(context.Background(), 5, time.Now())
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
}

func TestRepository_UpdateStatusStale(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sub_orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?")).
		WithArgs("preparing", sqlmock.AnyArg(), int64(5), "confirmed").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM sub_orders WHERE id = ?")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("cancelled"))

	err := repo.UpdateStatus(context.Background(), 5, entity.StatusConfirmed, entity.StatusPreparing, time.Now())
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestRepository_UpdateStatusDeliveredStampsTime(t *testing.T) {
	repo, mock := setupMock(t)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sub_orders SET status = ?, updated_at = ?, delivered_at = ? WHERE id = ? AND status = ?")).
		WithArgs("delivered", at, at, int64(5), "in_delivery").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), 5, entity.StatusInDelivery, entity.StatusDelivered, at))
}

func TestRepository_CreatePaymentDuplicate(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(5)).WillReturnRows(lockRows("paid", "completed", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments WHERE sub_order_id = ?")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.CreatePayment(context.Background(), &entity.Payment{SubOrderID: 5, Method: entity.PaymentMethodCard})
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestRepository_CreateMobilePaymentSettles(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(5)).WillReturnRows(lockRows("pending", "pending", int64(9)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).WillReturnResult(sqlmock.NewResult(30, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sub_orders SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?")).
		WithArgs("paid", "completed", now, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE master_orders m")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := &entity.Payment{SubOrderID: 5, Method: entity.PaymentMethodMobileTransfer, IsSuccessful: true, PaidAt: &now, CreatedAt: now}
	require.NoError(t, repo.CreatePayment(context.Background(), p))
	assert.Equal(t, int64(30), p.ID)
}

func TestRepository_CreateCardPaymentAwaitsVerification(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(5)).WillReturnRows(lockRows("pending", "pending", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sub_orders SET payment_status = ?, updated_at = ? WHERE id = ?")).
		WithArgs("processing", now, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := &entity.Payment{SubOrderID: 5, Method: entity.PaymentMethodCard, CreatedAt: now}
	require.NoError(t, repo.CreatePayment(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_StartDeliveryNotReady(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(5)).WillReturnRows(lockRows("preparing", "completed", nil))
	mock.ExpectRollback()

	err := repo.StartDelivery(context.Background(), &entity.Delivery{SubOrderID: 5}, time.Now())
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
}

func TestRepository_CreateReviewRecomputesRating(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(5)).WillReturnRows(lockRows("delivered", "completed", nil))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seller_ratings")).WithArgs(int64(10), int64(10)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rating, total_reviews FROM seller_ratings WHERE seller_id = ?")).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"rating", "total_reviews"}).AddRow("4.50", 2))
	mock.ExpectCommit()

	rating, err := repo.CreateReview(context.Background(), &entity.Review{SubOrderID: 5, SellerID: 10, Rating: 5})
	require.NoError(t, err)
	assert.True(t, rating.Rating.Equal(decimal.RequireFromString("4.5")))
	assert.Equal(t, 2, rating.TotalReviews)
}
