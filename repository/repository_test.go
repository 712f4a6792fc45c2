package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestProductFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	p, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductFindByIDForUpdate_LocksRow(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "image_url", "price", "stock", "created_at", "updated_at"}).
		AddRow(id, "A", "", "", "10.00", 5, now, now)

	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(rows)

	p, err := repo.FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, "10", p.Price.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductDebitStock(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1 WHERE id = $2 AND stock >= $3`)).
		WithArgs(2, id, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.DebitStock(context.Background(), id, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductDebitStock_Conflict(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1`)).
		WithArgs(2, id, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.DebitStock(context.Background(), id, 2)
	assert.ErrorIs(t, err, repository.ErrStockConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductCreditStock(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock + $1 WHERE id = $2`)).
		WithArgs(3, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.CreditStock(context.Background(), id, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_CommitsAndJoins(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	tx := repository.NewGormTransactor(gormDB)
	products := repository.NewGormProductRepository(gormDB)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock + $1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		if err := products.DebitStock(ctx, id, 1); err != nil {
			return err
		}
		return tx.WithinTransaction(ctx, func(ctx context.Context) error {
			return products.CreditStock(ctx, id, 1)
		})
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	tx := repository.NewGormTransactor(gormDB)
	products := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return products.DebitStock(ctx, uuid.New(), 1)
	})
	assert.ErrorIs(t, err, repository.ErrStockConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderFindPendingByUserID(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	userID := uuid.New()
	orderID := uuid.New()
	productID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE user_id = $1 AND status = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total_price", "created_at", "updated_at"}).
			AddRow(orderID, userID, "PENDING", "20.00", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "order_items" WHERE "order_items"."order_id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "quantity", "unit_price", "line_total"}).
			AddRow(uuid.New(), orderID, productID, "A", 2, "10.00", "20.00"))

	order, err := repo.FindPendingByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderFindPendingByUserID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	order, err := repo.FindPendingByUserID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Nil(t, order)
}

func TestOrderFindPendingByUserIDForUpdate_LocksRow(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	userID := uuid.New()
	orderID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE user_id = \$1 AND status = \$2 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total_price", "created_at", "updated_at"}).
			AddRow(orderID, userID, "PENDING", "0.00", now, now))
	mock.ExpectQuery(`SELECT \* FROM "order_items" WHERE "order_items"."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "quantity", "unit_price", "line_total"}))

	order, err := repo.FindPendingByUserIDForUpdate(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, orderID, order.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func pendingOrderWithLine() *models.Order {
	userID := uuid.New()
	order := models.NewPendingOrder(&userID)
	order.AddItem(&models.Product{ID: uuid.New(), Name: "A", Price: decimal.RequireFromString("10.00")})
	order.RecalculateTotal()
	return order
}

func TestOrderCreate_InsertsOrderAndLines(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)
	order := pendingOrderWithLine()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders" .*ON CONFLICT \("user_id"\) WHERE status = 'PENDING' DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "order_items" WHERE order_id = $1 AND product_id NOT IN ($2)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "order_items" .*ON CONFLICT \("order_id","product_id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), order))
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, order.ID, order.Items[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderCreate_SecondPendingOrderIsDuplicate(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)
	order := pendingOrderWithLine()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders" .*ON CONFLICT .*DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), order)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Equal(t, uuid.Nil, order.ID, "the skipped row is not reported as persisted")
	assert.NoError(t, mock.ExpectationsWereMet(), "no line is written for the skipped order")
}

func TestOrderSave_UpdatesPendingRowAndSyncsLines(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	tx := repository.NewGormTransactor(gormDB)
	repo := repository.NewGormOrderRepository(gormDB)
	order := pendingOrderWithLine()
	order.ID = uuid.New()
	order.Status = models.OrderStatusConfirmed

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET .*"status"=.* WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "order_items" WHERE order_id = $1 AND product_id NOT IN ($2)`)).
		WithArgs(order.ID, order.Items[0].ProductID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "order_items" .*ON CONFLICT \("order_id","product_id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return repo.Save(ctx, order)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderSave_ConfirmedRowIsStale(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	tx := repository.NewGormTransactor(gormDB)
	repo := repository.NewGormOrderRepository(gormDB)
	order := pendingOrderWithLine()
	order.ID = uuid.New()
	order.Status = models.OrderStatusConfirmed

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET .* WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return repo.Save(ctx, order)
	})
	assert.ErrorIs(t, err, repository.ErrStaleOrder)
	assert.NoError(t, mock.ExpectationsWereMet(), "lines are left alone")
}

func TestOrderDelete(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)
	order := &models.Order{ID: uuid.New()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "orders" WHERE id = $1`)).
		WithArgs(order.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Delete(context.Background(), order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSessionStore_PropagatesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	store := repository.NewRedisSessionStore(client, time.Hour)

	cart, err := store.GetCart(context.Background(), "abc")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, redis.Nil))
	assert.Nil(t, cart)
}

func TestRedisSessionStore_CheckoutGuardPropagatesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	store := repository.NewRedisSessionStore(client, time.Hour)

	ok, err := store.AcquireCheckout(context.Background(), "abc", time.Second)
	assert.Error(t, err)
	assert.False(t, ok, "an unreachable store never grants the guard")
}
