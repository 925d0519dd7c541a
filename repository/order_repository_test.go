package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	assert.NoError(t, err)
	return gormDB, mock
}

func TestCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	order := &models.Order{
		ID:                uuid.New(),
		OrderNumber:       "ORD-1700000000-abcd1234",
		UserID:            "user-1",
		Subtotal:          10000,
		Tax:               800,
		Shipping:          0,
		Total:             10800,
		Currency:          "usd",
		Status:            models.OrderStatusPlaced,
		DeliveryOption:    "standard",
		PaymentKind:       "card",
		PaymentDescriptor: "card ****4242",
		AddressJSON:       `{"name":"Ada Lovelace"}`,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(order.ID))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), order)
	assert.NoError(t, err)
}

func TestFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	o, err := repo.FindByID(context.Background(), id)
	assert.Error(t, err)
	assert.Nil(t, o)
}

func TestFindByUserID_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	orderRows := sqlmock.NewRows([]string{
		"id", "order_number", "user_id", "subtotal", "tax", "shipping", "total",
		"currency", "status", "delivery_option", "payment_kind", "payment_descriptor",
		"created_at", "updated_at",
	}).AddRow(
		id, "ORD-1700000000-abcd1234", "user-1", 10000, 800, 0, 10800,
		"usd", models.OrderStatusPlaced, "standard", "card", "card ****4242",
		now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(orderRows)

	itemRows := sqlmock.NewRows([]string{"id", "order_id", "product_id", "name", "unit_price", "quantity"}).
		AddRow(uuid.New(), id, "p1", "Keyboard", 2500, 2)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "order_items"`)).
		WillReturnRows(itemRows)

	orders, total, err := repo.FindByUserID(context.Background(), "user-1", 1, 10)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, orders, 1)
	assert.Equal(t, "ORD-1700000000-abcd1234", orders[0].OrderNumber)
	assert.Len(t, orders[0].OrderItems, 1)
}
