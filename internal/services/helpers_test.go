package services_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pokeshop/internal/database"
	"pokeshop/internal/models"
	"pokeshop/internal/repositories"
	"pokeshop/internal/services"
)

// MockPublisher is a mock implementation of services.EventPublisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

type fixture struct {
	db        *gorm.DB
	products  *repositories.GORMProductRepository
	orders    *repositories.GORMOrderRepository
	publisher *MockPublisher
	svc       *services.OrderService
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := database.Open(database.DriverSQLite, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T, pricing services.Pricing) *fixture {
	t.Helper()
	db := openTestDB(t)
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	products := repositories.NewGORMProductRepository(db)
	orders := repositories.NewGORMOrderRepository(db)
	return &fixture{
		db:        db,
		products:  products,
		orders:    orders,
		publisher: publisher,
		svc:       services.NewOrderService(orders, products, publisher, pricing, zap.NewNop()),
	}
}

func (f *fixture) addProduct(t *testing.T, name string, price int64, stock int) models.Product {
	t.Helper()
	p := models.Product{
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, f.products.Create(context.Background(), &p))
	return p
}

func (f *fixture) stockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) order(t *testing.T, id string) *models.Order {
	t.Helper()
	o, err := f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func shipping() services.ShippingInfo {
	return services.ShippingInfo{
		Name:    "Ash Ketchum",
		Email:   "ash@example.com",
		Phone:   "+54 11 5555 5555",
		Address: "Av. Siempre Viva 742",
		City:    "Buenos Aires",
	}
}

func cart(method string, items ...services.CartItem) services.CreateOrderInput {
	return services.CreateOrderInput{
		Items:         items,
		ShippingInfo:  shipping(),
		PaymentMethod: method,
	}
}

func approved(paymentID string) models.StatusUpdate {
	return models.StatusUpdate{
		PaymentStatus:  models.PaymentStatusPaid,
		OrderStatus:    models.OrderStatusProcessing,
		ProviderStatus: "approved",
		PaymentMethod:  models.PaymentMethodMercadoPago,
		PaymentID:      paymentID,
	}
}
