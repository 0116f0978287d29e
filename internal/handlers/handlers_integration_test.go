package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pokeshop/internal/currency"
	"pokeshop/internal/database"
	"pokeshop/internal/handlers"
	"pokeshop/internal/models"
	"pokeshop/internal/repositories"
	"pokeshop/internal/server"
	"pokeshop/internal/services"
	"pokeshop/pkg/mercadopago"
)

const (
	jwtSecret     = "test_jwt_secret"
	webhookSecret = "test_webhook_secret"
	cronSecret    = "test_cron_secret"
)

// fakeMercadoPago serves the two MercadoPago endpoints the shop calls.
type fakeMercadoPago struct {
	mu              sync.Mutex
	payments        map[string]mercadopago.Payment
	failPreferences bool
	preferences     []mercadopago.PreferenceRequest
}

func (f *fakeMercadoPago) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/checkout/preferences":
		if f.failPreferences {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"internal_error"}`))
			return
		}
		var req mercadopago.PreferenceRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.preferences = append(f.preferences, req)
		id := fmt.Sprintf("pref-%d", len(f.preferences))
		_ = json.NewEncoder(w).Encode(mercadopago.Preference{
			ID:               id,
			InitPoint:        "https://mp.example.com/checkout?pref_id=" + id,
			SandboxInitPoint: "https://sandbox.mp.example.com/checkout?pref_id=" + id,
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/payments/"):
		payment, ok := f.payments[strings.TrimPrefix(r.URL.Path, "/v1/payments/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Payment not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(payment)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeMercadoPago) setPayment(p mercadopago.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.IDString()] = p
}

type testEnv struct {
	app      *fiber.App
	products *repositories.GORMProductRepository
	orders   *repositories.GORMOrderRepository
	mp       *fakeMercadoPago
}

// setupApp builds the whole application on an in-memory SQLite database with
// fake payment and exchange rate providers.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	ctx := context.Background()

	db, err := database.Open(database.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mp := &fakeMercadoPago{payments: map[string]mercadopago.Payment{}}
	mpServer := httptest.NewServer(mp)
	t.Cleanup(mpServer.Close)

	fxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"casa":"oficial","compra":980,"venta":1000}`))
	}))
	t.Cleanup(fxServer.Close)

	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	mpClient := mercadopago.NewClient(mpServer.URL, "TEST-token", 5*time.Second)
	rates := currency.NewCache(currency.NewDolarAPIFetcher(fxServer.URL, 5*time.Second), decimal.NewFromInt(1200), log)
	_, err = rates.ForceRefresh(ctx)
	require.NoError(t, err)

	authService := services.NewAuthService(userRepo, jwtSecret, log)
	require.NoError(t, authService.EnsureAdmin(ctx, "admin", "admin@example.com", "adminpass"))

	orderService := services.NewOrderService(orderRepo, productRepo, nil, services.Pricing{}, log)
	checkoutService := services.NewCheckoutService(orderService, mpClient, services.CheckoutURLs{
		BaseURL:         "https://shop.example.com",
		NotificationURL: "https://shop.example.com/api/mercadopago/webhook",
	}, log)
	webhookService := services.NewWebhookService(orderService, mpClient, nil, webhookSecret, false, log)

	app := server.NewApp(server.Deps{
		Log:         log,
		AuthService: authService,
		CronSecret:  cronSecret,
		Auth:        handlers.NewAuthHandler(authService, log),
		Products:    handlers.NewProductHandler(services.NewProductService(productRepo, rates), log),
		Orders:      handlers.NewOrderHandler(orderService, log),
		MercadoPago: handlers.NewMercadoPagoHandler(checkoutService, webhookService, log),
		Currency:    handlers.NewCurrencyHandler(rates, log),
	})

	return &testEnv{app: app, products: productRepo, orders: orderRepo, mp: mp}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	decode(t, resp, &loginResp)
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return e.login(t, username, "password123")
}

func (e *testEnv) addProduct(t *testing.T, name string, price int64, stock int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.NewFromInt(price), Stock: stock, IsActive: true}
	require.NoError(t, e.products.Create(context.Background(), &p))
	return p
}

func (e *testEnv) stockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := e.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func checkoutBody(method, productID string, qty int) map[string]interface{} {
	body := map[string]interface{}{
		"items": []map[string]interface{}{
			{"productId": productID, "quantity": qty, "price": 1},
		},
		"shippingInfo": map[string]string{
			"name":    "Misty Waterflower",
			"email":   "misty@example.com",
			"phone":   "+54 11 4444 4444",
			"address": "Cerulean Gym 1",
			"city":    "Córdoba",
		},
	}
	if method != "" {
		body["paymentMethod"] = method
	}
	return body
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	userToRegister := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	}
	resp := env.request(t, http.MethodPost, "/api/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var registerResp map[string]interface{}
	decode(t, resp, &registerResp)
	assert.Equal(t, "User registered successfully", registerResp["message"])
	user := registerResp["user"].(map[string]interface{})
	assert.Equal(t, "USER", user["role"])
	assert.NotContains(t, user, "password")

	// Duplicate registration
	resp = env.request(t, http.MethodPost, "/api/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Validation failure
	resp = env.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "ab"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.NotEmpty(t, env.login(t, "testuser", "password123"))

	resp = env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCatalogAndAdminProductEndpoints(t *testing.T) {
	env := setupApp(t)
	adminToken := env.login(t, "admin", "adminpass")
	userToken := env.registerAndLogin(t, "shopper")

	newProduct := map[string]interface{}{
		"name":        "Paldea Evolved Booster",
		"description": "10 card booster pack",
		"category":    "boosters",
		"price":       5000,
		"stock":       50,
	}

	// Customers and anonymous callers cannot manage the catalog
	resp := env.request(t, http.MethodPost, "/api/admin/products", "", newProduct)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.request(t, http.MethodPost, "/api/admin/products", userToken, newProduct)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/admin/products", adminToken, newProduct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Product
	decode(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)

	resp = env.request(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var catalog []services.CatalogProduct
	decode(t, resp, &catalog)
	require.Len(t, catalog, 1)
	assert.Equal(t, "5", catalog[0].PriceUSD.String())

	update := map[string]interface{}{
		"name":     "Paldea Evolved Booster",
		"price":    "6000",
		"stock":    40,
		"isActive": false,
	}
	resp = env.request(t, http.MethodPut, "/api/admin/products/"+created.ID, adminToken, update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Product
	decode(t, resp, &updated)
	assert.Equal(t, 40, updated.Stock)
	assert.False(t, updated.IsActive)

	// Inactive products disappear from the catalog but not from the back office
	resp = env.request(t, http.MethodGet, "/api/products/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.request(t, http.MethodGet, "/api/admin/products", adminToken, nil)
	var all []models.Product
	decode(t, resp, &all)
	assert.Len(t, all, 1)

	resp = env.request(t, http.MethodPost, "/api/admin/products", adminToken, map[string]interface{}{"name": "Free", "price": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, "/api/admin/products/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.request(t, http.MethodDelete, "/api/admin/products/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOfflineOrderFlow(t *testing.T) {
	env := setupApp(t)
	adminToken := env.login(t, "admin", "adminpass")
	product := env.addProduct(t, "Booster Box", 150000, 5)

	resp := env.request(t, http.MethodPost, "/api/orders", "", checkoutBody("Transferencia", product.ID, 3))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "450000", order.Total.String())
	assert.Equal(t, 2, env.stockOf(t, product.ID))

	// Only administrators confirm payments
	resp = env.request(t, http.MethodPost, "/api/admin/orders/"+order.ID+"/mark-paid", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/admin/orders/"+order.ID+"/mark-paid", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var paid models.Order
	decode(t, resp, &paid)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, models.OrderStatusProcessing, paid.Status)
	assert.Equal(t, 2, env.stockOf(t, product.ID))

	resp = env.request(t, http.MethodPatch, "/api/admin/orders/"+order.ID+"/status", adminToken, map[string]string{"status": "SHIPPED"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.request(t, http.MethodPatch, "/api/admin/orders/"+order.ID+"/status", adminToken, map[string]string{"status": "TELEPORTED"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/admin/orders/"+order.ID+"/cancel", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cancelled models.Order
	decode(t, resp, &cancelled)
	assert.Equal(t, models.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, 5, env.stockOf(t, product.ID))

	resp = env.request(t, http.MethodPost, "/api/admin/orders/missing/mark-paid", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateOrderRejections(t *testing.T) {
	env := setupApp(t)
	product := env.addProduct(t, "Booster Box", 150000, 2)

	resp := env.request(t, http.MethodPost, "/api/orders", "", checkoutBody("Transferencia", product.ID, 3))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp map[string]string
	decode(t, resp, &errResp)
	assert.Contains(t, errResp["error"], "insufficient stock")

	resp = env.request(t, http.MethodPost, "/api/orders", "", checkoutBody("MercadoPago", product.ID, 1))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.request(t, http.MethodPost, "/api/orders", "", checkoutBody("", product.ID, 1))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.request(t, http.MethodPost, "/api/orders", "", checkoutBody("WhatsApp", product.ID, 0))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.request(t, http.MethodPost, "/api/orders", "", checkoutBody("WhatsApp", product.ID, 1001))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.request(t, http.MethodPost, "/api/mercadopago/create-preference", "", checkoutBody("", product.ID, 1001))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.request(t, http.MethodPost, "/api/orders", "", checkoutBody("WhatsApp", "no-such-product", 1))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, 2, env.stockOf(t, product.ID))
}

func signedWebhook(t *testing.T, env *testEnv, paymentID, secret string) *http.Response {
	t.Helper()
	ts := fmt.Sprint(time.Now().Unix())
	body := map[string]interface{}{
		"type":   "payment",
		"action": "payment.updated",
		"data":   map[string]string{"id": paymentID},
	}
	return env.request(t, http.MethodPost, "/api/mercadopago/webhook?data.id="+paymentID+"&type=payment", "", body,
		"x-request-id", "req-"+paymentID,
		"x-signature", mercadopago.SignatureHeader(secret, paymentID, "req-"+paymentID, ts),
	)
}

func TestMercadoPagoCheckoutAndWebhook(t *testing.T) {
	env := setupApp(t)
	userToken := env.registerAndLogin(t, "gary")
	product := env.addProduct(t, "Elite Trainer Box", 90000, 10)

	resp := env.request(t, http.MethodPost, "/api/mercadopago/create-preference", userToken, checkoutBody("", product.ID, 4))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result services.CheckoutResult
	decode(t, resp, &result)
	assert.Equal(t, "pref-1", result.PreferenceID)
	assert.Contains(t, result.InitPoint, "pref-1")
	assert.NotEmpty(t, result.OrderID)
	assert.Equal(t, 10, env.stockOf(t, product.ID))

	require.Len(t, env.mp.preferences, 1)
	assert.Equal(t, result.OrderID, env.mp.preferences[0].ExternalReference)
	assert.Equal(t, 90000.0, env.mp.preferences[0].Items[0].UnitPrice)

	env.mp.setPayment(mercadopago.Payment{ID: 987654, Status: "approved", ExternalReference: result.OrderID})

	// A bad signature is rejected before anything is looked up
	resp = signedWebhook(t, env, "987654", "wrong-secret")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 10, env.stockOf(t, product.ID))

	resp = signedWebhook(t, env, "987654", webhookSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack map[string]bool
	decode(t, resp, &ack)
	assert.True(t, ack["received"])
	assert.Equal(t, 6, env.stockOf(t, product.ID))

	// Redelivery does not take stock twice
	resp = signedWebhook(t, env, "987654", webhookSecret)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6, env.stockOf(t, product.ID))

	// Unknown payments are acknowledged and ignored
	resp = signedWebhook(t, env, "111", webhookSecret)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/orders/"+result.OrderID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.Equal(t, "987654", order.MercadoPagoPaymentID)
	assert.Equal(t, "pref-1", order.MercadoPagoPreferenceID)

	env.mp.setPayment(mercadopago.Payment{ID: 987654, Status: "refunded", ExternalReference: result.OrderID})
	resp = signedWebhook(t, env, "987654", webhookSecret)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, env.stockOf(t, product.ID))
}

func TestCreatePreferenceGatewayFailure(t *testing.T) {
	env := setupApp(t)
	product := env.addProduct(t, "Elite Trainer Box", 90000, 10)
	env.mp.failPreferences = true

	resp := env.request(t, http.MethodPost, "/api/mercadopago/create-preference", "", checkoutBody("", product.ID, 1))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	orders, err := env.orders.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.PaymentStatusFailed, orders[0].PaymentStatus)
	assert.Equal(t, models.OrderStatusCancelled, orders[0].Status)
	assert.Equal(t, 10, env.stockOf(t, product.ID))
}

func TestOrderVisibility(t *testing.T) {
	env := setupApp(t)
	adminToken := env.login(t, "admin", "adminpass")
	ash := env.registerAndLogin(t, "ash")
	brock := env.registerAndLogin(t, "brock")
	product := env.addProduct(t, "Booster Pack", 5000, 10)

	resp := env.request(t, http.MethodPost, "/api/orders", ash, checkoutBody("WhatsApp", product.ID, 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)
	require.NotNil(t, order.UserID)

	resp = env.request(t, http.MethodGet, "/api/orders", ash, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []models.Order
	decode(t, resp, &mine)
	assert.Len(t, mine, 1)

	resp = env.request(t, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/orders/"+order.ID, brock, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/admin/orders/"+order.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.request(t, http.MethodGet, "/api/admin/orders", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []models.Order
	decode(t, resp, &all)
	assert.Len(t, all, 1)
}

func TestCurrencyEndpoints(t *testing.T) {
	env := setupApp(t)
	adminToken := env.login(t, "admin", "adminpass")

	resp := env.request(t, http.MethodGet, "/api/currency/usd-price", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rate currency.Rate
	decode(t, resp, &rate)
	assert.Equal(t, "1000", rate.USDPrice.String())
	assert.False(t, rate.LastUpdated.IsZero())

	resp = env.request(t, http.MethodPost, "/api/currency/usd-price", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.request(t, http.MethodPost, "/api/currency/usd-price", cronSecret, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.request(t, http.MethodPost, "/api/currency/usd-price", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := setupApp(t)
	resp := env.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
