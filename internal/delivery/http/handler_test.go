package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/egannguyen/energystack-storefront/internal/cache"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/messaging"
	"github.com/egannguyen/energystack-storefront/internal/repository/memory"
	"github.com/egannguyen/energystack-storefront/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Message    string             `json:"message"`
	Error      string             `json:"error"`
	Pagination *entity.Pagination `json:"pagination"`
}

type testServer struct {
	t       *testing.T
	store   *memory.Store
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	runner := service.NewTxRunner(store, 3)
	pricing := service.DefaultPricing()

	h := NewHandler(
		service.NewCatalogService(store.Products(), cache.Nop{}),
		service.NewCartService(runner, pricing),
		service.NewOrderService(runner, store.Orders(), store.Events(), messaging.NopPublisher{}, cache.Nop{}, pricing),
	)
	return &testServer{t: t, store: store, handler: h.Routes([]string{"*"})}
}

func (s *testServer) product(id, name, price string, stock int, created time.Time) {
	s.store.PutProduct(entity.Product{
		ID: id, Name: name, Description: name, Price: decimal.RequireFromString(price),
		Category: entity.CategorySolarPanels, Stock: stock, Images: []string{"/" + id + ".png"},
		CreatedAt: created, UpdatedAt: created,
	})
}

func (s *testServer) do(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestListProducts(t *testing.T) {
	s := newTestServer(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.product("p1", "Old Panel", "100.00", 5, base)
	s.product("p2", "New Panel", "300.00", 5, base.Add(time.Hour))
	s.product("p3", "Newest Panel", "500.00", 5, base.Add(2*time.Hour))

	rec, env := s.do(http.MethodGet, "/api/products?limit=2&page=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	products := decodeData[[]entity.Product](t, env)
	require.Len(t, products, 2)
	assert.Equal(t, "p3", products[0].ID)
	assert.Equal(t, "p2", products[1].ID)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, entity.Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, *env.Pagination)

	rec, env = s.do(http.MethodGet, "/api/products?minPrice=200&maxPrice=300&search=panel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products = decodeData[[]entity.Product](t, env)
	require.Len(t, products, 1)
	assert.Equal(t, "p2", products[0].ID)

	rec, env = s.do(http.MethodGet, "/api/products?search=nothing-matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(env.Data))
}

func TestListProducts_Validation(t *testing.T) {
	s := newTestServer(t)

	for _, query := range []string{"page=0", "page=abc", "limit=101", "category=wind", "minPrice=-1", "maxPrice=cheap"} {
		t.Run(query, func(t *testing.T) {
			rec, env := s.do(http.MethodGet, "/api/products?"+query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, "ValidationError", env.Error)
		})
	}
}

func TestGetProduct(t *testing.T) {
	s := newTestServer(t)
	s.product("p1", "Panel", "100.00", 5, time.Now())

	rec, env := s.do(http.MethodGet, "/api/products/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Panel", decodeData[entity.Product](t, env).Name)

	rec, env = s.do(http.MethodGet, "/api/products/p9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", env.Error)
	assert.Equal(t, "Product not found", env.Message)
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t)
	s.product("p1", "Panel", "100.00", 3, time.Now())

	rec, env := s.do(http.MethodGet, "/api/cart/sess-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[service.CartView](t, env).Items)

	rec, env = s.do(http.MethodPost, "/api/cart/sess-1", AddToCartRequest{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Item added to cart", env.Message)
	cart := decodeData[service.CartView](t, env)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("241").Equal(cart.Summary.EstimatedTotal))

	rec, env = s.do(http.MethodPost, "/api/cart/sess-1", AddToCartRequest{ProductID: "p1", Quantity: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InsufficientStock", env.Error)
	assert.Equal(t, "Insufficient stock for requested quantity", env.Message)

	rec, env = s.do(http.MethodPost, "/api/cart/sess-1", AddToCartRequest{ProductID: "nope", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", env.Error)

	itemPath := "/api/cart/sess-1/items/" + cart.Items[0].ID

	rec, env = s.do(http.MethodPut, itemPath, map[string]int{"quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cart updated", env.Message)
	assert.Equal(t, 3, decodeData[service.CartView](t, env).Items[0].Quantity)

	rec, env = s.do(http.MethodPut, itemPath, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Quantity must be between 0 and 100", env.Message)

	rec, env = s.do(http.MethodPut, itemPath, map[string]int{"quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Item removed from cart", env.Message)
	assert.Empty(t, decodeData[service.CartView](t, env).Items)

	rec, env = s.do(http.MethodDelete, itemPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Cart item not found", env.Message)
}

func TestCart_BadBodies(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/api/cart/sess-1", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", env.Error)

	rec, env = s.do(http.MethodPost, "/api/cart/sess-1", AddToCartRequest{ProductID: "p1", Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Quantity must be between 1 and 100", env.Message)
}

func TestOrderFlow(t *testing.T) {
	s := newTestServer(t)
	s.product("p1", "Panel", "100.00", 10, time.Now())

	rec, env := s.do(http.MethodPost, "/api/orders", CreateOrderRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Session ID is required", env.Message)

	rec, env = s.do(http.MethodPost, "/api/orders", CreateOrderRequest{SessionID: "sess-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EmptyCart", env.Error)
	assert.Equal(t, "Cart is empty", env.Message)

	rec, _ = s.do(http.MethodPost, "/api/cart/sess-1", AddToCartRequest{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodPost, "/api/orders", CreateOrderRequest{SessionID: "sess-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Order created successfully", env.Message)
	order := decodeData[entity.Order](t, env)
	assert.Equal(t, entity.StatusPlaced, order.Status)
	amounts := decodeData[map[string]any](t, env)
	assert.Equal(t, "200.00", amounts["subtotal"])
	assert.Equal(t, "16.00", amounts["tax"])
	assert.Equal(t, "216.00", amounts["total"])
	assert.True(t, decimal.RequireFromString("200").Equal(order.Subtotal))
	assert.True(t, decimal.RequireFromString("16").Equal(order.Tax))
	assert.True(t, decimal.RequireFromString("216").Equal(order.Total))
	require.Len(t, order.Items, 1)
	require.NotNil(t, order.Items[0].Product)
	assert.Equal(t, "Panel", order.Items[0].Product.Name)

	rec, env = s.do(http.MethodGet, "/api/cart/sess-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[service.CartView](t, env).Items)

	rec, env = s.do(http.MethodGet, "/api/orders/"+order.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.ID, decodeData[entity.Order](t, env).ID)

	rec, env = s.do(http.MethodGet, "/api/orders/"+order.ID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeData[service.OrderHistory](t, env)
	assert.Equal(t, entity.StatusPlaced, history.Status)
	require.Len(t, history.Events, 1)
	assert.Equal(t, "OrderPlaced", history.Events[0].EventType)

	rec, env = s.do(http.MethodGet, "/api/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", env.Message)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	s := newTestServer(t)
	s.product("p1", "Panel", "100.00", 2, time.Now())

	rec, _ := s.do(http.MethodPost, "/api/cart/sess-1", AddToCartRequest{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	s.product("p1", "Panel", "100.00", 1, time.Now())

	rec, env := s.do(http.MethodPost, "/api/orders", CreateOrderRequest{SessionID: "sess-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InsufficientStock", env.Error)
	assert.Equal(t, "Insufficient stock for Panel", env.Message)
}

func TestCreateOrder_StorageFailureIsOpaque(t *testing.T) {
	s := newTestServer(t)
	s.product("p1", "Panel", "100.00", 2, time.Now())

	rec, _ := s.do(http.MethodPost, "/api/cart/sess-1", AddToCartRequest{ProductID: "p1", Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	s.store.InjectFault("InsertOrder", errors.New("connection reset by peer"))

	rec, env := s.do(http.MethodPost, "/api/orders", CreateOrderRequest{SessionID: "sess-1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "StorageFailure", env.Error)
	assert.Equal(t, "internal server error", env.Message)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestCORS_AllowList(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := EnableCORS([]string{"https://shop.example.com"})(next)

	for origin, want := range map[string]string{
		"https://shop.example.com": "https://shop.example.com",
		"https://evil.example.com": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}
