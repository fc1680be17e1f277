package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

// Handler handles HTTP requests for the storefront.
type Handler struct {
	catalogSvc *service.CatalogService
	cartSvc    *service.CartService
	orderSvc   *service.OrderService
}

func NewHandler(catalogSvc *service.CatalogService, cartSvc *service.CartService, orderSvc *service.OrderService) *Handler {
	return &Handler{
		catalogSvc: catalogSvc,
		cartSvc:    cartSvc,
		orderSvc:   orderSvc,
	}
}

// Routes builds the router with its middleware stack.
func (h *Handler) Routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(EnableCORS(corsOrigins))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.handleListProducts)
		r.Get("/products/{id}", h.handleGetProduct)

		r.Get("/cart/{sessionId}", h.handleGetCart)
		r.Post("/cart/{sessionId}", h.handleAddToCart)
		r.Put("/cart/{sessionId}/items/{itemId}", h.handleUpdateCartItem)
		r.Delete("/cart/{sessionId}/items/{itemId}", h.handleRemoveCartItem)

		r.Post("/orders", h.handleCreateOrder)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Get("/orders/{id}/events", h.handleGetOrderEvents)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.catalogSvc.ListProducts(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: page.Products, Pagination: &page.Pagination})
}

func parseProductFilter(r *http.Request) (entity.ProductFilter, error) {
	q := r.URL.Query()
	filter := entity.ProductFilter{
		Search:   q.Get("search"),
		Category: entity.Category(q.Get("category")),
	}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, apperr.Validation("Page must be a positive integer")
		}
		filter.Page = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, apperr.Validation("Limit must be between 1 and %d", entity.MaxPageSize)
		}
		filter.Limit = n
	}
	if raw := q.Get("minPrice"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, apperr.Validation("Min price must be non-negative")
		}
		filter.MinPrice = &d
	}
	if raw := q.Get("maxPrice"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, apperr.Validation("Max price must be non-negative")
		}
		filter.MaxPrice = &d
	}
	return filter, nil
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalogSvc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: product})
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartSvc.GetOrCreateCart(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: cart})
}

type AddToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Validation("invalid request body"))
		return
	}

	cart, err := h.cartSvc.AddItem(r.Context(), chi.URLParam(r, "sessionId"), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: cart, Message: "Item added to cart"})
}

type UpdateCartItemRequest struct {
	// Quantity is a pointer so a missing field is rejected instead of removing the line.
	Quantity *int `json:"quantity"`
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Validation("invalid request body"))
		return
	}
	if req.Quantity == nil {
		writeError(w, r, apperr.Validation("Quantity must be between 0 and %d", service.MaxLineQuantity))
		return
	}

	cart, err := h.cartSvc.UpdateItemQuantity(r.Context(), chi.URLParam(r, "sessionId"), chi.URLParam(r, "itemId"), *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "Cart updated"
	if *req.Quantity == 0 {
		message = "Item removed from cart"
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: cart, Message: message})
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartSvc.RemoveItem(r.Context(), chi.URLParam(r, "sessionId"), chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: cart, Message: "Item removed from cart"})
}

type CreateOrderRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Validation("invalid request body"))
		return
	}

	order, err := h.orderSvc.PlaceOrder(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{Success: true, Data: order, Message: "Order created successfully"})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: order})
}

func (h *Handler) handleGetOrderEvents(w http.ResponseWriter, r *http.Request) {
	history, err := h.orderSvc.OrderEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: history})
}
