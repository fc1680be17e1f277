package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/repository"
	"github.com/google/uuid"
)

// CartView is a cart with its display summary.
type CartView struct {
	entity.Cart
	Summary entity.CartSummary `json:"summary"`
}

// CartService orchestrates session cart logic. Every mutation locks the cart row first and
// the product row second, and checks stock through Inventory.
type CartService struct {
	runner    *TxRunner
	inventory Inventory
	pricing   Pricing
	now       func() time.Time
}

func NewCartService(runner *TxRunner, pricing Pricing) *CartService {
	return &CartService{
		runner:  runner,
		pricing: pricing,
		now:     time.Now,
	}
}

func (s *CartService) view(c *entity.Cart) *CartView {
	return &CartView{Cart: *c, Summary: entity.SummarizeCart(c, s.pricing.TaxRate, s.pricing.Shipping)}
}

func loadItems(ctx context.Context, tx repository.Tx, c *entity.Cart) error {
	items, err := tx.CartItems(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Items = items
	return nil
}

// GetOrCreateCart returns the session's cart with its items, creating an empty cart on first access.
func (s *CartService) GetOrCreateCart(ctx context.Context, sessionID string) (*CartView, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	var cart *entity.Cart
	err := s.runner.Run(ctx, "get cart", func(ctx context.Context, tx repository.Tx) error {
		c, err := tx.GetOrCreateCart(ctx, sessionID, false)
		if err != nil {
			return err
		}
		if err := loadItems(ctx, tx, c); err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(cart), nil
}

// AddItem adds quantity of productID to the cart. A product already in the cart has its line
// quantity increased instead of getting a second line.
func (s *CartService) AddItem(ctx context.Context, sessionID, productID string, quantity int) (*CartView, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, apperr.Validation("Product ID is required")
	}
	if quantity < 1 || quantity > MaxLineQuantity {
		return nil, apperr.Validation("Quantity must be between 1 and %d", MaxLineQuantity)
	}

	var cart *entity.Cart
	err := s.runner.Run(ctx, "add cart item", func(ctx context.Context, tx repository.Tx) error {
		c, err := tx.GetOrCreateCart(ctx, sessionID, true)
		if err != nil {
			return err
		}

		existing, err := tx.FindCartItem(ctx, c.ID, productID)
		if err != nil {
			return err
		}

		want := quantity
		if existing != nil {
			want += existing.Quantity
		}

		_, ok, err := s.inventory.TryReserve(ctx, tx, productID, want)
		if err != nil {
			return err
		}
		if !ok {
			if existing != nil {
				return apperr.InsufficientStock(productID, "Insufficient stock for requested quantity")
			}
			return apperr.InsufficientStock(productID, "Insufficient stock")
		}

		if existing != nil {
			if err := tx.SetCartItemQuantity(ctx, existing.ID, want); err != nil {
				return err
			}
		} else {
			now := s.now()
			err := tx.InsertCartItem(ctx, &entity.CartItem{
				ID:        uuid.NewString(),
				CartID:    c.ID,
				ProductID: productID,
				Quantity:  quantity,
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				return err
			}
		}

		if err := loadItems(ctx, tx, c); err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Item added to cart", "session_id", sessionID, "product_id", productID, "quantity", quantity)
	return s.view(cart), nil
}

// UpdateItemQuantity sets a line's quantity. Zero removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, sessionID, itemID string, quantity int) (*CartView, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if quantity < 0 || quantity > MaxLineQuantity {
		return nil, apperr.Validation("Quantity must be between 0 and %d", MaxLineQuantity)
	}

	var cart *entity.Cart
	err := s.runner.Run(ctx, "update cart item", func(ctx context.Context, tx repository.Tx) error {
		c, err := tx.FindCart(ctx, sessionID, true)
		if err != nil {
			return err
		}
		item, err := tx.FindCartItemByID(ctx, c.ID, itemID)
		if err != nil {
			return err
		}

		if quantity == 0 {
			if err := tx.DeleteCartItem(ctx, item.ID); err != nil {
				return err
			}
		} else {
			_, ok, err := s.inventory.TryReserve(ctx, tx, item.ProductID, quantity)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.InsufficientStock(item.ProductID, "Insufficient stock")
			}
			if err := tx.SetCartItemQuantity(ctx, item.ID, quantity); err != nil {
				return err
			}
		}

		if err := loadItems(ctx, tx, c); err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		slog.Info("Item removed from cart", "session_id", sessionID, "item_id", itemID)
	} else {
		slog.Info("Cart item updated", "session_id", sessionID, "item_id", itemID, "quantity", quantity)
	}
	return s.view(cart), nil
}

// RemoveItem deletes a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, itemID string) (*CartView, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	var cart *entity.Cart
	err := s.runner.Run(ctx, "remove cart item", func(ctx context.Context, tx repository.Tx) error {
		c, err := tx.FindCart(ctx, sessionID, true)
		if err != nil {
			return err
		}
		item, err := tx.FindCartItemByID(ctx, c.ID, itemID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCartItem(ctx, item.ID); err != nil {
			return err
		}
		if err := loadItems(ctx, tx, c); err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Item removed from cart", "session_id", sessionID, "item_id", itemID)
	return s.view(cart), nil
}
