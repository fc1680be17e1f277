package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("Product not found"), KindNotFound},
		{"wrapped stock", fmt.Errorf("placing order: %w", InsufficientStock("p1", "Insufficient stock")), KindInsufficientStock},
		{"empty cart", EmptyCart(), KindEmptyCart},
		{"validation", Validation("Quantity must be between %d and %d", 1, 100), KindValidation},
		{"plain error", errors.New("connection reset"), KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
			assert.True(t, Is(tt.err, tt.want))
		})
	}
}

func TestIs_NilError(t *testing.T) {
	assert.False(t, Is(nil, KindStorage))
}

func TestMessage_HidesStorageCause(t *testing.T) {
	err := Storage("failed to place order", errors.New("pq: connection refused"))

	assert.Equal(t, "internal server error", Message(err))
	assert.Contains(t, err.Error(), "pq: connection refused")
	assert.Equal(t, "Quantity must be between 1 and 100", Message(Validation("Quantity must be between 1 and 100")))
}

func TestInsufficientStock_NamesProduct(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", InsufficientStock("prod-b", "Insufficient stock for Battery"))

	var appErr *Error
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "prod-b", appErr.ProductID)
	assert.Equal(t, "Insufficient stock for Battery", Message(err))
}
