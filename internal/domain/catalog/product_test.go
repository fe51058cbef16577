package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncengine/backend/internal/domain/shared"
)

func newTestProduct(t *testing.T) *Product {
	t.Helper()
	product, err := NewProduct("tee-001", "Graphic Tee", decimal.NewFromInt(25), 10)
	require.NoError(t, err)
	return product
}

func TestNewProduct(t *testing.T) {
	t.Run("normalizes SKU and defaults currency", func(t *testing.T) {
		product := newTestProduct(t)

		assert.Equal(t, "TEE-001", product.SKU)
		assert.Equal(t, "USD", product.Currency)
		assert.True(t, product.Active)
		assert.Equal(t, int64(1), product.Version)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := NewProduct("  ", "Graphic Tee", decimal.NewFromInt(25), 10)
		require.Error(t, err)

		_, err = NewProduct("tee-001", "", decimal.NewFromInt(25), 10)
		require.Error(t, err)

		_, err = NewProduct("tee-001", "Graphic Tee", decimal.NewFromInt(-1), 10)
		require.Error(t, err)

		_, err = NewProduct("tee-001", "Graphic Tee", decimal.NewFromInt(25), -1)
		require.Error(t, err)
	})
}

func TestProductAdjustInventory(t *testing.T) {
	t.Run("applies the delta", func(t *testing.T) {
		product := newTestProduct(t)

		exhausted, err := product.AdjustInventory(-4)

		require.NoError(t, err)
		assert.False(t, exhausted)
		assert.Equal(t, int64(6), product.Inventory)
	})

	t.Run("reports exhaustion on reaching zero", func(t *testing.T) {
		product := newTestProduct(t)

		exhausted, err := product.AdjustInventory(-10)

		require.NoError(t, err)
		assert.True(t, exhausted)
	})

	t.Run("zero stock does not re-report exhaustion", func(t *testing.T) {
		product := newTestProduct(t)
		_, err := product.AdjustInventory(-10)
		require.NoError(t, err)

		exhausted, err := product.AdjustInventory(0)

		require.NoError(t, err)
		assert.False(t, exhausted)
	})

	t.Run("rejects going negative", func(t *testing.T) {
		product := newTestProduct(t)

		_, err := product.AdjustInventory(-11)

		require.Error(t, err)
		assert.Equal(t, int64(10), product.Inventory)
	})
}

func TestProductSetInventory(t *testing.T) {
	product := newTestProduct(t)

	exhausted, err := product.SetInventory(0)
	require.NoError(t, err)
	assert.True(t, exhausted)

	exhausted, err = product.SetInventory(3)
	require.NoError(t, err)
	assert.False(t, exhausted)
	assert.Equal(t, int64(3), product.Inventory)

	_, err = product.SetInventory(-1)
	require.Error(t, err)
}

func TestProductMutationsBumpVersion(t *testing.T) {
	product := newTestProduct(t)

	require.NoError(t, product.SetPrice(decimal.NewFromInt(30)))
	assert.Equal(t, int64(2), product.Version)

	require.NoError(t, product.UpdateDetails("Premium Tee", "soft cotton", "", "apparel"))
	assert.Equal(t, int64(3), product.Version)

	require.Error(t, product.UpdateDetails("", "", "", ""))
	assert.Equal(t, int64(3), product.Version)
}

func TestProductDeactivate(t *testing.T) {
	product := newTestProduct(t)

	require.NoError(t, product.Deactivate())
	assert.False(t, product.Active)

	assert.ErrorIs(t, product.Deactivate(), shared.ErrInvalidState)
}
