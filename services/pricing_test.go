package services_test

import (
	"context"
	"testing"
	"time"

	"checkout-service/models"
	"checkout-service/services"

	"github.com/stretchr/testify/assert"
)

func testCart(items ...models.CartItem) models.CartSnapshot {
	return models.CartSnapshot{
		UserID:  "user-1",
		Items:   items,
		TakenAt: time.Now(),
	}
}

func hundredDollarCart() models.CartSnapshot {
	return testCart(
		models.CartItem{ProductID: "p1", Name: "Keyboard", UnitPrice: 2500, Quantity: 2},
		models.CartItem{ProductID: "p2", Name: "Mouse", UnitPrice: 5000, Quantity: 1},
	)
}

func testCalculator() *services.Calculator {
	cfg := services.DefaultPricingConfig()
	cfg.TaxRate = 0.08
	cfg.FreeShippingThreshold = 10000
	cfg.ExpressFee = 2500
	cfg.FeeMultiplier = 1.0
	return services.NewCalculator(cfg, services.FixedRateSource{"ETH": 2400})
}

func TestComputeSummary_StandardFreeAtThreshold(t *testing.T) {
	calc := testCalculator()

	summary := calc.ComputeSummary(hundredDollarCart(), models.DeliveryStandard)

	assert.Equal(t, int64(10000), summary.Subtotal)
	assert.Equal(t, int64(800), summary.Tax)
	assert.Equal(t, int64(0), summary.Shipping)
	assert.Equal(t, int64(10800), summary.Total)
}

func TestComputeSummary_ExpressFlatFee(t *testing.T) {
	calc := testCalculator()

	summary := calc.ComputeSummary(hundredDollarCart(), models.DeliveryExpress)

	assert.Equal(t, int64(10000), summary.Subtotal)
	assert.Equal(t, int64(800), summary.Tax)
	assert.Equal(t, int64(2500), summary.Shipping)
	assert.Equal(t, int64(13300), summary.Total)
}

func TestComputeSummary_StandardBelowThresholdChargesFlatFee(t *testing.T) {
	calc := testCalculator()
	cart := testCart(models.CartItem{ProductID: "p1", Name: "Cable", UnitPrice: 1200, Quantity: 1})

	summary := calc.ComputeSummary(cart, models.DeliveryStandard)

	assert.Equal(t, int64(999), summary.Shipping)
	assert.Equal(t, summary.Subtotal+summary.Tax+summary.Shipping, summary.Total)
}

func TestComputeSummary_TotalInvariant(t *testing.T) {
	calc := testCalculator()
	carts := []models.CartSnapshot{
		testCart(),
		hundredDollarCart(),
		testCart(models.CartItem{ProductID: "p3", Name: "Desk", UnitPrice: 33333, Quantity: 3}),
	}

	for _, cart := range carts {
		for _, delivery := range []models.DeliveryOption{models.DeliveryStandard, models.DeliveryExpress, models.DeliveryOvernight} {
			summary := calc.ComputeSummary(cart, delivery)
			assert.Equal(t, cart.Subtotal(), summary.Subtotal)
			assert.Equal(t, summary.Subtotal+summary.Tax+summary.Shipping, summary.Total)
		}
	}
}

func TestComputeCryptoAmount_Deterministic(t *testing.T) {
	calc := testCalculator()

	quote, err := calc.ComputeCryptoAmount(context.Background(), 10800, "ETH")
	assert.NoError(t, err)
	assert.Equal(t, 0.045, quote.TokenAmount)
	assert.Equal(t, 2400.0, quote.Rate)
}

func TestComputeCryptoAmount_FeeMultiplier(t *testing.T) {
	cfg := services.DefaultPricingConfig()
	cfg.FeeMultiplier = 1.1
	calc := services.NewCalculator(cfg, services.FixedRateSource{"ETH": 2400})

	quote, err := calc.ComputeCryptoAmount(context.Background(), 10800, "ETH")
	assert.NoError(t, err)
	assert.Equal(t, 0.0495, quote.TokenAmount)
}

func TestComputeCryptoAmount_NetworkFeeNotInTotal(t *testing.T) {
	calc := testCalculator()

	quote, err := calc.ComputeCryptoAmount(context.Background(), 10800, "ETH")
	assert.NoError(t, err)
	// the estimate rides along for display but the fiat total is unchanged
	assert.Equal(t, 0.0005, quote.NetworkFee)
}

func TestComputeCryptoAmount_UnknownAsset(t *testing.T) {
	calc := testCalculator()

	_, err := calc.ComputeCryptoAmount(context.Background(), 10800, "DOGE")
	assert.ErrorIs(t, err, services.ErrUnknownAsset)
}
