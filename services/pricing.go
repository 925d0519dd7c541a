package services

import (
	"context"
	"fmt"
	"math"

	"checkout-service/models"
)

// PricingConfig holds the configured pricing constants. FeeMultiplier is the
// platform surcharge applied to the crypto conversion; it defaults to 1.0 so
// the two rails price identically.
type PricingConfig struct {
	TaxRate               float64
	FreeShippingThreshold int64 // cents
	StandardFee           int64
	ExpressFee            int64
	OvernightFee          int64
	FeeMultiplier         float64
	TokenDecimals         int
	NetworkFees           map[string]float64 // per-asset estimate, informational
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		TaxRate:               0.08,
		FreeShippingThreshold: 10000,
		StandardFee:           999,
		ExpressFee:            2500,
		OvernightFee:          4500,
		FeeMultiplier:         1.0,
		TokenDecimals:         6,
		NetworkFees: map[string]float64{
			"ETH": 0.0005,
		},
	}
}

// Calculator prices a cart snapshot. ComputeSummary is pure; the crypto
// conversion consults the rate source.
type Calculator struct {
	cfg   PricingConfig
	rates RateSource
}

func NewCalculator(cfg PricingConfig, rates RateSource) *Calculator {
	return &Calculator{cfg: cfg, rates: rates}
}

// ComputeSummary turns a cart and delivery choice into priced totals.
// Total is always subtotal + tax + shipping.
func (c *Calculator) ComputeSummary(cart models.CartSnapshot, delivery models.DeliveryOption) models.OrderSummary {
	subtotal := cart.Subtotal()
	tax := int64(math.Round(float64(subtotal) * c.cfg.TaxRate))
	shipping := c.shippingFee(subtotal, delivery)

	return models.OrderSummary{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
	}
}

func (c *Calculator) shippingFee(subtotal int64, delivery models.DeliveryOption) int64 {
	switch delivery {
	case models.DeliveryExpress:
		return c.cfg.ExpressFee
	case models.DeliveryOvernight:
		return c.cfg.OvernightFee
	default:
		if subtotal >= c.cfg.FreeShippingThreshold {
			return 0
		}
		return c.cfg.StandardFee
	}
}

// CryptoQuote is the converted token amount for a fiat total. NetworkFee is
// an informational estimate and is never added into the order total.
type CryptoQuote struct {
	Asset       string  `json:"asset"`
	TokenAmount float64 `json:"token_amount"`
	NetworkFee  float64 `json:"network_fee"`
	Rate        float64 `json:"rate"`
}

// ComputeCryptoAmount converts a fiat total (cents) into a token amount at
// the asset's current rate, rounded to the configured display precision.
func (c *Calculator) ComputeCryptoAmount(ctx context.Context, totalCents int64, asset string) (CryptoQuote, error) {
	rate, err := c.rates.Rate(ctx, asset)
	if err != nil {
		return CryptoQuote{}, err
	}
	if rate <= 0 {
		return CryptoQuote{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}

	fiat := float64(totalCents) / 100.0
	amount := fiat * c.cfg.FeeMultiplier / rate
	precision := math.Pow10(c.cfg.TokenDecimals)
	amount = math.Round(amount*precision) / precision

	return CryptoQuote{
		Asset:       asset,
		TokenAmount: amount,
		NetworkFee:  c.cfg.NetworkFees[asset],
		Rate:        rate,
	}, nil
}
