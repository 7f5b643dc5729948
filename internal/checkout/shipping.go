package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// ShippingRule charges a flat fee unless the subtotal is strictly above the threshold.
type ShippingRule struct {
	Threshold decimal.Decimal
	FlatFee   decimal.Decimal
}

// ShippingRuleFromConfig reads the rule from the checkout config section.
func ShippingRuleFromConfig(cfg config.CheckoutConfig) ShippingRule {
	return ShippingRule{Threshold: cfg.Threshold(), FlatFee: cfg.FlatFee()}
}

// For returns the shipping charge for subtotal.
func (r ShippingRule) For(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(r.Threshold) {
		return decimal.Zero
	}
	return r.FlatFee
}
