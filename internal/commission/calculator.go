package commission

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

// Calculator applies the tiered commission rate table to a payee's gross
// volume for one window.
type Calculator struct {
	baseRate        decimal.Decimal
	bonusRate       decimal.Decimal
	volumeThreshold int
}

// NewCalculator builds a calculator from the configured rate table.
func NewCalculator(cfg config.CommissionConfig) (*Calculator, error) {
	if err := validateRate(cfg.BaseRateDecimal()); err != nil {
		return nil, err
	}
	if cfg.BonusRateDecimal().IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "bonus rate must be non-negative")
	}
	return &Calculator{
		baseRate:        cfg.BaseRateDecimal(),
		bonusRate:       cfg.BonusRateDecimal(),
		volumeThreshold: cfg.VolumeThreshold,
	}, nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.New(1, 0)) {
		return pkgerrors.New(pkgerrors.CodeConfiguration, "commission rate must be between 0 and 1")
	}
	return nil
}

// Calculate returns the commission owed on gross for the window.
//
// The bonus tier is applied non-marginally: once transactionCount exceeds the
// volume threshold, the incremented rate multiplies the entire gross amount,
// not just the portion above the threshold. This cliff is an intentional
// incentive policy.
//
// A payee override rate, when present, supersedes the tiered table entirely.
// The result is left unrounded; callers round to currency precision at the
// final output only.
func (c *Calculator) Calculate(gross decimal.Decimal, transactionCount int, override *decimal.Decimal) (decimal.Decimal, error) {
	if gross.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be non-negative")
	}

	if override != nil {
		if err := validateRate(*override); err != nil {
			return decimal.Zero, err
		}
		return gross.Mul(*override), nil
	}

	rate := c.baseRate
	if transactionCount > c.volumeThreshold {
		rate = rate.Add(c.bonusRate)
	}
	return gross.Mul(rate), nil
}
