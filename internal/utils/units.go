package utils

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// FormatUnitsTrim converts a base-unit amount to a human string:
// - divides by 10^decimals
// - truncates to maxFrac decimal places
// - removes trailing zeros
//
// Examples:
//
//	amount=1234500000000000000, decimals=18 -> "1.2345"
//	amount=1000000000000000000, decimals=18 -> "1"
func FormatUnitsTrim(amount *big.Int, decimals uint8, maxFrac int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}
	if maxFrac < 0 {
		maxFrac = 0
	}
	d := decimal.NewFromBigInt(amount, -int32(decimals)).Truncate(int32(maxFrac))
	return d.String()
}

// ParseUnits reads a decimal amount such as "1.5" into base units.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	if amount == "" {
		return nil, errors.New("amount cannot be empty")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrap(err, "invalid amount format")
	}
	if d.IsNegative() {
		return nil, errors.New("amount cannot be negative")
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, errors.Newf("amount %s has more than %d decimals", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// ParseBigInt reads a base-10 integer such as an item id or a wei amount.
func ParseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, errors.New("value cannot be empty")
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, errors.Newf("invalid integer %q", value)
	}
	if v.Sign() < 0 {
		return nil, errors.Newf("negative integer %q", value)
	}
	return v, nil
}
