package utils

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied native-currency amount such as "2.5"
// into its smallest denomination using the currency decimals. Amounts that
// are not strictly positive or carry more precision than the currency
// supports are rejected.
func ParseAmount(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.New(ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.New(ErrInvalidAmount)
	}

	if !d.IsPositive() {
		return nil, errors.New(ErrInvalidAmount)
	}

	units := d.Shift(int32(decimals))
	if !units.IsInteger() {
		return nil, errors.New(ErrInvalidAmount)
	}

	return units.BigInt(), nil
}

// FormatAmount renders an amount held in the smallest denomination as a
// decimal string of whole native units, e.g. 2500000000000000000 -> "2.5".
func FormatAmount(units *big.Int, decimals uint8) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -int32(decimals)).String()
}
