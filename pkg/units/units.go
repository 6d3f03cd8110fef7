// Package units converts between human-readable token amounts and the
// integer smallest-unit representation carried in on-chain payloads.
//
// All conversions are exact base-10 shifts. Nothing in this package goes
// through floating point.
package units

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxDecimals bounds the scale accepted for a token. ERC-20 decimals is a uint8
// but no real token goes past 36.
const MaxDecimals = 77

// MaxUint256Digits is the number of decimal digits in 2^256-1.
const MaxUint256Digits = 78

var (
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrTooManyDecimals    = errors.New("amount has more fractional digits than the token supports")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrDecimalsOutOfRange = errors.New("token decimals out of range")
	ErrAmountTooLarge     = errors.New("amount does not fit a uint256")
)

// CheckMagnitude rejects amounts whose integer part, once scaled by decimals,
// has more digits than a uint256 can hold. It only inspects the coefficient
// length and exponent, so it is cheap for any input.
func CheckMagnitude(amount decimal.Decimal, decimals uint8) error {
	if amount.IsZero() {
		return nil
	}
	if amount.NumDigits()+int(amount.Exponent())+int(decimals) > MaxUint256Digits {
		return fmt.Errorf("%w: %d decimals", ErrAmountTooLarge, decimals)
	}
	return nil
}

// ToBaseUnits converts a human amount into the token's smallest unit using the
// token's live decimals. Amounts with more fractional digits than decimals are
// rejected rather than truncated.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if int(decimals) > MaxDecimals {
		return nil, fmt.Errorf("%w: %d", ErrDecimalsOutOfRange, decimals)
	}
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}

	if amount.IsZero() {
		return new(big.Int), nil
	}
	if err := CheckMagnitude(amount, decimals); err != nil {
		return nil, err
	}

	scaled := amount.Shift(int32(decimals))
	// A coefficient with no more digits than its negative exponent is a
	// non-zero value below one smallest unit.
	if exp := scaled.Exponent(); exp < 0 && int(-exp) >= scaled.NumDigits() {
		return nil, fmt.Errorf("%w: %s with %d decimals", ErrTooManyDecimals, amount.String(), decimals)
	}
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s with %d decimals", ErrTooManyDecimals, amount.String(), decimals)
	}

	return scaled.BigInt(), nil
}

// FromBaseUnits converts a smallest-unit integer back into a human amount.
func FromBaseUnits(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// FormatBaseUnits renders a smallest-unit integer as a decimal string without
// trailing zeros.
func FormatBaseUnits(raw *big.Int, decimals uint8) string {
	return FromBaseUnits(raw, decimals).String()
}

// ParseAmount parses a decimal string amount. Empty strings and scientific
// notation that decimal cannot represent are reported as ErrInvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ParseToBaseUnits is ParseAmount followed by ToBaseUnits.
func ParseToBaseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return nil, err
	}
	return ToBaseUnits(d, decimals)
}

// Gwei returns n gwei expressed in wei.
func Gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}
