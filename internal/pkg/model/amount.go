package model

import (
	"errors"
	"math/big"
	"strings"
)

var (
	ErrAmountSyntax    = errors.New("amount is not a decimal number")
	ErrAmountPrecision = errors.New("amount has more fraction digits than the asset supports")
)

// ParseUnits converts a human decimal string such as "0.1" into the asset's
// smallest unit. It never rounds: surplus fraction digits are an error.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, ErrAmountSyntax
	}
	negative := false
	if s[0] == '-' || s[0] == '+' {
		negative = s[0] == '-'
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, ErrAmountSyntax
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, ErrAmountSyntax
	}

	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return nil, ErrAmountPrecision
	}
	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", decimals-len(frac)), "0")
	if digits == "" {
		digits = "0"
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, ErrAmountSyntax
	}
	if negative {
		v.Neg(v)
	}
	return v, nil
}

// FormatUnits renders a smallest-unit amount as an exact decimal string with
// trailing fraction zeros removed ("100000000000000000", 18 -> "0.1").
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	digits := new(big.Int).Abs(v).String()
	if decimals > 0 {
		if len(digits) <= decimals {
			digits = strings.Repeat("0", decimals-len(digits)+1) + digits
		}
		cut := len(digits) - decimals
		whole, frac := digits[:cut], strings.TrimRight(digits[cut:], "0")
		digits = whole
		if frac != "" {
			digits += "." + frac
		}
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
