// Package core provides decimal coercion helpers for upstream payloads.
//
// Upstream APIs report amounts as JSON numbers, numeric strings or, after a
// json.Decoder with UseNumber, as json.Number. These helpers turn all of them
// into exact decimals so that valuation never goes through float64.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNotNumeric = errors.New("value is not numeric")

// ParseDecimal coerces a decoded JSON value into a decimal.
//
// Accepted inputs: json.Number, string (trimmed, dot separator), float64,
// float32, int, int64 and decimal.Decimal. Anything else, including nil and
// empty strings, yields ErrNotNumeric.
func ParseDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case json.Number:
		return parseDecimalString(x.String())
	case string:
		return parseDecimalString(x)
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

// ParseInt coerces a decoded JSON value into an integer. Values with a
// fractional part are rejected.
func ParseInt(v any) (int64, error) {
	if s, ok := v.(string); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, nil
		}
	}
	d, err := ParseDecimal(v)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has a fractional part", ErrNotNumeric, d)
	}
	return d.IntPart(), nil
}

func parseDecimalString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty string", ErrNotNumeric)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return d, nil
}

// FormatUSD renders a decimal as a dollar string with two places, e.g. "$1234.50".
func FormatUSD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
