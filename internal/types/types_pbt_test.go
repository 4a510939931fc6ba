package types

import (
	"math/big"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// reparseUnits reverses FormatUnits exactly using string arithmetic, padding
// the fractional part back to the full decimal width.
func reparseUnits(formatted string, decimals uint8) (*big.Int, bool) {
	neg := strings.HasPrefix(formatted, "-")
	s := strings.TrimPrefix(formatted, "-")

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if len(fracPart) > int(decimals) {
		return nil, false
	}
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))

	raw, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, false
	}
	if neg {
		raw.Neg(raw)
	}
	return raw, true
}

func TestFormatUnitsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	rawGen := gen.Int64().Map(func(v int64) *big.Int {
		// Scale into token-sized magnitudes to exercise both sides of the
		// decimal point.
		return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_003))
	})
	decimalsGen := gen.UInt8Range(0, 24)

	properties.Property("formatting is lossless", prop.ForAll(
		func(raw *big.Int, decimals uint8) bool {
			back, ok := reparseUnits(FormatUnits(raw, decimals), decimals)
			return ok && back.Cmp(raw) == 0
		},
		rawGen,
		decimalsGen,
	))

	properties.Property("no trailing fractional zeros", prop.ForAll(
		func(raw *big.Int, decimals uint8) bool {
			s := FormatUnits(raw, decimals)
			if !strings.Contains(s, ".") {
				return true
			}
			return !strings.HasSuffix(s, "0") && !strings.HasSuffix(s, ".")
		},
		rawGen,
		decimalsGen,
	))

	properties.Property("zero formats as 0", prop.ForAll(
		func(decimals uint8) bool {
			return FormatUnits(big.NewInt(0), decimals) == "0"
		},
		decimalsGen,
	))

	properties.Property("sign is preserved", prop.ForAll(
		func(raw *big.Int, decimals uint8) bool {
			s := FormatUnits(raw, decimals)
			switch {
			case raw.Sign() < 0:
				return strings.HasPrefix(s, "-")
			default:
				return !strings.HasPrefix(s, "-")
			}
		},
		rawGen,
		decimalsGen,
	))

	properties.TestingRun(t)
}
