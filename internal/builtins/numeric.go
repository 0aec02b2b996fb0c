package builtins

import (
	"math"
	"math/big"
	"strings"

	"github.com/pyvm/pyvm/internal/values"
)

func isNumber(v values.Value) bool {
	switch v.(type) {
	case values.Int, values.Float, values.Bool:
		return true
	}
	return false
}

func asBigInt(v values.Value) (*big.Int, bool) {
	switch t := v.(type) {
	case values.Int:
		return t.V, true
	case values.Bool:
		if t.V {
			return big.NewInt(1), true
		}
		return big.NewInt(0), true
	case values.Float:
		if t.V != math.Trunc(t.V) {
			return nil, false
		}
		bi, _ := big.NewFloat(t.V).Int(nil)
		return bi, true
	}
	return nil, false
}

func asFloat64(v values.Value) (float64, bool) {
	switch t := v.(type) {
	case values.Float:
		return t.V, true
	case values.Int:
		f, _ := new(big.Float).SetInt(t.V).Float64()
		return f, true
	case values.Bool:
		if t.V {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// bankersRound implements round-half-to-even, what Python's round()
// uses instead of round-half-away-from-zero.
func bankersRound(f float64) int64 {
	floor := math.Floor(f)
	diff := f - floor
	switch {
	case diff < 0.5:
		return int64(floor)
	case diff > 0.5:
		return int64(floor) + 1
	default:
		if int64(floor)%2 == 0 {
			return int64(floor)
		}
		return int64(floor) + 1
	}
}

func parseIntLiteral(s string, base int) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if base == 0 {
		switch {
		case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
			base, s = 16, s[2:]
		case strings.HasPrefix(s, "0o") || strings.HasPrefix(s, "0O"):
			base, s = 8, s[2:]
		case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
			base, s = 2, s[2:]
		default:
			base = 10
		}
	}
	bi, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, false
	}
	if neg {
		bi.Neg(bi)
	}
	return bi, true
}

// pyDivMod implements floor division and its companion modulo: the
// remainder's sign always follows the divisor, unlike Go's truncating
// big.Int.QuoRem, so a truncated quotient/remainder gets nudged by one
// whenever their signs disagree.
func pyDivMod(a, b *big.Int) (*big.Int, *big.Int) {
	q, m := new(big.Int), new(big.Int)
	q.QuoRem(a, b, m)
	if m.Sign() != 0 && (m.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
		m.Add(m, b)
	}
	return q, m
}

func formatIntBase(i *big.Int, prefix string, base int) string {
	sign := ""
	abs := i
	if i.Sign() < 0 {
		sign = "-"
		abs = new(big.Int).Neg(i)
	}
	return sign + prefix + abs.Text(base)
}
