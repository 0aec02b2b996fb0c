package vm

import (
	"strconv"
	"strings"

	"github.com/pyvm/pyvm/internal/values"
)

// formatValue renders v for an f-string part, honoring the small
// subset of format-spec syntax worth supporting: "" (plain str()),
// and a fixed-precision float spec like ".2f".
func formatValue(v values.Value, spec string) string {
	if spec == "" {
		return v.String()
	}
	if strings.HasPrefix(spec, ".") && strings.HasSuffix(spec, "f") {
		prec, err := strconv.Atoi(spec[1 : len(spec)-1])
		if err == nil {
			f := toFloatValue(v)
			return strconv.FormatFloat(f, 'f', prec, 64)
		}
	}
	if strings.HasSuffix(spec, "d") {
		return v.String()
	}
	return v.String()
}

func toFloatValue(v values.Value) float64 {
	isFloat, i, f, ok := asNum(v)
	if !ok {
		return 0
	}
	return toFloat(isFloat, i, f)
}
