package calc

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ErrorPrefix starts every failed result string.
const ErrorPrefix = "ERROR: "

// Format renders an evaluation result as the string a tool returns. It never
// panics. Integral values print without a decimal point, other values use
// the shortest representation that round-trips.
func Format(v float64, err error) string {
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == math.Trunc(v):
		i, _ := new(big.Float).SetFloat64(v).Int(nil)
		return i.String()
	}
	return repr(v)
}

// repr picks shortest round-trip digits and switches to exponent form
// outside 1e-4 <= |v| < 1e16.
func repr(v float64) string {
	sci := strconv.FormatFloat(v, 'e', -1, 64)
	at := strings.LastIndexByte(sci, 'e')
	exp, err := strconv.Atoi(sci[at+1:])
	if err != nil {
		return sci
	}
	if exp >= -4 && exp < 16 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return sci
}

// Calculate is the whole pipeline: trim, parse, evaluate, format. Every
// failure comes back as an "ERROR: " string.
func Calculate(expr string) string {
	return Format(Evaluate(strings.TrimSpace(expr)))
}
