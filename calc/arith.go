package calc

import (
	"errors"
	"math"
	"strconv"
)

// Arithmetic faults. Their text is what the model sees after the ERROR:
// prefix.
var (
	errDivisionByZero  = errors.New("division by zero")
	errModuloByZero    = errors.New("integer division or modulo by zero")
	errZeroNegativePow = errors.New("0.0 cannot be raised to a negative power")
	errDomain          = errors.New("math domain error")
	errRange           = errors.New("numerical result out of range")
	errRoundInfinity   = errors.New("cannot convert float infinity to integer")
	errRoundNaN        = errors.New("cannot convert float NaN to integer")
	errNotInteger      = errors.New("'float' object cannot be interpreted as an integer")
	errIntTooLarge     = errors.New("int too large to convert to float")
	errRoundTooLarge   = errors.New("rounded value too large to represent")
)

func add(a, b float64) (float64, error) { return a + b, nil }
func sub(a, b float64) (float64, error) { return a - b, nil }
func mul(a, b float64) (float64, error) { return a * b, nil }

func div(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errDivisionByZero
	}
	return a / b, nil
}

func floorDiv(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errModuloByZero
	}
	q, _ := divmod(a, b)
	return q, nil
}

func mod(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errModuloByZero
	}
	_, r := divmod(a, b)
	return r, nil
}

// divmod returns the floored quotient and a remainder carrying the sign of
// the divisor, so that q*b + r == a holds as closely as floats allow.
func divmod(a, b float64) (q, r float64) {
	r = math.Mod(a, b)
	d := (a - r) / b
	if r != 0 {
		if (b < 0) != (r < 0) {
			r += b
			d -= 1
		}
	} else {
		r = math.Copysign(0, b)
	}
	if d != 0 {
		q = math.Floor(d)
		if d-q > 0.5 {
			q++
		}
	} else {
		q = math.Copysign(0, a/b)
	}
	return q, r
}

func pow(a, b float64) (float64, error) {
	if a == 0 && b < 0 {
		return 0, errZeroNegativePow
	}
	if a < 0 && !math.IsInf(a, 0) && !math.IsInf(b, 0) && !math.IsNaN(b) && b != math.Trunc(b) {
		return 0, errDomain
	}
	r := math.Pow(a, b)
	if math.IsInf(r, 0) && !math.IsInf(a, 0) && !math.IsInf(b, 0) {
		return 0, errRange
	}
	return r, nil
}

func uplus(a float64) float64  { return a }
func uminus(a float64) float64 { return -a }

func sqrt(args []float64) (float64, error) {
	x := args[0]
	if x < 0 {
		return 0, errDomain
	}
	return math.Sqrt(x), nil
}

func logN(args []float64) (float64, error) {
	x := args[0]
	if x <= 0 {
		return 0, errDomain
	}
	num := math.Log(x)
	if len(args) == 1 {
		return num, nil
	}
	base := args[1]
	if base <= 0 {
		return 0, errDomain
	}
	den := math.Log(base)
	if den == 0 {
		return 0, errDivisionByZero
	}
	return num / den, nil
}

func log10(args []float64) (float64, error) {
	x := args[0]
	if x <= 0 {
		return 0, errDomain
	}
	return math.Log10(x), nil
}

// trig wraps a periodic function; infinities have no defined value.
func trig(fn func(float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		x := args[0]
		if math.IsInf(x, 0) {
			return 0, errDomain
		}
		return fn(x), nil
	}
}

func abs(args []float64) (float64, error) {
	return math.Abs(args[0]), nil
}

// round rounds half to even. With a second argument it rounds to that many
// decimal places, which may be negative.
func round(args []float64) (float64, error) {
	x := args[0]
	if len(args) == 1 {
		switch {
		case math.IsInf(x, 0):
			return 0, errRoundInfinity
		case math.IsNaN(x):
			return 0, errRoundNaN
		}
		return math.RoundToEven(x), nil
	}

	nd := args[1]
	if nd != math.Trunc(nd) || math.IsInf(nd, 0) || math.IsNaN(nd) {
		return 0, errNotInteger
	}
	if math.IsInf(x, 0) || math.IsNaN(x) || x == 0 {
		return x, nil
	}

	switch {
	case nd > 323:
		return x, nil
	case nd < -308:
		return math.Copysign(0, x), nil
	case nd >= 0:
		// strconv rounds the exact binary value, so 2.675 stays below the tie
		// and rounds down, like the decimal-exact rounding users expect.
		r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', int(nd), 64), 64)
		if err != nil {
			return 0, err
		}
		return r, nil
	default:
		scale := math.Pow(10, -nd)
		r := math.RoundToEven(x/scale) * scale
		if math.IsInf(r, 0) {
			return 0, errRoundTooLarge
		}
		return r, nil
	}
}
