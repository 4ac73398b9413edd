package calc

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"2 + 2", 4},
		{"1 / 4", 0.25},
		{"10 - 4 - 3", 3},
		{"2 * (3 + 4)", 14},
		{"-2 ** 2", -4},
		{"2 ** 3 ** 2", 512},
		{"2 ** -1", 0.5},
		{"+-+3", -3},
		{"7 // 2", 3},
		{"-7 // 2", -4},
		{"7.5 // 2", 3},
		{"-7 % 3", 2},
		{"7 % -3", -2},
		{"5.5 % 2", 1.5},
		{"sqrt(9)", 3},
		{"abs(-3.5)", 3.5},
		{"round(2.5)", 2},
		{"round(3.5)", 4},
		{"round(-2.5)", -2},
		{"round(3.14159, 2)", 3.14},
		{"round(2.675, 2)", 2.67},
		{"round(1234, -2)", 1200},
		{"round(1250, -2)", 1200},
		{"round(7, 400)", 7},
		{"round(2.675, (2))", 2.67},
		{"round(2.5, abs(-1))", 2.5},
		{"round(1234, round(-2.4))", 1200},
		{"round(1250, 4 // 2 - 4)", 1200},
		{"round(2.5, 2 ** 0)", 2},
		{"(sqrt)(4)", 2},
		{"((abs))(-3)", 3},
		{"sin(0)", 0},
		{"cos(0)", 1},
		{"pi", math.Pi},
		{"e", math.E},
		{"2 * pi", 2 * math.Pi},
		{"0x10 + 0b1", 17},
		{"1e400", math.Inf(1)},
		{"sqrt(16) + log10(100) * 0", 4},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Evaluate(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("transcendental functions", func(t *testing.T) {
		cases := []struct {
			in   string
			want float64
		}{
			{"log(e)", 1},
			{"log(8, 2)", 3},
			{"log(100, 10)", 2},
			{"log10(1000)", 3},
			{"tan(pi / 4)", 1},
			{"sin(pi / 2)", 1},
		}
		for _, tc := range cases {
			got, err := Evaluate(tc.in)
			require.NoError(t, err, tc.in)
			assert.InDelta(t, tc.want, got, 1e-12, tc.in)
		}
	})

	t.Run("signed zero from floor division", func(t *testing.T) {
		got, err := Evaluate("-0.5 // 1")
		require.NoError(t, err)
		assert.Equal(t, -1.0, got)

		got, err = Evaluate("0 // -3")
		require.NoError(t, err)
		assert.True(t, math.Signbit(got))
	})
}

func TestEvaluateFailures(t *testing.T) {
	unsupportedCases := []struct {
		in     string
		detail string
	}{
		{"x + 1", `name "x"`},
		{"sqrt", `name "sqrt"`},
		{"pi(2)", `call to "pi"`},
		{"print(1)", `call to "print"`},
		{"__import__('os')", `call to "__import__"`},
		{"a.b", "*calc.Attribute"},
		{"math.sqrt(4)", "callee *calc.Attribute"},
		{"(lambda: 4)()", "callee *calc.Lambda"},
		{"'abc'", "*calc.String"},
		{"2j", "*calc.Imaginary"},
		{"True", "*calc.Constant"},
		{"None", "*calc.Constant"},
		{"1 < 2", "*calc.Compare"},
		{"1 and 2", "*calc.BoolOp"},
		{"not 1", "unary operator not"},
		{"~1", "unary operator ~"},
		{"1 << 2", "operator <<"},
		{"6 & 3", "operator &"},
		{"1 @ 2", "operator @"},
		{"1 if 1 else 2", "*calc.IfExp"},
		{"lambda: 1", "*calc.Lambda"},
		{"1, 2", "*calc.Tuple"},
		{"[1, 2]", "*calc.List"},
		{"{1: 2}", "*calc.Dict"},
		{"[x for x in y]", "*calc.Comprehension"},
		{"sqrt(x=4)", "keyword argument to sqrt()"},
		{"sqrt(*[4])", "starred argument to sqrt()"},
		{"sqrt(y)", `name "y"`},
	}
	for _, tc := range unsupportedCases {
		t.Run(tc.in, func(t *testing.T) {
			_, err := Evaluate(tc.in)
			require.Error(t, err)
			assert.Equal(t, "Unsupported expression", err.Error())
			assert.ErrorIs(t, err, ErrUnsupported)
			assert.NotErrorIs(t, err, ErrEvaluation)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, KindUnsupported, cerr.Kind)
			assert.Equal(t, tc.detail, cerr.Detail)
		})
	}

	evalCases := []struct {
		in     string
		reason string
	}{
		{"1 / 0", "division by zero"},
		{"1 // 0", "integer division or modulo by zero"},
		{"5 % 0", "integer division or modulo by zero"},
		{"0 ** -1", "0.0 cannot be raised to a negative power"},
		{"(-8) ** (1 / 3)", "math domain error"},
		{"10.0 ** 400", "numerical result out of range"},
		{"sqrt(-1)", "math domain error"},
		{"log(0)", "math domain error"},
		{"log(8, -2)", "math domain error"},
		{"log(8, 1)", "division by zero"},
		{"log10(-1)", "math domain error"},
		{"sin(1e400)", "math domain error"},
		{"round(1e400)", "cannot convert float infinity to integer"},
		{"round(1.5, 0.5)", "'float' object cannot be interpreted as an integer"},
		{"round(2.5, 1.0)", "'float' object cannot be interpreted as an integer"},
		{"round(2.5, 4 / 2)", "'float' object cannot be interpreted as an integer"},
		{"round(2.5, pi)", "'float' object cannot be interpreted as an integer"},
		{"round(2.5, 2 ** -1)", "'float' object cannot be interpreted as an integer"},
		{"round(2.5, abs(1.0))", "'float' object cannot be interpreted as an integer"},
		{"round(25, round(2.5, 1))", "'float' object cannot be interpreted as an integer"},
		{"sqrt(1, 2)", "sqrt() takes exactly 1 argument (2 given)"},
		{"sqrt()", "sqrt() takes exactly 1 argument (0 given)"},
		{"log()", "log() takes from 1 to 2 arguments (0 given)"},
		{"round(1, 2, 3)", "round() takes from 1 to 2 arguments (3 given)"},
		{"1" + zeros(400), "int too large to convert to float"},
		{"sqrt(1 / 0)", "division by zero"},
	}
	for _, tc := range evalCases {
		t.Run(tc.in, func(t *testing.T) {
			_, err := Evaluate(tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.reason, err.Error())
			assert.ErrorIs(t, err, ErrEvaluation)
		})
	}

	t.Run("unsupported wins over later arithmetic faults", func(t *testing.T) {
		_, err := Evaluate("x + 1 / 0")
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("syntax errors pass through", func(t *testing.T) {
		_, err := Evaluate("x = 1")
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("nil node", func(t *testing.T) {
		_, err := Eval(nil)
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestEvaluateNearLibm(t *testing.T) {
	// math is not correctly rounded everywhere; results may be off in the
	// last digit but not further.
	tests := []struct {
		in   string
		want float64
	}{
		{"-8 ** (1 / 3)", -2},
		{"sin(pi)", 0},
		{"cos(pi / 3)", 0.5},
		{"log(1000, 10)", 3},
		{"tan(pi / 4)", 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Evaluate(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestEvaluateConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				got, err := Evaluate("sqrt(16) * 2 + 1")
				assert.NoError(t, err, "worker %d", i)
				assert.Equal(t, 9.0, got)
			}
		}()
	}
	wg.Wait()
}

func TestTables(t *testing.T) {
	assert.Equal(t, []string{"abs", "cos", "e", "log", "log10", "pi", "round", "sin", "sqrt", "tan"}, Names())

	var fnames []string
	for _, f := range Functions() {
		fnames = append(fnames, f.Name)
		assert.LessOrEqual(t, f.MinArgs, f.MaxArgs, f.Name)
	}
	assert.Equal(t, []string{"abs", "cos", "log", "log10", "round", "sin", "sqrt", "tan"}, fnames)
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
