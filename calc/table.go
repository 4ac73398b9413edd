package calc

import (
	"maps"
	"math"
	"slices"
)

// Function is a whitelisted callable with an inclusive arity range.
// Arguments at the IntegerArgs positions must be integer expressions.
type Function struct {
	Name        string
	MinArgs     int
	MaxArgs     int
	IntegerArgs []int
	Call        func(args []float64) (float64, error)
}

// binding is one entry of the name table: either a constant or a function.
type binding struct {
	constant float64
	function *Function
}

// The three tables below are the only things Eval can execute. They are
// filled at package init and never written again.
var (
	binaryOps = map[Operator]func(a, b float64) (float64, error){
		OpAdd:      add,
		OpSub:      sub,
		OpMul:      mul,
		OpDiv:      div,
		OpFloorDiv: floorDiv,
		OpMod:      mod,
		OpPow:      pow,
	}

	unaryOps = map[Operator]func(float64) float64{
		OpUAdd: uplus,
		OpUSub: uminus,
	}

	names = map[string]binding{
		"pi":    {constant: math.Pi},
		"e":     {constant: math.E},
		"sqrt":  fn("sqrt", 1, 1, sqrt),
		"log":   fn("log", 1, 2, logN),
		"log10": fn("log10", 1, 1, log10),
		"sin":   fn("sin", 1, 1, trig(math.Sin)),
		"cos":   fn("cos", 1, 1, trig(math.Cos)),
		"tan":   fn("tan", 1, 1, trig(math.Tan)),
		"abs":   fn("abs", 1, 1, abs),
		"round": integerArgs(fn("round", 1, 2, round), 1),
	}
)

func fn(name string, minArgs, maxArgs int, call func([]float64) (float64, error)) binding {
	return binding{function: &Function{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Call: call}}
}

func integerArgs(b binding, positions ...int) binding {
	b.function.IntegerArgs = positions
	return b
}

// Names lists every identifier the evaluator resolves, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(names))
}

// Functions lists the whitelisted callables, sorted by name.
func Functions() []Function {
	var out []Function
	for _, name := range Names() {
		if f := names[name].function; f != nil {
			out = append(out, *f)
		}
	}
	return out
}
