package calc

import (
	"fmt"
	"math"
)

// Eval computes the value of a tree produced by Parse.
//
// Only Number, BinaryOp, UnaryOp, Name, Call and Paren are executed; any other
// node, operator or identifier fails with an Unsupported error. Children are
// evaluated left to right before their parent.
func Eval(n Node) (float64, error) {
	switch n := n.(type) {
	case *Number:
		if n.Integer && math.IsInf(n.Value, 0) {
			return 0, evalError(n, errIntTooLarge.Error())
		}
		return n.Value, nil

	case *Paren:
		return Eval(n.X)

	case *BinaryOp:
		op, ok := binaryOps[n.Op]
		if !ok {
			return 0, unsupported(n, fmt.Sprintf("operator %s", n.Op))
		}
		left, err := Eval(n.Left)
		if err != nil {
			return 0, err
		}
		right, err := Eval(n.Right)
		if err != nil {
			return 0, err
		}
		v, err := op(left, right)
		if err != nil {
			return 0, evalError(n, err.Error())
		}
		return v, nil

	case *UnaryOp:
		op, ok := unaryOps[n.Op]
		if !ok {
			return 0, unsupported(n, fmt.Sprintf("unary operator %s", n.Op))
		}
		v, err := Eval(n.Operand)
		if err != nil {
			return 0, err
		}
		return op(v), nil

	case *Name:
		b, ok := names[n.ID]
		if !ok || b.function != nil {
			return 0, unsupported(n, fmt.Sprintf("name %q", n.ID))
		}
		return b.constant, nil

	case *Call:
		return evalCall(n)

	case nil:
		return 0, &Error{Kind: KindUnsupported, Reason: unsupportedReason, Detail: "nil node"}

	default:
		return 0, unsupported(n, fmt.Sprintf("%T", n))
	}
}

func evalCall(n *Call) (float64, error) {
	callee, ok := unparen(n.Func).(*Name)
	if !ok {
		return 0, unsupported(n, fmt.Sprintf("callee %T", unparen(n.Func)))
	}
	b, ok := names[callee.ID]
	if !ok || b.function == nil {
		return 0, unsupported(n, fmt.Sprintf("call to %q", callee.ID))
	}
	if len(n.Keywords) > 0 {
		return 0, unsupported(n, fmt.Sprintf("keyword argument to %s()", callee.ID))
	}

	fn := b.function
	args := make([]float64, 0, len(n.Args))
	for _, arg := range n.Args {
		if _, starred := arg.(*Starred); starred {
			return 0, unsupported(arg, fmt.Sprintf("starred argument to %s()", fn.Name))
		}
		v, err := Eval(arg)
		if err != nil {
			return 0, err
		}
		args = append(args, v)
	}

	if len(args) < fn.MinArgs || len(args) > fn.MaxArgs {
		return 0, evalError(n, arityMessage(fn, len(args)))
	}
	for _, i := range fn.IntegerArgs {
		if i < len(n.Args) && !integral(n.Args[i]) {
			return 0, evalError(n.Args[i], errNotInteger.Error())
		}
	}
	v, err := fn.Call(args)
	if err != nil {
		return 0, evalError(n, err.Error())
	}
	return v, nil
}

func unparen(n Node) Node {
	for {
		p, ok := n.(*Paren)
		if !ok {
			return n
		}
		n = p.X
	}
}

// integral reports whether n yields an integer rather than a float. Integer
// literals stay integers through + - * // % and non-negative powers; / and
// every function other than abs and one-argument round yield floats.
func integral(n Node) bool {
	switch n := n.(type) {
	case *Number:
		return n.Integer
	case *Paren:
		return integral(n.X)
	case *UnaryOp:
		return integral(n.Operand)
	case *BinaryOp:
		switch n.Op {
		case OpAdd, OpSub, OpMul, OpFloorDiv, OpMod:
			return integral(n.Left) && integral(n.Right)
		case OpPow:
			if !integral(n.Left) || !integral(n.Right) {
				return false
			}
			exp, err := Eval(n.Right)
			return err == nil && exp >= 0
		}
	case *Call:
		callee, ok := unparen(n.Func).(*Name)
		if !ok {
			return false
		}
		switch callee.ID {
		case "abs":
			return len(n.Args) == 1 && integral(n.Args[0])
		case "round":
			return len(n.Args) == 1 || (len(n.Args) == 2 && integral(n.Args[0]))
		}
	}
	return false
}

func arityMessage(fn *Function, got int) string {
	if fn.MinArgs == fn.MaxArgs {
		noun := "arguments"
		if fn.MinArgs == 1 {
			noun = "argument"
		}
		return fmt.Sprintf("%s() takes exactly %d %s (%d given)", fn.Name, fn.MinArgs, noun, got)
	}
	return fmt.Sprintf("%s() takes from %d to %d arguments (%d given)", fn.Name, fn.MinArgs, fn.MaxArgs, got)
}

// Evaluate parses and evaluates expr in one step.
func Evaluate(expr string) (float64, error) {
	n, err := Parse(expr)
	if err != nil {
		return 0, err
	}
	return Eval(n)
}
