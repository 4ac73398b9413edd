package calc

// Node is one element of a parsed expression tree.
//
// The set of implementations is closed by the unexported marker method. The
// parser produces every kind below; the evaluator only executes Number,
// BinaryOp, UnaryOp, Name, Call and Paren and rejects the rest.
type Node interface {
	Pos() int
	node()
}

// Operator identifies a binary or unary operator token.
type Operator uint8

const (
	OpInvalid Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpFloorDiv
	OpMod
	OpPow
	OpMatMul
	OpLShift
	OpRShift
	OpBitOr
	OpBitXor
	OpBitAnd
	OpUAdd
	OpUSub
	OpInvert
	OpNot
	OpAnd
	OpOr
	OpEq
	OpNotEq
	OpLt
	OpLtE
	OpGt
	OpGtE
	OpIn
	OpNotIn
	OpIs
	OpIsNot
)

var operatorNames = [...]string{
	OpInvalid:  "invalid",
	OpAdd:      "+",
	OpSub:      "-",
	OpMul:      "*",
	OpDiv:      "/",
	OpFloorDiv: "//",
	OpMod:      "%",
	OpPow:      "**",
	OpMatMul:   "@",
	OpLShift:   "<<",
	OpRShift:   ">>",
	OpBitOr:    "|",
	OpBitXor:   "^",
	OpBitAnd:   "&",
	OpUAdd:     "+",
	OpUSub:     "-",
	OpInvert:   "~",
	OpNot:      "not",
	OpAnd:      "and",
	OpOr:       "or",
	OpEq:       "==",
	OpNotEq:    "!=",
	OpLt:       "<",
	OpLtE:      "<=",
	OpGt:       ">",
	OpGtE:      ">=",
	OpIn:       "in",
	OpNotIn:    "not in",
	OpIs:       "is",
	OpIsNot:    "is not",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return "invalid"
}

type pos int

func (p pos) Pos() int { return int(p) }

// Number is a real numeric literal. Integer reports whether it was written
// as an integer; integers too large for a float64 carry Value = ±Inf.
type Number struct {
	pos
	Literal string
	Value   float64
	Integer bool
}

// Name is a bare identifier.
type Name struct {
	pos
	ID string
}

// BinaryOp is Left Op Right for arithmetic, bitwise and shift operators.
type BinaryOp struct {
	pos
	Op    Operator
	Left  Node
	Right Node
}

// UnaryOp is Op Operand for +, -, ~ and not.
type UnaryOp struct {
	pos
	Op      Operator
	Operand Node
}

// Keyword is a name=value argument in a call.
type Keyword struct {
	Name  string
	Value Node
}

// Call is Func(Args..., Keywords...).
type Call struct {
	pos
	Func     Node
	Args     []Node
	Keywords []Keyword
}

// Paren is a parenthesized expression.
type Paren struct {
	pos
	X Node
}

// String is a string or bytes literal, kept verbatim.
type String struct {
	pos
	Literal string
}

// Imaginary is a numeric literal with a j suffix.
type Imaginary struct {
	pos
	Literal string
}

// Constant is one of True, False, None or the ellipsis.
type Constant struct {
	pos
	Literal string
}

// Attribute is X.Name.
type Attribute struct {
	pos
	X    Node
	Name string
}

// Subscript is X[Index].
type Subscript struct {
	pos
	X     Node
	Index Node
}

// Slice is Lower:Upper:Step inside a subscript. Any part may be nil.
type Slice struct {
	pos
	Lower Node
	Upper Node
	Step  Node
}

// Compare is a comparison chain: Left Ops[0] Comparators[0] ...
type Compare struct {
	pos
	Left        Node
	Ops         []Operator
	Comparators []Node
}

// BoolOp is a chain of and/or.
type BoolOp struct {
	pos
	Op     Operator
	Values []Node
}

// IfExp is Body if Test else Else.
type IfExp struct {
	pos
	Test Node
	Body Node
	Else Node
}

// Lambda is lambda Params: Body.
type Lambda struct {
	pos
	Params []string
	Body   Node
}

// Starred is *X or **X in an argument list or display.
type Starred struct {
	pos
	X      Node
	Double bool
}

// Tuple, List and Set are displays. Dict pairs Keys with Values.
type Tuple struct {
	pos
	Elts []Node
}

type List struct {
	pos
	Elts []Node
}

type Set struct {
	pos
	Elts []Node
}

type Dict struct {
	pos
	Keys   []Node
	Values []Node
}

// Comprehension covers generator expressions and list, set and dict
// comprehensions. Value is only set for dict comprehensions.
type Comprehension struct {
	pos
	Kind       string
	Elt        Node
	Value      Node
	Generators []Generator
}

// Generator is one "for Target in Iter if Ifs..." clause.
type Generator struct {
	Target Node
	Iter   Node
	Ifs    []Node
}

func (*Number) node()        {}
func (*Name) node()          {}
func (*BinaryOp) node()      {}
func (*UnaryOp) node()       {}
func (*Call) node()          {}
func (*Paren) node()         {}
func (*String) node()        {}
func (*Imaginary) node()     {}
func (*Constant) node()      {}
func (*Attribute) node()     {}
func (*Subscript) node()     {}
func (*Slice) node()         {}
func (*Compare) node()       {}
func (*BoolOp) node()        {}
func (*IfExp) node()         {}
func (*Lambda) node()        {}
func (*Starred) node()       {}
func (*Tuple) node()         {}
func (*List) node()          {}
func (*Set) node()           {}
func (*Dict) node()          {}
func (*Comprehension) node() {}
