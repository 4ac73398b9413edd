package calc

import (
	"errors"
	"math/big"
	"slices"
	"strconv"
	"strings"
)

// maxDepth bounds recursion so hostile input like "((((...))))" or "----1"
// fails as a syntax error instead of exhausting the stack.
const maxDepth = 500

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

var assignOps = map[string]bool{
	"=": true, ":=": true, "+=": true, "-=": true, "*=": true, "/=": true,
	"//=": true, "%=": true, "**=": true, "@=": true, "&=": true, "|=": true,
	"^=": true, ">>=": true, "<<=": true,
}

var binaryTokens = map[string]Operator{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "//": OpFloorDiv,
	"%": OpMod, "@": OpMatMul, "<<": OpLShift, ">>": OpRShift,
	"|": OpBitOr, "^": OpBitXor, "&": OpBitAnd,
}

// Parse turns expr into a syntax tree.
//
// The grammar is the full expression grammar of the calculator's source
// language, so input like a.b or "x"[0] parses and is rejected later by Eval.
// Statements, assignments and multiple expressions are syntax errors here.
func Parse(expr string) (Node, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parseInput()
}

type parser struct {
	tokens []token
	i      int
	depth  int
}

func (p *parser) peek() token { return p.tokens[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n < len(p.tokens) {
		return p.tokens[p.i+n]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) advance() token {
	tok := p.tokens[p.i]
	if tok.kind != tokEOF {
		p.i++
	}
	return tok
}

func (p *parser) isOp(text string) bool {
	tok := p.peek()
	return tok.kind == tokOp && tok.text == text
}

func (p *parser) isKeyword(word string) bool {
	tok := p.peek()
	return tok.kind == tokName && tok.text == word
}

func (p *parser) expectOp(text string) (token, error) {
	if !p.isOp(text) {
		return token{}, p.unexpected(p.peek())
	}
	return p.advance(), nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return syntaxErrorf(p.peek().pos, "expression is too deeply nested")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) unexpected(tok token) *Error {
	switch {
	case tok.kind == tokEOF:
		return syntaxErrorf(tok.pos, "unexpected end of expression")
	case tok.kind == tokNewline, tok.kind == tokOp && tok.text == ";":
		return syntaxErrorf(tok.pos, "multiple statements are not allowed")
	case tok.kind == tokOp && assignOps[tok.text]:
		return syntaxErrorf(tok.pos, "assignment is not allowed")
	case tok.kind == tokName && keywords[tok.text]:
		return syntaxErrorf(tok.pos, "invalid syntax: unexpected keyword %q at offset %d", tok.text, tok.pos)
	default:
		return syntaxErrorf(tok.pos, "invalid syntax: unexpected %q at offset %d", tok.text, tok.pos)
	}
}

func (p *parser) parseInput() (Node, error) {
	p.skipNewlines()
	if p.peek().kind == tokEOF {
		return nil, syntaxErrorf(0, "empty expression")
	}
	node, err := p.parseTestList()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokNewline {
		p.skipNewlines()
		if tok := p.peek(); tok.kind != tokEOF {
			return nil, syntaxErrorf(tok.pos, "multiple statements are not allowed")
		}
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.unexpected(tok)
	}
	return node, nil
}

func (p *parser) skipNewlines() {
	for p.peek().kind == tokNewline {
		p.advance()
	}
}

// startsExpression reports whether tok can begin an expression.
func startsExpression(tok token) bool {
	switch tok.kind {
	case tokNumber, tokString:
		return true
	case tokName:
		switch tok.text {
		case "True", "False", "None", "not", "lambda":
			return true
		}
		return !keywords[tok.text]
	case tokOp:
		switch tok.text {
		case "(", "[", "{", "+", "-", "~", "*", "...":
			return true
		}
	}
	return false
}

// parseTestList parses a comma separated list, producing a Tuple when a
// comma is present.
func (p *parser) parseTestList() (Node, error) {
	start := p.peek().pos
	first, err := p.parseStarOrExpr()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	elts := []Node{first}
	for p.isOp(",") {
		p.advance()
		if !startsExpression(p.peek()) {
			break
		}
		next, err := p.parseStarOrExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, next)
	}
	return &Tuple{pos: pos(start), Elts: elts}, nil
}

func (p *parser) parseStarOrExpr() (Node, error) {
	if p.isOp("*") {
		tok := p.advance()
		x, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		return &Starred{pos: pos(tok.pos), X: x}, nil
	}
	return p.parseExpression()
}

func (p *parser) parseExpression() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if p.isKeyword("lambda") {
		return p.parseLambda()
	}
	start := p.peek().pos
	body, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("if") {
		return body, nil
	}
	p.advance()
	test, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		return nil, p.unexpected(p.peek())
	}
	p.advance()
	orElse, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &IfExp{pos: pos(start), Test: test, Body: body, Else: orElse}, nil
}

func (p *parser) parseLambda() (Node, error) {
	tok := p.advance()
	var params []string
	for !p.isOp(":") {
		switch cur := p.peek(); {
		case cur.kind == tokOp && (cur.text == "*" || cur.text == "**" || cur.text == "/"):
			p.advance()
			if p.peek().kind == tokName && !keywords[p.peek().text] {
				params = append(params, p.advance().text)
			}
		case cur.kind == tokName && !keywords[cur.text]:
			params = append(params, p.advance().text)
			if p.isOp("=") {
				p.advance()
				if _, err := p.parseExpression(); err != nil {
					return nil, err
				}
			}
		default:
			return nil, p.unexpected(cur)
		}
		if !p.isOp(",") {
			break
		}
		p.advance()
	}
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Lambda{pos: pos(tok.pos), Params: params, Body: body}, nil
}

func (p *parser) parseOr() (Node, error) {
	return p.parseBoolChain("or", OpOr, p.parseAnd)
}

func (p *parser) parseAnd() (Node, error) {
	return p.parseBoolChain("and", OpAnd, p.parseNot)
}

func (p *parser) parseBoolChain(word string, op Operator, next func() (Node, error)) (Node, error) {
	start := p.peek().pos
	first, err := next()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword(word) {
		return first, nil
	}
	values := []Node{first}
	for p.isKeyword(word) {
		p.advance()
		v, err := next()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &BoolOp{pos: pos(start), Op: op, Values: values}, nil
}

func (p *parser) parseNot() (Node, error) {
	if !p.isKeyword("not") {
		return p.parseComparison()
	}
	tok := p.advance()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return &UnaryOp{pos: pos(tok.pos), Op: OpNot, Operand: operand}, nil
}

func (p *parser) comparisonOp() (Operator, bool) {
	tok := p.peek()
	switch {
	case tok.kind == tokOp:
		switch tok.text {
		case "<":
			return OpLt, true
		case ">":
			return OpGt, true
		case "==":
			return OpEq, true
		case ">=":
			return OpGtE, true
		case "<=":
			return OpLtE, true
		case "!=":
			return OpNotEq, true
		}
	case tok.kind == tokName && tok.text == "in":
		return OpIn, true
	case tok.kind == tokName && tok.text == "is":
		if next := p.peekAt(1); next.kind == tokName && next.text == "not" {
			return OpIsNot, true
		}
		return OpIs, true
	case tok.kind == tokName && tok.text == "not":
		if next := p.peekAt(1); next.kind == tokName && next.text == "in" {
			return OpNotIn, true
		}
	}
	return OpInvalid, false
}

func (p *parser) parseComparison() (Node, error) {
	start := p.peek().pos
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	var ops []Operator
	var comparators []Node
	for {
		op, ok := p.comparisonOp()
		if !ok {
			break
		}
		p.advance()
		if op == OpIsNot || op == OpNotIn {
			p.advance()
		}
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comparators = append(comparators, right)
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &Compare{pos: pos(start), Left: left, Ops: ops, Comparators: comparators}, nil
}

// binaryLevel parses a left-associative chain of the given operator tokens.
func (p *parser) binaryLevel(next func() (Node, error), ops ...string) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || !slices.Contains(ops, tok.text) {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{pos: pos(tok.pos), Op: binaryTokens[tok.text], Left: left, Right: right}
	}
}

func (p *parser) parseBitOr() (Node, error)  { return p.binaryLevel(p.parseBitXor, "|") }
func (p *parser) parseBitXor() (Node, error) { return p.binaryLevel(p.parseBitAnd, "^") }
func (p *parser) parseBitAnd() (Node, error) { return p.binaryLevel(p.parseShift, "&") }
func (p *parser) parseShift() (Node, error)  { return p.binaryLevel(p.parseArith, "<<", ">>") }
func (p *parser) parseArith() (Node, error)  { return p.binaryLevel(p.parseTerm, "+", "-") }
func (p *parser) parseTerm() (Node, error) {
	return p.binaryLevel(p.parseFactor, "*", "/", "//", "%", "@")
}

func (p *parser) parseFactor() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	tok := p.peek()
	if tok.kind == tokOp && (tok.text == "+" || tok.text == "-" || tok.text == "~") {
		p.advance()
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		op := OpUAdd
		switch tok.text {
		case "-":
			op = OpUSub
		case "~":
			op = OpInvert
		}
		return &UnaryOp{pos: pos(tok.pos), Op: op, Operand: operand}, nil
	}
	return p.parsePower()
}

// parsePower handles **, which is right associative and binds tighter than
// a unary operator on its left: -2 ** 2 is -(2 ** 2).
func (p *parser) parsePower() (Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.isOp("**") {
		return base, nil
	}
	tok := p.advance()
	exp, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &BinaryOp{pos: pos(tok.pos), Op: OpPow, Left: base, Right: exp}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp {
			return x, nil
		}
		switch tok.text {
		case "(":
			p.advance()
			x, err = p.parseCall(x, tok.pos)
		case "[":
			p.advance()
			x, err = p.parseSubscript(x, tok.pos)
		case ".":
			p.advance()
			name := p.peek()
			if name.kind != tokName || keywords[name.text] {
				return nil, p.unexpected(name)
			}
			p.advance()
			x = &Attribute{pos: pos(tok.pos), X: x, Name: name.text}
		default:
			return x, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseCall(fn Node, at int) (Node, error) {
	call := &Call{pos: pos(at), Func: fn}
	for !p.isOp(")") {
		tok := p.peek()
		switch {
		case tok.kind == tokOp && (tok.text == "*" || tok.text == "**"):
			p.advance()
			x, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, &Starred{pos: pos(tok.pos), X: x, Double: tok.text == "**"})
		case tok.kind == tokName && !keywords[tok.text] && p.peekAt(1).kind == tokOp && p.peekAt(1).text == "=":
			p.advance()
			p.advance()
			v, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{Name: tok.text, Value: v})
		default:
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if p.isKeyword("for") || p.isKeyword("async") {
				arg, err = p.parseComprehension("generator", arg, nil, tok.pos)
				if err != nil {
					return nil, err
				}
			}
			call.Args = append(call.Args, arg)
		}
		if !p.isOp(",") {
			break
		}
		p.advance()
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) parseSubscript(x Node, at int) (Node, error) {
	var items []Node
	for !p.isOp("]") {
		item, err := p.parseSliceItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.isOp(",") {
			break
		}
		p.advance()
	}
	if _, err := p.expectOp("]"); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, syntaxErrorf(at, "invalid syntax: empty subscript at offset %d", at)
	}
	index := items[0]
	if len(items) > 1 {
		index = &Tuple{pos: pos(at), Elts: items}
	}
	return &Subscript{pos: pos(at), X: x, Index: index}, nil
}

func (p *parser) parseSliceItem() (Node, error) {
	start := p.peek().pos
	var lower Node
	if !p.isOp(":") {
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if !p.isOp(":") {
			return x, nil
		}
		lower = x
	}
	sl := &Slice{pos: pos(start), Lower: lower}
	p.advance()
	if !p.isOp(":") && !p.isOp("]") && !p.isOp(",") {
		upper, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		sl.Upper = upper
	}
	if p.isOp(":") {
		p.advance()
		if !p.isOp("]") && !p.isOp(",") {
			step, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			sl.Step = step
		}
	}
	return sl, nil
}

func (p *parser) parseAtom() (Node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNumber:
		p.advance()
		return numberNode(tok)
	case tokString:
		var lit strings.Builder
		for p.peek().kind == tokString {
			lit.WriteString(p.advance().text)
		}
		return &String{pos: pos(tok.pos), Literal: lit.String()}, nil
	case tokName:
		switch tok.text {
		case "True", "False", "None":
			p.advance()
			return &Constant{pos: pos(tok.pos), Literal: tok.text}, nil
		}
		if keywords[tok.text] {
			return nil, p.unexpected(tok)
		}
		p.advance()
		return &Name{pos: pos(tok.pos), ID: tok.text}, nil
	case tokOp:
		switch tok.text {
		case "...":
			p.advance()
			return &Constant{pos: pos(tok.pos), Literal: "..."}, nil
		case "(":
			p.advance()
			return p.parseParen(tok.pos)
		case "[":
			p.advance()
			return p.parseList(tok.pos)
		case "{":
			p.advance()
			return p.parseBrace(tok.pos)
		}
	}
	return nil, p.unexpected(tok)
}

func (p *parser) parseParen(at int) (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if p.isOp(")") {
		p.advance()
		return &Tuple{pos: pos(at)}, nil
	}
	first, err := p.parseStarOrExpr()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("for") || p.isKeyword("async") {
		comp, err := p.parseComprehension("generator", first, nil, at)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	if p.isOp(")") {
		p.advance()
		return &Paren{pos: pos(at), X: first}, nil
	}
	if !p.isOp(",") {
		return nil, p.unexpected(p.peek())
	}
	elts := []Node{first}
	for p.isOp(",") {
		p.advance()
		if p.isOp(")") {
			break
		}
		next, err := p.parseStarOrExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, next)
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &Tuple{pos: pos(at), Elts: elts}, nil
}

func (p *parser) parseList(at int) (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	list := &List{pos: pos(at)}
	for !p.isOp("]") {
		elt, err := p.parseStarOrExpr()
		if err != nil {
			return nil, err
		}
		if len(list.Elts) == 0 && (p.isKeyword("for") || p.isKeyword("async")) {
			comp, err := p.parseComprehension("list", elt, nil, at)
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp("]"); err != nil {
				return nil, err
			}
			return comp, nil
		}
		list.Elts = append(list.Elts, elt)
		if !p.isOp(",") {
			break
		}
		p.advance()
	}
	if _, err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *parser) parseBrace(at int) (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if p.isOp("}") {
		p.advance()
		return &Dict{pos: pos(at)}, nil
	}

	dict := &Dict{pos: pos(at)}
	set := &Set{pos: pos(at)}
	isDict := false
	for i := 0; !p.isOp("}"); i++ {
		if p.isOp("**") {
			tok := p.advance()
			v, err := p.parseBitOr()
			if err != nil {
				return nil, err
			}
			isDict = true
			dict.Keys = append(dict.Keys, nil)
			dict.Values = append(dict.Values, &Starred{pos: pos(tok.pos), X: v, Double: true})
		} else {
			key, err := p.parseStarOrExpr()
			if err != nil {
				return nil, err
			}
			if p.isOp(":") && (i == 0 || isDict) {
				p.advance()
				isDict = true
				value, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if i == 0 && (p.isKeyword("for") || p.isKeyword("async")) {
					return p.closeBraceComprehension("dict", key, value, at)
				}
				dict.Keys = append(dict.Keys, key)
				dict.Values = append(dict.Values, value)
			} else {
				if isDict {
					return nil, p.unexpected(p.peek())
				}
				if i == 0 && (p.isKeyword("for") || p.isKeyword("async")) {
					return p.closeBraceComprehension("set", key, nil, at)
				}
				set.Elts = append(set.Elts, key)
			}
		}
		if !p.isOp(",") {
			break
		}
		p.advance()
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	if isDict {
		return dict, nil
	}
	return set, nil
}

func (p *parser) closeBraceComprehension(kind string, elt, value Node, at int) (Node, error) {
	comp, err := p.parseComprehension(kind, elt, value, at)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return comp, nil
}

// parseComprehension parses one or more "for ... in ... [if ...]" clauses
// following elt.
func (p *parser) parseComprehension(kind string, elt, value Node, at int) (Node, error) {
	comp := &Comprehension{pos: pos(at), Kind: kind, Elt: elt, Value: value}
	for p.isKeyword("for") || p.isKeyword("async") {
		if p.isKeyword("async") {
			p.advance()
			if !p.isKeyword("for") {
				return nil, p.unexpected(p.peek())
			}
		}
		p.advance()
		target, err := p.parseTargetList()
		if err != nil {
			return nil, err
		}
		if !p.isKeyword("in") {
			return nil, p.unexpected(p.peek())
		}
		p.advance()
		iter, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		gen := Generator{Target: target, Iter: iter}
		for p.isKeyword("if") {
			p.advance()
			cond, err := p.parseOrNoCond()
			if err != nil {
				return nil, err
			}
			gen.Ifs = append(gen.Ifs, cond)
		}
		comp.Generators = append(comp.Generators, gen)
	}
	return comp, nil
}

func (p *parser) parseOrNoCond() (Node, error) {
	if p.isKeyword("lambda") {
		return p.parseLambda()
	}
	return p.parseOr()
}

func (p *parser) parseTargetList() (Node, error) {
	start := p.peek().pos
	first, err := p.parseStarTarget()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	elts := []Node{first}
	for p.isOp(",") {
		p.advance()
		if p.isKeyword("in") {
			break
		}
		next, err := p.parseStarTarget()
		if err != nil {
			return nil, err
		}
		elts = append(elts, next)
	}
	return &Tuple{pos: pos(start), Elts: elts}, nil
}

func (p *parser) parseStarTarget() (Node, error) {
	if p.isOp("*") {
		tok := p.advance()
		x, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		return &Starred{pos: pos(tok.pos), X: x}, nil
	}
	return p.parseBitOr()
}

// numberNode converts a numeric token. Integers go through math/big so that
// hex, octal, binary and underscore forms share one path and values beyond
// float64 range are flagged rather than silently rounded.
func numberNode(tok token) (Node, error) {
	lit := tok.text
	if last := lit[len(lit)-1]; last == 'j' || last == 'J' {
		return &Imaginary{pos: pos(tok.pos), Literal: lit}, nil
	}
	clean := strings.ReplaceAll(lit, "_", "")
	isInt := !strings.ContainsAny(clean, ".eE") || strings.HasPrefix(strings.ToLower(clean), "0x")
	if isInt {
		// Base 0 would read a leading 0 as octal; the lexer already rejected
		// those, and all-zero forms like 000 are zero in any base.
		if strings.Trim(clean, "0") == "" {
			return &Number{pos: pos(tok.pos), Literal: lit, Value: 0, Integer: true}, nil
		}
		n, ok := new(big.Int).SetString(clean, 0)
		if !ok {
			return nil, syntaxErrorf(tok.pos, "invalid literal %q", lit)
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return &Number{pos: pos(tok.pos), Literal: lit, Value: f, Integer: true}, nil
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, syntaxErrorf(tok.pos, "invalid literal %q", lit)
	}
	return &Number{pos: pos(tok.pos), Literal: lit, Value: f}, nil
}
