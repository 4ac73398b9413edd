package calc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNewline
	tokNumber
	tokName
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// operators is ordered longest first so the scanner takes maximal munch.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"**", "//", "<<", ">>", "<=", ">=", "==", "!=", "->", ":=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

// stringPrefixes are the legal (case-insensitive) prefixes of a string literal.
var stringPrefixes = map[string]bool{
	"r": true, "u": true, "b": true, "f": true,
	"br": true, "rb": true, "fr": true, "rf": true,
}

type lexer struct {
	src    string
	offset int
	depth  int
	tokens []token
}

func tokenize(src string) ([]token, error) {
	lx := &lexer{src: src}
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		lx.tokens = append(lx.tokens, tok)
		if tok.kind == tokEOF {
			return lx.tokens, nil
		}
	}
}

func (lx *lexer) next() (token, error) {
	if err := lx.skipSpace(); err != nil {
		return token{}, err
	}
	if lx.offset >= len(lx.src) {
		return token{kind: tokEOF, pos: lx.offset}, nil
	}

	start := lx.offset
	c := lx.src[start]
	switch {
	case c == '\n':
		lx.offset++
		return token{kind: tokNewline, text: "\n", pos: start}, nil
	case isDigit(c) || (c == '.' && start+1 < len(lx.src) && isDigit(lx.src[start+1])):
		return lx.number()
	case c == '\'' || c == '"':
		return lx.str(start, start)
	}

	r, size := utf8.DecodeRuneInString(lx.src[start:])
	if isIdentStart(r) {
		lx.offset += size
		for lx.offset < len(lx.src) {
			r, size = utf8.DecodeRuneInString(lx.src[lx.offset:])
			if !isIdentPart(r) {
				break
			}
			lx.offset += size
		}
		word := lx.src[start:lx.offset]
		if lx.offset < len(lx.src) && (lx.src[lx.offset] == '\'' || lx.src[lx.offset] == '"') && stringPrefixes[strings.ToLower(word)] {
			return lx.str(start, lx.offset)
		}
		return token{kind: tokName, text: word, pos: start}, nil
	}

	for _, op := range operators {
		if strings.HasPrefix(lx.src[start:], op) {
			lx.offset += len(op)
			switch op {
			case "(", "[", "{":
				lx.depth++
			case ")", "]", "}":
				if lx.depth > 0 {
					lx.depth--
				}
			}
			return token{kind: tokOp, text: op, pos: start}, nil
		}
	}

	if r == utf8.RuneError {
		return token{}, syntaxErrorf(start, "invalid character at offset %d", start)
	}
	return token{}, syntaxErrorf(start, "invalid character %q at offset %d", r, start)
}

// skipSpace consumes blanks, comments and line continuations. Newlines inside
// brackets are insignificant, so they are skipped too.
func (lx *lexer) skipSpace() error {
	for lx.offset < len(lx.src) {
		switch c := lx.src[lx.offset]; c {
		case ' ', '\t', '\f', '\r':
			lx.offset++
		case '\n':
			if lx.depth == 0 {
				return nil
			}
			lx.offset++
		case '#':
			for lx.offset < len(lx.src) && lx.src[lx.offset] != '\n' {
				lx.offset++
			}
		case '\\':
			rest := lx.src[lx.offset+1:]
			switch {
			case strings.HasPrefix(rest, "\n"):
				lx.offset += 2
			case strings.HasPrefix(rest, "\r\n"):
				lx.offset += 3
			default:
				return syntaxErrorf(lx.offset, "unexpected character after line continuation character")
			}
		default:
			return nil
		}
	}
	return nil
}

func (lx *lexer) number() (token, error) {
	start := lx.offset
	src := lx.src

	if src[start] == '0' && start+1 < len(src) && strings.ContainsRune("xXoObB", rune(src[start+1])) {
		var valid func(byte) bool
		switch src[start+1] {
		case 'x', 'X':
			valid = isHexDigit
		case 'o', 'O':
			valid = func(c byte) bool { return c >= '0' && c <= '7' }
		default:
			valid = func(c byte) bool { return c == '0' || c == '1' }
		}
		lx.offset += 2
		if err := lx.digits(valid, true); err != nil {
			return token{}, err
		}
		if lx.offset == start+2 {
			return token{}, syntaxErrorf(start, "invalid literal %q", src[start:lx.offset])
		}
		return lx.finishNumber(start)
	}

	integer := true
	if src[start] != '.' {
		if err := lx.digits(isDigit, false); err != nil {
			return token{}, err
		}
	}
	if lx.offset < len(src) && src[lx.offset] == '.' {
		integer = false
		lx.offset++
		if lx.offset < len(src) && isDigit(src[lx.offset]) {
			if err := lx.digits(isDigit, false); err != nil {
				return token{}, err
			}
		}
	}
	if lx.offset < len(src) && (src[lx.offset] == 'e' || src[lx.offset] == 'E') {
		mark := lx.offset
		lx.offset++
		if lx.offset < len(src) && (src[lx.offset] == '+' || src[lx.offset] == '-') {
			lx.offset++
		}
		if lx.offset >= len(src) || !isDigit(src[lx.offset]) {
			return token{}, syntaxErrorf(mark, "invalid float literal %q", src[start:lx.offset])
		}
		integer = false
		if err := lx.digits(isDigit, false); err != nil {
			return token{}, err
		}
	}

	imaginary := lx.offset < len(src) && (src[lx.offset] == 'j' || src[lx.offset] == 'J')
	if integer && !imaginary {
		lit := strings.ReplaceAll(src[start:lx.offset], "_", "")
		if len(lit) > 1 && lit[0] == '0' && strings.Trim(lit, "0") != "" {
			return token{}, syntaxErrorf(start, "leading zeros in decimal integer literals are not permitted")
		}
	}
	return lx.finishNumber(start)
}

// finishNumber consumes an optional imaginary suffix and rejects literals that
// run straight into an identifier, such as 3abc.
func (lx *lexer) finishNumber(start int) (token, error) {
	if lx.offset < len(lx.src) && (lx.src[lx.offset] == 'j' || lx.src[lx.offset] == 'J') {
		lx.offset++
	}
	if lx.offset < len(lx.src) {
		r, _ := utf8.DecodeRuneInString(lx.src[lx.offset:])
		if isIdentPart(r) {
			return token{}, syntaxErrorf(start, "invalid decimal literal %q", lx.src[start:lx.offset+1])
		}
	}
	return token{kind: tokNumber, text: lx.src[start:lx.offset], pos: start}, nil
}

// digits consumes a run of digits with single underscores between them.
// leadingUnderscore allows the 0x_ff form used after a base prefix.
func (lx *lexer) digits(valid func(byte) bool, leadingUnderscore bool) error {
	src := lx.src
	start := lx.offset
	for lx.offset < len(src) {
		c := src[lx.offset]
		switch {
		case valid(c):
			lx.offset++
		case c == '_':
			prevOK := lx.offset > start && valid(src[lx.offset-1])
			if lx.offset == start && leadingUnderscore {
				prevOK = true
			}
			if !prevOK || lx.offset+1 >= len(src) || !valid(src[lx.offset+1]) {
				return syntaxErrorf(lx.offset, "invalid decimal literal")
			}
			lx.offset++
		default:
			return nil
		}
	}
	return nil
}

// str scans a string literal whose prefix begins at start and whose opening
// quote sits at quoteAt.
func (lx *lexer) str(start, quoteAt int) (token, error) {
	src := lx.src
	quote := src[quoteAt]
	delim := string(quote)
	if strings.HasPrefix(src[quoteAt:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	i := quoteAt + len(delim)
	for i < len(src) {
		switch {
		case src[i] == '\\':
			i += 2
			continue
		case strings.HasPrefix(src[i:], delim):
			lx.offset = i + len(delim)
			return token{kind: tokString, text: src[start:lx.offset], pos: start}, nil
		case src[i] == '\n' && len(delim) == 1:
			return token{}, syntaxErrorf(start, "unterminated string literal at offset %d", start)
		}
		i++
	}
	return token{}, syntaxErrorf(start, "unterminated string literal at offset %d", start)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
