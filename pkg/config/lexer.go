package config

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokenType is the kind of a lexical token.
type tokenType int

const (
	tokEOF tokenType = iota
	tokNewline
	tokName
	tokKeyword
	tokInt
	tokFloat
	tokString
	tokBytes
	tokOp
)

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "newline"
	case tokName:
		return "name"
	case tokKeyword:
		return "keyword"
	case tokInt, tokFloat:
		return "number"
	case tokString:
		return "string"
	case tokBytes:
		return "bytes"
	case tokOp:
		return "operator"
	}
	return "token"
}

// token is a lexical token. Text holds the decoded value for strings and
// bytes, the spelling otherwise.
type token struct {
	Type  tokenType
	Text  string
	Int   *big.Int
	Float float64
	Pos   Pos

	// LineStart is set on the first token of a logical line.
	LineStart bool
}

// keywords are reserved words of the surrounding Python-like syntax.
// True, False and None are literals; the rest either build rejected
// expressions (lambda, not, and, or, if, for, in, is) or start statements
// the language does not support.
var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true,
	"yield": true,
}

// operators, longest first so that maximal munch works by prefix test.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"**", "//", "<<", ">>", "<=", ">=", "==", "!=", "->", ":=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

var simpleEscapes = map[byte]string{
	'\n': "", '\\': "\\", '\'': "'", '"': "\"", 'a': "\a", 'b': "\b",
	'f': "\f", 'n': "\n", 'r': "\r", 't': "\t", 'v': "\v",
}

// lexer turns source text into tokens.
type lexer struct {
	src       string
	pos       int
	line      int
	col       int
	depth     int
	lineStart bool
	tokens    []token
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1, lineStart: true}
}

// tokenize scans the whole source. Errors are KindParse errors carrying
// the offending position.
func tokenize(src string) ([]token, error) {
	lx := newLexer(src)
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		lx.tokens = append(lx.tokens, tok)
		if tok.Type == tokEOF {
			return lx.tokens, nil
		}
	}
}

func (lx *lexer) peekByte(off int) byte {
	if lx.pos+off < len(lx.src) {
		return lx.src[lx.pos+off]
	}
	return 0
}

func (lx *lexer) advance(n int) {
	for i := 0; i < n && lx.pos < len(lx.src); i++ {
		if lx.src[lx.pos] == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
		lx.pos++
	}
}

func (lx *lexer) here() Pos {
	return Pos{Line: lx.line, Col: lx.col}
}

func (lx *lexer) errorf(pos Pos, format string, args ...interface{}) error {
	return newError(KindParse, pos, format, args...)
}

func (lx *lexer) emit(tok token) token {
	tok.LineStart = lx.lineStart
	lx.lineStart = false
	return tok
}

func (lx *lexer) next() (token, error) {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			pos := lx.here()
			lx.advance(1)
			if lx.depth > 0 || lx.lineStart {
				lx.lineStart = lx.depth == 0
				continue
			}
			lx.lineStart = true
			return token{Type: tokNewline, Text: "\n", Pos: pos}, nil
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			lx.advance(1)
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance(1)
			}
		case c == '\\':
			if lx.peekByte(1) == '\n' {
				lx.advance(2)
				continue
			}
			if lx.peekByte(1) == '\r' && lx.peekByte(2) == '\n' {
				lx.advance(3)
				continue
			}
			return token{}, lx.errorf(lx.here(), "unexpected character after line continuation character")
		default:
			return lx.scanToken()
		}
	}
	pos := lx.here()
	if lx.depth > 0 {
		return token{}, lx.errorf(pos, "unexpected end of input inside brackets")
	}
	return token{Type: tokEOF, Pos: pos}, nil
}

func (lx *lexer) scanToken() (token, error) {
	pos := lx.here()
	c := lx.src[lx.pos]

	if isStringStart(lx.src[lx.pos:]) {
		return lx.scanString(pos)
	}
	if isDigit(c) || (c == '.' && isDigit(lx.peekByte(1))) {
		return lx.scanNumber(pos)
	}

	r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
	if r == '_' || unicode.IsLetter(r) {
		start := lx.pos
		for lx.pos < len(lx.src) {
			r, size = utf8.DecodeRuneInString(lx.src[lx.pos:])
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			lx.advance(size)
		}
		word := lx.src[start:lx.pos]
		if keywords[word] {
			return lx.emit(token{Type: tokKeyword, Text: word, Pos: pos}), nil
		}
		return lx.emit(token{Type: tokName, Text: word, Pos: pos}), nil
	}

	for _, op := range operators {
		if strings.HasPrefix(lx.src[lx.pos:], op) {
			lx.advance(len(op))
			switch op {
			case "(", "[", "{":
				lx.depth++
			case ")", "]", "}":
				if lx.depth == 0 {
					return token{}, lx.errorf(pos, "unmatched '%s'", op)
				}
				lx.depth--
			}
			return lx.emit(token{Type: tokOp, Text: op, Pos: pos}), nil
		}
	}

	return token{}, lx.errorf(pos, "invalid character %q", r)
}

// isStringStart reports whether s begins a (possibly prefixed) string.
func isStringStart(s string) bool {
	i := 0
	for i < len(s) && i < 2 && strings.ContainsRune("rRbBuU", rune(s[i])) {
		i++
	}
	if i < len(s) && (s[i] == '"' || s[i] == '\'') {
		return validStringPrefix(s[:i])
	}
	return false
}

func validStringPrefix(p string) bool {
	switch strings.ToLower(p) {
	case "", "r", "b", "u", "rb", "br":
		return true
	}
	return false
}

func (lx *lexer) scanString(pos Pos) (token, error) {
	prefix := ""
	for lx.src[lx.pos] != '"' && lx.src[lx.pos] != '\'' {
		prefix += string(lx.src[lx.pos])
		lx.advance(1)
	}
	lower := strings.ToLower(prefix)
	raw := strings.Contains(lower, "r")
	isBytes := strings.Contains(lower, "b")

	quote := lx.src[lx.pos : lx.pos+1]
	triple := strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(quote, 3))
	if triple {
		quote = strings.Repeat(quote, 3)
	}
	lx.advance(len(quote))

	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return token{}, lx.errorf(pos, "unterminated string literal")
		}
		if strings.HasPrefix(lx.src[lx.pos:], quote) {
			lx.advance(len(quote))
			break
		}
		c := lx.src[lx.pos]
		if c == '\n' && !triple {
			return token{}, lx.errorf(pos, "unterminated string literal")
		}
		if c != '\\' {
			r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
			if isBytes && r >= utf8.RuneSelf {
				return token{}, lx.errorf(lx.here(), "bytes can only contain ASCII literal characters")
			}
			sb.WriteString(lx.src[lx.pos : lx.pos+size])
			lx.advance(size)
			continue
		}
		if raw {
			sb.WriteByte('\\')
			lx.advance(1)
			if lx.pos < len(lx.src) {
				sb.WriteByte(lx.src[lx.pos])
				lx.advance(1)
			}
			continue
		}
		if err := lx.scanEscape(&sb, isBytes); err != nil {
			return token{}, err
		}
	}

	typ := tokString
	if isBytes {
		typ = tokBytes
	}
	return lx.emit(token{Type: typ, Text: sb.String(), Pos: pos}), nil
}

func (lx *lexer) scanEscape(sb *strings.Builder, isBytes bool) error {
	escPos := lx.here()
	lx.advance(1) // backslash
	if lx.pos >= len(lx.src) {
		return lx.errorf(escPos, "unterminated string literal")
	}
	c := lx.src[lx.pos]
	if s, ok := simpleEscapes[c]; ok {
		sb.WriteString(s)
		lx.advance(1)
		return nil
	}
	switch {
	case c >= '0' && c <= '7':
		n := 0
		digits := 0
		for digits < 3 && lx.pos < len(lx.src) && lx.src[lx.pos] >= '0' && lx.src[lx.pos] <= '7' {
			n = n*8 + int(lx.src[lx.pos]-'0')
			lx.advance(1)
			digits++
		}
		writeCode(sb, n, isBytes)
		return nil
	case c == 'x':
		return lx.scanHexEscape(sb, 2, isBytes, escPos)
	case c == 'u' && !isBytes:
		return lx.scanHexEscape(sb, 4, isBytes, escPos)
	case c == 'U' && !isBytes:
		return lx.scanHexEscape(sb, 8, isBytes, escPos)
	case c == 'N' && !isBytes:
		return lx.errorf(escPos, "named unicode escapes are not supported")
	}
	// Unknown escapes are kept verbatim.
	sb.WriteByte('\\')
	r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
	sb.WriteRune(r)
	lx.advance(size)
	return nil
}

func (lx *lexer) scanHexEscape(sb *strings.Builder, width int, isBytes bool, escPos Pos) error {
	lx.advance(1) // x, u or U
	if lx.pos+width > len(lx.src) {
		return lx.errorf(escPos, "truncated \\%c escape", lx.src[lx.pos-1])
	}
	n, err := strconv.ParseUint(lx.src[lx.pos:lx.pos+width], 16, 32)
	if err != nil {
		return lx.errorf(escPos, "invalid hexadecimal escape")
	}
	if n > unicode.MaxRune {
		return lx.errorf(escPos, "illegal Unicode character")
	}
	lx.advance(width)
	writeCode(sb, int(n), isBytes)
	return nil
}

func writeCode(sb *strings.Builder, n int, isBytes bool) {
	if isBytes || n < utf8.RuneSelf {
		sb.WriteByte(byte(n))
		return
	}
	sb.WriteRune(rune(n))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (lx *lexer) scanNumber(pos Pos) (token, error) {
	start := lx.pos
	c := lx.src[lx.pos]

	if c == '0' && strings.ContainsRune("xXoObB", rune(lx.peekByte(1))) {
		base := map[byte]int{'x': 16, 'X': 16, 'o': 8, 'O': 8, 'b': 2, 'B': 2}[lx.peekByte(1)]
		lx.advance(2)
		for lx.pos < len(lx.src) && (isHexDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
			lx.advance(1)
		}
		digits := strings.ReplaceAll(lx.src[start+2:lx.pos], "_", "")
		n, ok := new(big.Int).SetString(digits, base)
		if !ok || digits == "" {
			return token{}, lx.errorf(pos, "invalid number literal %q", lx.src[start:lx.pos])
		}
		return lx.emit(token{Type: tokInt, Text: lx.src[start:lx.pos], Int: n, Pos: pos}), nil
	}

	isFloat := false
	digitsRun := func() {
		for lx.pos < len(lx.src) && (isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
			lx.advance(1)
		}
	}
	digitsRun()
	if lx.pos < len(lx.src) && lx.src[lx.pos] == '.' {
		isFloat = true
		lx.advance(1)
		digitsRun()
	}
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'e' || lx.src[lx.pos] == 'E') {
		next := lx.peekByte(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(lx.peekByte(2))) {
			isFloat = true
			lx.advance(2)
			digitsRun()
		}
	}
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'j' || lx.src[lx.pos] == 'J') {
		return token{}, lx.errorf(pos, "complex literals are not supported")
	}

	text := lx.src[start:lx.pos]
	clean := strings.ReplaceAll(text, "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return token{}, lx.errorf(pos, "invalid number literal %q", text)
		}
		return lx.emit(token{Type: tokFloat, Text: text, Float: f, Pos: pos}), nil
	}
	if len(clean) > 1 && clean[0] == '0' && strings.Trim(clean, "0") != "" {
		return token{}, lx.errorf(pos, "leading zeros in decimal integer literals are not permitted")
	}
	n, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return token{}, lx.errorf(pos, "invalid number literal %q", text)
	}
	return lx.emit(token{Type: tokInt, Text: text, Int: n, Pos: pos}), nil
}

func (t token) describe() string {
	switch t.Type {
	case tokEOF, tokNewline:
		return t.Type.String()
	case tokString:
		return fmt.Sprintf("string %q", t.Text)
	}
	return fmt.Sprintf("'%s'", t.Text)
}
