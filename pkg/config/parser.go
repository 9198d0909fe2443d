package config

import (
	"math/big"
)

// Parse parses source text into a list of top-level statements. The whole
// text is parsed before anything is executed, so a syntax error anywhere
// in a source prevents all of its statements from running.
func Parse(src string) ([]Stmt, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseFile()
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(off int) token {
	if p.pos+off < len(p.toks) {
		return p.toks[p.pos+off]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.Type != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isOp(text string) bool {
	tok := p.peek()
	return tok.Type == tokOp && tok.Text == text
}

func (p *parser) isKeyword(word string) bool {
	tok := p.peek()
	return tok.Type == tokKeyword && tok.Text == word
}

func (p *parser) acceptOp(text string) bool {
	if p.isOp(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectOp(text string) (token, error) {
	if !p.isOp(text) {
		return token{}, p.unexpected()
	}
	return p.next(), nil
}

func (p *parser) unexpected() error {
	tok := p.peek()
	return newError(KindParse, tok.Pos, "invalid syntax: unexpected %s", tok.describe())
}

func (p *parser) parseFile() ([]Stmt, error) {
	var stmts []Stmt
	for {
		for p.peek().Type == tokNewline || p.isOp(";") {
			p.next()
		}
		tok := p.peek()
		if tok.Type == tokEOF {
			return stmts, nil
		}
		if tok.LineStart && tok.Pos.Col > 1 {
			return nil, newError(KindParse, tok.Pos, "unexpected indent")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)

		switch end := p.peek(); {
		case end.Type == tokNewline, end.Type == tokEOF, end.Type == tokOp && end.Text == ";":
		default:
			return nil, p.unexpected()
		}
	}
}

// augmentedOps are the assignment operators of the surrounding syntax that
// the language does not support.
var augmentedOps = map[string]bool{
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true, "%=": true,
	"**=": true, ">>=": true, "<<=": true, "&=": true, "|=": true, "^=": true,
	"@=": true, ":=": true,
}

func (p *parser) parseStatement() (Stmt, error) {
	start := p.peek()
	if start.Type == tokKeyword && !startsExpr(start.Text) {
		return nil, newError(KindParse, start.Pos, "This is not valid code.")
	}

	first, err := p.parseTestList()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	if tok.Type == tokOp && augmentedOps[tok.Text] {
		return nil, newError(KindParse, tok.Pos, "This is not valid code.")
	}
	if tok.Type == tokOp && tok.Text == ":" {
		return nil, newError(KindParse, tok.Pos, "This is not valid code.")
	}
	if !p.isOp("=") {
		return &ExprStmt{Pos: start.Pos, X: first}, nil
	}

	exprs := []Expr{first}
	for p.acceptOp("=") {
		e, err := p.parseTestList()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return &AssignStmt{
		Pos:     start.Pos,
		Targets: exprs[:len(exprs)-1],
		Value:   exprs[len(exprs)-1],
	}, nil
}

// startsExpr reports whether a keyword can begin an expression.
func startsExpr(word string) bool {
	switch word {
	case "True", "False", "None", "lambda", "not", "await":
		return true
	}
	return false
}

// parseTestList parses one or more comma separated expressions. More than
// one, or a trailing comma, yields a tuple.
func (p *parser) parseTestList() (Expr, error) {
	start := p.peek().Pos
	first, err := p.parseTestOrStar()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	elems := []Expr{first}
	for p.acceptOp(",") {
		if !p.canStartExpr() {
			break
		}
		e, err := p.parseTestOrStar()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return &Sequence{Pos: start, Kind: TupleSeq, Elems: elems}, nil
}

func (p *parser) canStartExpr() bool {
	tok := p.peek()
	switch tok.Type {
	case tokName, tokInt, tokFloat, tokString, tokBytes:
		return true
	case tokKeyword:
		return startsExpr(tok.Text)
	case tokOp:
		switch tok.Text {
		case "(", "[", "{", "-", "+", "~", "*", "...":
			return true
		}
	}
	return false
}

func (p *parser) parseTestOrStar() (Expr, error) {
	if p.isOp("*") {
		tok := p.next()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Starred{Pos: tok.Pos, X: x}, nil
	}
	return p.parseTest()
}

// parseTest parses a full expression: lambda, conditional or boolean.
func (p *parser) parseTest() (Expr, error) {
	if p.isKeyword("lambda") {
		return p.parseLambda()
	}
	start := p.peek().Pos
	x, err := p.parseOrTest()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("if") {
		return x, nil
	}
	p.next()
	cond, err := p.parseOrTest()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		return nil, p.unexpected()
	}
	p.next()
	els, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	return &Conditional{Pos: start, Then: x, Cond: cond, Else: els}, nil
}

func (p *parser) parseLambda() (Expr, error) {
	tok := p.next()
	var params []string
	for !p.isOp(":") {
		switch next := p.peek(); {
		case next.Type == tokName:
			params = append(params, next.Text)
			p.next()
			if p.acceptOp("=") {
				if _, err := p.parseTest(); err != nil {
					return nil, err
				}
			}
		case next.Type == tokOp && (next.Text == "*" || next.Text == "**" || next.Text == "/"):
			p.next()
		default:
			return nil, p.unexpected()
		}
		if !p.acceptOp(",") && !p.isOp(":") {
			return nil, p.unexpected()
		}
	}
	p.next()
	body, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	return &Lambda{Pos: tok.Pos, Params: params, Body: body}, nil
}

func (p *parser) parseOrTest() (Expr, error) {
	x, err := p.parseAndTest()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		tok := p.next()
		y, err := p.parseAndTest()
		if err != nil {
			return nil, err
		}
		x = &Binary{Pos: tok.Pos, Op: "or", X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseAndTest() (Expr, error) {
	x, err := p.parseNotTest()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		tok := p.next()
		y, err := p.parseNotTest()
		if err != nil {
			return nil, err
		}
		x = &Binary{Pos: tok.Pos, Op: "and", X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseNotTest() (Expr, error) {
	if p.isKeyword("not") {
		tok := p.next()
		x, err := p.parseNotTest()
		if err != nil {
			return nil, err
		}
		return &Unary{Pos: tok.Pos, Op: "not", X: x}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"<": true, ">": true, "==": true, ">=": true, "<=": true, "!=": true,
}

func (p *parser) parseComparison() (Expr, error) {
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		var op string
		switch {
		case tok.Type == tokOp && comparisonOps[tok.Text]:
			op = tok.Text
			p.next()
		case tok.Type == tokKeyword && tok.Text == "in":
			op = "in"
			p.next()
		case tok.Type == tokKeyword && tok.Text == "not" && p.peekAt(1).Type == tokKeyword && p.peekAt(1).Text == "in":
			op = "not in"
			p.next()
			p.next()
		case tok.Type == tokKeyword && tok.Text == "is":
			op = "is"
			p.next()
			if p.isKeyword("not") {
				op = "is not"
				p.next()
			}
		default:
			return x, nil
		}
		y, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		x = &Binary{Pos: tok.Pos, Op: op, X: x, Y: y}
	}
}

// binaryLevels lists the binary operator precedence levels from loosest
// to tightest, below comparisons and above unary operators.
var binaryLevels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "//", "%", "@"},
}

// parseExpr parses a bitwise-or expression.
func (p *parser) parseExpr() (Expr, error) {
	return p.parseBinary(0)
}

func (p *parser) parseBinary(level int) (Expr, error) {
	if level == len(binaryLevels) {
		return p.parseFactor()
	}
	x, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != tokOp || !contains(binaryLevels[level], tok.Text) {
			return x, nil
		}
		p.next()
		y, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		x = &Binary{Pos: tok.Pos, Op: tok.Text, X: x, Y: y}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// parseFactor parses unary +, - and ~. A minus written directly before a
// number token folds into a negative literal; any other unary operator,
// including a minus before a parenthesised or already negative number,
// stays a Unary node for the safety validator to reject.
func (p *parser) parseFactor() (Expr, error) {
	tok := p.peek()
	if tok.Type == tokOp && (tok.Text == "+" || tok.Text == "-" || tok.Text == "~") {
		p.next()
		operand := p.peek()
		if tok.Text == "-" && (operand.Type == tokInt || operand.Type == tokFloat) {
			x, err := p.parsePower()
			if err != nil {
				return nil, err
			}
			if lit, ok := x.(*Literal); ok && lit.Pos == operand.Pos {
				switch lit.Kind {
				case IntLiteral:
					return &Literal{Pos: tok.Pos, Kind: IntLiteral, Int: new(big.Int).Neg(lit.Int)}, nil
				case FloatLiteral:
					return &Literal{Pos: tok.Pos, Kind: FloatLiteral, Float: -lit.Float}, nil
				}
			}
			return &Unary{Pos: tok.Pos, Op: tok.Text, X: x}, nil
		}
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Unary{Pos: tok.Pos, Op: tok.Text, X: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Expr, error) {
	x, err := p.parseAtomExpr()
	if err != nil {
		return nil, err
	}
	if p.isOp("**") {
		tok := p.next()
		y, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Binary{Pos: tok.Pos, Op: "**", X: x, Y: y}, nil
	}
	return x, nil
}

func (p *parser) parseAtomExpr() (Expr, error) {
	if p.isKeyword("await") {
		tok := p.next()
		x, err := p.parseAtomExpr()
		if err != nil {
			return nil, err
		}
		return &Unary{Pos: tok.Pos, Op: "await", X: x}, nil
	}
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != tokOp {
			return x, nil
		}
		switch tok.Text {
		case "(":
			p.next()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			x = &Call{Pos: x.Position(), Fn: x, Args: args}
		case "[":
			p.next()
			sub, err := p.parseSubscript()
			if err != nil {
				return nil, err
			}
			x = &Index{Pos: tok.Pos, X: x, Sub: sub}
		case ".":
			p.next()
			name := p.peek()
			if name.Type != tokName {
				return nil, p.unexpected()
			}
			p.next()
			x = &Attribute{Pos: tok.Pos, X: x, Name: name.Text}
		default:
			return x, nil
		}
	}
}

// parseSubscript parses the inside of `[...]` after an expression. Slice
// bounds are kept only so that the node can be rejected.
func (p *parser) parseSubscript() ([]Expr, error) {
	var sub []Expr
	for !p.isOp("]") {
		switch {
		case p.acceptOp(":"), p.acceptOp(","):
		default:
			e, err := p.parseTestOrStar()
			if err != nil {
				return nil, err
			}
			sub = append(sub, e)
		}
	}
	p.next()
	return sub, nil
}

func (p *parser) parseCallArgs() ([]Arg, error) {
	var args []Arg
	seenKeyword := false
	seenDoubleStar := false
	names := make(map[string]bool)

	for !p.isOp(")") {
		tok := p.peek()
		var arg Arg
		switch {
		case p.isOp("*"):
			p.next()
			v, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if seenDoubleStar {
				return nil, newError(KindParse, tok.Pos, "iterable argument unpacking follows keyword argument unpacking")
			}
			arg = Arg{Pos: tok.Pos, Kind: StarArg, Value: v}
		case p.isOp("**"):
			p.next()
			v, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			seenDoubleStar = true
			arg = Arg{Pos: tok.Pos, Kind: DoubleStarArg, Value: v}
		case tok.Type == tokName && p.peekAt(1).Type == tokOp && p.peekAt(1).Text == "=":
			p.next()
			p.next()
			v, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if names[tok.Text] {
				return nil, newError(KindParse, tok.Pos, "keyword argument repeated: %s", tok.Text)
			}
			names[tok.Text] = true
			seenKeyword = true
			arg = Arg{Pos: tok.Pos, Kind: KeywordArg, Name: tok.Text, Value: v}
		default:
			v, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if p.isKeyword("for") {
				v, err = p.parseComprehension(tok.Pos, "generator", v)
				if err != nil {
					return nil, err
				}
			}
			if seenDoubleStar {
				return nil, newError(KindParse, tok.Pos, "positional argument follows keyword argument unpacking")
			}
			if seenKeyword {
				return nil, newError(KindParse, tok.Pos, "positional argument follows keyword argument")
			}
			arg = Arg{Pos: tok.Pos, Kind: PositionalArg, Value: v}
		}
		args = append(args, arg)
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return args, nil
}

// parseComprehension parses the `for ... in ...` clauses following body.
func (p *parser) parseComprehension(pos Pos, kind string, body Expr) (Expr, error) {
	var iter Expr
	for p.isKeyword("for") {
		p.next()
		if _, err := p.parseExprList(); err != nil {
			return nil, err
		}
		if !p.isKeyword("in") {
			return nil, p.unexpected()
		}
		p.next()
		it, err := p.parseOrTest()
		if err != nil {
			return nil, err
		}
		if iter == nil {
			iter = it
		}
		for p.isKeyword("if") {
			p.next()
			if _, err := p.parseOrTest(); err != nil {
				return nil, err
			}
		}
	}
	return &Comprehension{Pos: pos, Kind: kind, Body: body, Iter: iter}, nil
}

// parseExprList parses comprehension targets: `x` or `x, y`.
func (p *parser) parseExprList() ([]Expr, error) {
	var list []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if !p.acceptOp(",") || p.isKeyword("in") {
			return list, nil
		}
	}
}

func (p *parser) parseAtom() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case tokName:
		p.next()
		return &Ident{Pos: tok.Pos, Name: tok.Text}, nil
	case tokKeyword:
		switch tok.Text {
		case "True", "False":
			p.next()
			return &Literal{Pos: tok.Pos, Kind: BoolLiteral, Bool: tok.Text == "True"}, nil
		case "None":
			p.next()
			return &Literal{Pos: tok.Pos, Kind: NoneLiteral}, nil
		}
	case tokInt:
		p.next()
		return &Literal{Pos: tok.Pos, Kind: IntLiteral, Int: tok.Int}, nil
	case tokFloat:
		p.next()
		return &Literal{Pos: tok.Pos, Kind: FloatLiteral, Float: tok.Float}, nil
	case tokString, tokBytes:
		return p.parseStrings()
	case tokOp:
		switch tok.Text {
		case "(":
			return p.parseParen()
		case "[":
			return p.parseList()
		case "{":
			return p.parseBrace()
		}
	}
	return nil, p.unexpected()
}

// parseStrings joins adjacent string literals.
func (p *parser) parseStrings() (Expr, error) {
	first := p.next()
	text := first.Text
	for {
		tok := p.peek()
		if tok.Type != tokString && tok.Type != tokBytes {
			break
		}
		if tok.Type != first.Type {
			return nil, newError(KindParse, tok.Pos, "cannot mix bytes and nonbytes literals")
		}
		text += tok.Text
		p.next()
	}
	kind := StringLiteral
	if first.Type == tokBytes {
		kind = BytesLiteral
	}
	return &Literal{Pos: first.Pos, Kind: kind, Str: text}, nil
}

func (p *parser) parseParen() (Expr, error) {
	open := p.next()
	if p.acceptOp(")") {
		return &Sequence{Pos: open.Pos, Kind: TupleSeq}, nil
	}
	first, err := p.parseTestOrStar()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("for") {
		gen, err := p.parseComprehension(open.Pos, "generator", first)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return gen, nil
	}
	if p.acceptOp(")") {
		if _, starred := first.(*Starred); starred {
			return nil, newError(KindParse, first.Position(), "cannot use starred expression here")
		}
		return first, nil
	}
	elems, err := p.parseElems(first, ")")
	if err != nil {
		return nil, err
	}
	return &Sequence{Pos: open.Pos, Kind: TupleSeq, Elems: elems}, nil
}

func (p *parser) parseList() (Expr, error) {
	open := p.next()
	if p.acceptOp("]") {
		return &Sequence{Pos: open.Pos, Kind: ListSeq}, nil
	}
	first, err := p.parseTestOrStar()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("for") {
		comp, err := p.parseComprehension(open.Pos, "list", first)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	elems, err := p.parseElems(first, "]")
	if err != nil {
		return nil, err
	}
	return &Sequence{Pos: open.Pos, Kind: ListSeq, Elems: elems}, nil
}

// parseElems parses the remaining comma separated elements of a sequence
// literal whose first element has been read, through the closing bracket.
func (p *parser) parseElems(first Expr, closer string) ([]Expr, error) {
	elems := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp(closer) {
			break
		}
		e, err := p.parseTestOrStar()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.expectOp(closer); err != nil {
		return nil, err
	}
	return elems, nil
}

func (p *parser) parseBrace() (Expr, error) {
	open := p.next()
	if p.acceptOp("}") {
		return &Dict{Pos: open.Pos}, nil
	}
	if p.isOp("**") {
		return p.parseDictEntries(open.Pos)
	}
	first, err := p.parseTestOrStar()
	if err != nil {
		return nil, err
	}
	if !p.isOp(":") {
		if p.isKeyword("for") {
			comp, err := p.parseComprehension(open.Pos, "set", first)
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp("}"); err != nil {
				return nil, err
			}
			return comp, nil
		}
		elems, err := p.parseElems(first, "}")
		if err != nil {
			return nil, err
		}
		return &Sequence{Pos: open.Pos, Kind: SetSeq, Elems: elems}, nil
	}

	p.next()
	value, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("for") {
		comp, err := p.parseComprehension(open.Pos, "dict", first)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	d := &Dict{Pos: open.Pos, Entries: []DictEntry{{Key: first, Value: value}}}
	if p.acceptOp(",") {
		rest, err := p.parseDictEntries(open.Pos)
		if err != nil {
			return nil, err
		}
		d.Entries = append(d.Entries, rest.(*Dict).Entries...)
		return d, nil
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return d, nil
}

// parseDictEntries parses `key: value` and `**mapping` entries through
// the closing brace.
func (p *parser) parseDictEntries(pos Pos) (Expr, error) {
	d := &Dict{Pos: pos}
	for !p.isOp("}") {
		if p.acceptOp("**") {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			d.Entries = append(d.Entries, DictEntry{Value: v})
		} else {
			k, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp(":"); err != nil {
				return nil, err
			}
			v, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			d.Entries = append(d.Entries, DictEntry{Key: k, Value: v})
		}
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return d, nil
}
