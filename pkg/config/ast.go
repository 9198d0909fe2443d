package config

import "math/big"

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Node is implemented by every syntax node.
type Node interface {
	Position() Pos
}

// Expr is an expression node. The set of expression types is closed: the
// parser produces only the types declared in this file.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a top-level statement node.
type Stmt interface {
	Node
	stmtNode()
}

// LiteralKind identifies the type of a literal.
type LiteralKind int

const (
	StringLiteral LiteralKind = iota
	BytesLiteral
	IntLiteral
	FloatLiteral
	BoolLiteral
	NoneLiteral
)

// Literal is a constant. Exactly one value field is meaningful for a given
// Kind.
type Literal struct {
	Pos   Pos
	Kind  LiteralKind
	Str   string // StringLiteral, BytesLiteral
	Int   *big.Int
	Float float64
	Bool  bool

	// Original holds the text of a string literal before namespace
	// expansion rewrote it. Empty when the literal was never rewritten.
	Original string
}

// Ident is a bare identifier.
type Ident struct {
	Pos  Pos
	Name string
}

// SeqKind distinguishes the three sequence literal forms.
type SeqKind int

const (
	TupleSeq SeqKind = iota
	ListSeq
	SetSeq
)

func (k SeqKind) String() string {
	switch k {
	case TupleSeq:
		return "tuple"
	case ListSeq:
		return "list"
	case SetSeq:
		return "set"
	}
	return "sequence"
}

// Sequence is a tuple, list or set literal.
type Sequence struct {
	Pos   Pos
	Kind  SeqKind
	Elems []Expr
}

// DictEntry is one key/value pair of a dict literal. Unpack entries
// (`**expr`) have a nil Key.
type DictEntry struct {
	Key   Expr
	Value Expr
}

// Dict is a dict literal.
type Dict struct {
	Pos     Pos
	Entries []DictEntry
}

// ArgKind identifies the form of a call argument.
type ArgKind int

const (
	PositionalArg ArgKind = iota
	KeywordArg
	StarArg       // *expr
	DoubleStarArg // **expr
)

// Arg is one argument of a call.
type Arg struct {
	Pos   Pos
	Kind  ArgKind
	Name  string // KeywordArg only
	Value Expr
}

// Call is a function call. Fn may be any expression; only bare
// identifiers are ever accepted by the validator.
type Call struct {
	Pos  Pos
	Fn   Expr
	Args []Arg
}

// The node types below are parsed so that they can be rejected with a
// precise diagnostic. None of them is ever evaluated.

// Attribute is `x.name`.
type Attribute struct {
	Pos  Pos
	X    Expr
	Name string
}

// Index is `x[i]` or a slice `x[a:b]`.
type Index struct {
	Pos Pos
	X   Expr
	Sub []Expr
}

// Unary is a prefix operator application.
type Unary struct {
	Pos Pos
	Op  string
	X   Expr
}

// Binary is an arithmetic, bitwise, boolean or comparison operator
// application.
type Binary struct {
	Pos Pos
	Op  string
	X   Expr
	Y   Expr
}

// Conditional is `a if cond else b`.
type Conditional struct {
	Pos  Pos
	Then Expr
	Cond Expr
	Else Expr
}

// Lambda is an anonymous function.
type Lambda struct {
	Pos    Pos
	Params []string
	Body   Expr
}

// Comprehension is a list, set, dict or generator comprehension.
type Comprehension struct {
	Pos  Pos
	Kind string // "list", "set", "dict", "generator"
	Body Expr
	Iter Expr
}

// Starred is `*x` inside a sequence literal.
type Starred struct {
	Pos Pos
	X   Expr
}

// AssignStmt is `t1 = t2 = ... = value`. Targets holds every target
// expression in source order so that multiple assignment can be reported.
type AssignStmt struct {
	Pos     Pos
	Targets []Expr
	Value   Expr
}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	Pos Pos
	X   Expr
}

func (n *Literal) Position() Pos       { return n.Pos }
func (n *Ident) Position() Pos         { return n.Pos }
func (n *Sequence) Position() Pos      { return n.Pos }
func (n *Dict) Position() Pos          { return n.Pos }
func (n *Call) Position() Pos          { return n.Pos }
func (n *Attribute) Position() Pos     { return n.Pos }
func (n *Index) Position() Pos         { return n.Pos }
func (n *Unary) Position() Pos         { return n.Pos }
func (n *Binary) Position() Pos        { return n.Pos }
func (n *Conditional) Position() Pos   { return n.Pos }
func (n *Lambda) Position() Pos        { return n.Pos }
func (n *Comprehension) Position() Pos { return n.Pos }
func (n *Starred) Position() Pos       { return n.Pos }

func (n *AssignStmt) Position() Pos { return n.Pos }
func (n *ExprStmt) Position() Pos   { return n.Pos }

func (*Literal) exprNode()       {}
func (*Ident) exprNode()         {}
func (*Sequence) exprNode()      {}
func (*Dict) exprNode()          {}
func (*Call) exprNode()          {}
func (*Attribute) exprNode()     {}
func (*Index) exprNode()         {}
func (*Unary) exprNode()         {}
func (*Binary) exprNode()        {}
func (*Conditional) exprNode()   {}
func (*Lambda) exprNode()        {}
func (*Comprehension) exprNode() {}
func (*Starred) exprNode()       {}

func (*AssignStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}

// nodeName describes an expression type for diagnostics.
func nodeName(e Expr) string {
	switch n := e.(type) {
	case *Literal:
		return "literal"
	case *Ident:
		return "name"
	case *Sequence:
		return n.Kind.String()
	case *Dict:
		return "dict"
	case *Call:
		return "call"
	case *Attribute:
		return "attribute access"
	case *Index:
		return "subscript"
	case *Unary:
		return "unary operator '" + n.Op + "'"
	case *Binary:
		return "operator '" + n.Op + "'"
	case *Conditional:
		return "conditional expression"
	case *Lambda:
		return "lambda"
	case *Comprehension:
		return n.Kind + " comprehension"
	case *Starred:
		return "starred expression"
	}
	return "unknown expression"
}
