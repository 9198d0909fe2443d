package config

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func parseOne(t *testing.T, src string) Stmt {
	t.Helper()
	stmts, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	if len(stmts) != 1 {
		t.Fatalf("Parse(%q) returned %d statements, want 1", src, len(stmts))
	}
	return stmts[0]
}

func assignValue(t *testing.T, src string) Expr {
	t.Helper()
	assign, ok := parseOne(t, src).(*AssignStmt)
	if !ok {
		t.Fatalf("Parse(%q) did not return an assignment", src)
	}
	return assign.Value
}

func TestParse_Literals(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		checkFunc func(*testing.T, *Literal)
	}{
		{
			name: "double quoted string",
			src:  `x = "hello"`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Kind != StringLiteral || l.Str != "hello" {
					t.Errorf("got %+v", l)
				}
			},
		},
		{
			name: "escapes",
			src:  `x = 'a\tb\x41é'`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Str != "a\tbAé" {
					t.Errorf("got %q", l.Str)
				}
			},
		},
		{
			name: "raw string keeps backslashes",
			src:  `x = r"a\nb"`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Str != `a\nb` {
					t.Errorf("got %q", l.Str)
				}
			},
		},
		{
			name: "implicit concatenation",
			src:  `x = "ex:" 'Foo'`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Str != "ex:Foo" {
					t.Errorf("got %q", l.Str)
				}
			},
		},
		{
			name: "triple quoted string spans lines",
			src:  "x = \"\"\"a\nb\"\"\"",
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Str != "a\nb" {
					t.Errorf("got %q", l.Str)
				}
			},
		},
		{
			name: "bytes",
			src:  `x = b"abc"`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Kind != BytesLiteral || l.Str != "abc" {
					t.Errorf("got %+v", l)
				}
			},
		},
		{
			name: "hex integer",
			src:  `x = 0xff`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Kind != IntLiteral || l.Int.Int64() != 255 {
					t.Errorf("got %+v", l)
				}
			},
		},
		{
			name: "big integer",
			src:  `x = 123456789012345678901234567890`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Int.String() != "123456789012345678901234567890" {
					t.Errorf("got %s", l.Int)
				}
			},
		},
		{
			name: "negative integer folds",
			src:  `x = -3`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Kind != IntLiteral || l.Int.Int64() != -3 {
					t.Errorf("got %+v", l)
				}
			},
		},
		{
			name: "negative float folds",
			src:  `x = -1.5e2`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Kind != FloatLiteral || l.Float != -150 {
					t.Errorf("got %+v", l)
				}
			},
		},
		{
			name: "underscored integer",
			src:  `x = 1_000`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Int.Int64() != 1000 {
					t.Errorf("got %s", l.Int)
				}
			},
		},
		{
			name: "True",
			src:  `x = True`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Kind != BoolLiteral || !l.Bool {
					t.Errorf("got %+v", l)
				}
			},
		},
		{
			name: "None",
			src:  `x = None`,
			checkFunc: func(t *testing.T, l *Literal) {
				if l.Kind != NoneLiteral {
					t.Errorf("got %+v", l)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lit, ok := assignValue(t, tt.src).(*Literal)
			if !ok {
				t.Fatalf("value is not a literal")
			}
			tt.checkFunc(t, lit)
		})
	}
}

func TestParse_Containers(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantKind SeqKind
		wantLen  int
	}{
		{name: "tuple", src: `x = (1, 2)`, wantKind: TupleSeq, wantLen: 2},
		{name: "bare tuple", src: `x = 1, 2, 3`, wantKind: TupleSeq, wantLen: 3},
		{name: "one element tuple", src: `x = (1,)`, wantKind: TupleSeq, wantLen: 1},
		{name: "empty tuple", src: `x = ()`, wantKind: TupleSeq, wantLen: 0},
		{name: "list", src: `x = [1, "a", None]`, wantKind: ListSeq, wantLen: 3},
		{name: "list with trailing comma", src: `x = [1, 2,]`, wantKind: ListSeq, wantLen: 2},
		{name: "empty list", src: `x = []`, wantKind: ListSeq, wantLen: 0},
		{name: "set", src: `x = {a, b}`, wantKind: SetSeq, wantLen: 2},
		{name: "multi-line list", src: "x = [\n  1,\n  2,\n]", wantKind: ListSeq, wantLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, ok := assignValue(t, tt.src).(*Sequence)
			if !ok {
				t.Fatalf("value is not a sequence")
			}
			if seq.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", seq.Kind, tt.wantKind)
			}
			if len(seq.Elems) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(seq.Elems), tt.wantLen)
			}
		})
	}
}

func TestParse_DictAndCall(t *testing.T) {
	d, ok := assignValue(t, `x = {"a": 1, "b": [2]}`).(*Dict)
	if !ok {
		t.Fatalf("value is not a dict")
	}
	if len(d.Entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(d.Entries))
	}

	empty, ok := assignValue(t, `x = {}`).(*Dict)
	if !ok || len(empty.Entries) != 0 {
		t.Errorf("expected empty dict, got %#v", empty)
	}

	call, ok := assignValue(t, `x = f(1, *rest, key="v", **opts)`).(*Call)
	if !ok {
		t.Fatalf("value is not a call")
	}
	wantKinds := []ArgKind{PositionalArg, StarArg, KeywordArg, DoubleStarArg}
	if len(call.Args) != len(wantKinds) {
		t.Fatalf("expected %d args, got %d", len(wantKinds), len(call.Args))
	}
	for i, kind := range wantKinds {
		if call.Args[i].Kind != kind {
			t.Errorf("arg %d kind = %v, want %v", i, call.Args[i].Kind, kind)
		}
	}
	if call.Args[2].Name != "key" {
		t.Errorf("expected keyword name key, got %q", call.Args[2].Name)
	}
}

func TestParse_RejectedForms(t *testing.T) {
	// These parse so that the validator can reject them precisely.
	tests := []struct {
		src  string
		want string
	}{
		{src: `x = a.b`, want: "*config.Attribute"},
		{src: `x = a[0]`, want: "*config.Index"},
		{src: `x = a[1:2]`, want: "*config.Index"},
		{src: `x = 1 + 2`, want: "*config.Binary"},
		{src: `x = a < b`, want: "*config.Binary"},
		{src: `x = a not in b`, want: "*config.Binary"},
		{src: `x = a and b`, want: "*config.Binary"},
		{src: `x = not a`, want: "*config.Unary"},
		{src: `x = -a`, want: "*config.Unary"},
		{src: `x = -(5)`, want: "*config.Unary"},
		{src: `x = --5`, want: "*config.Unary"},
		{src: `x = -5 ** 2`, want: "*config.Unary"},
		{src: `x = 2 ** 3`, want: "*config.Binary"},
		{src: `x = a if b else c`, want: "*config.Conditional"},
		{src: `x = lambda y: y`, want: "*config.Lambda"},
		{src: `x = [y for y in z]`, want: "*config.Comprehension"},
		{src: `x = {k: v for k, v in z}`, want: "*config.Comprehension"},
		{src: `x = (y for y in z if y)`, want: "*config.Comprehension"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v := assignValue(t, tt.src)
			if got := fmt.Sprintf("%T", v); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParse_Statements(t *testing.T) {
	stmts, err := Parse("# comment\n\na = 1\nb = 2; c = 3\n\nmake_all_pairs()\nx = y = 4\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(stmts) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(stmts))
	}
	if _, ok := stmts[3].(*ExprStmt); !ok {
		t.Errorf("statement 3 should be an expression statement")
	}
	multi, ok := stmts[4].(*AssignStmt)
	if !ok || len(multi.Targets) != 2 {
		t.Errorf("statement 4 should have two targets, got %#v", stmts[4])
	}
	if stmts[4].Position().Line != 7 {
		t.Errorf("statement 4 line = %d, want 7", stmts[4].Position().Line)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
		line    int
	}{
		{name: "unterminated string", src: `x = "abc`, wantMsg: "unterminated string", line: 1},
		{name: "unbalanced bracket", src: "x = [1,\n2", wantMsg: "end of input inside brackets", line: 2},
		{name: "unmatched closer", src: `x = 1)`, wantMsg: "unmatched ')'", line: 1},
		{name: "unexpected indent", src: "a = 1\n  b = 2", wantMsg: "unexpected indent", line: 2},
		{name: "def statement", src: "def f():\n  pass", wantMsg: "This is not valid code.", line: 1},
		{name: "import statement", src: `import os`, wantMsg: "This is not valid code.", line: 1},
		{name: "augmented assignment", src: `x += 1`, wantMsg: "This is not valid code.", line: 1},
		{name: "missing value", src: `x =`, wantMsg: "invalid syntax", line: 1},
		{name: "positional after keyword", src: `f(a=1, 2)`, wantMsg: "positional argument follows keyword argument", line: 1},
		{name: "repeated keyword", src: `f(a=1, a=2)`, wantMsg: "keyword argument repeated", line: 1},
		{name: "mixed bytes and str", src: `x = b"a" "b"`, wantMsg: "cannot mix bytes", line: 1},
		{name: "leading zero", src: `x = 012`, wantMsg: "leading zeros", line: 1},
		{name: "complex literal", src: `x = 1j`, wantMsg: "complex literals", line: 1},
		{name: "two expressions on a line", src: `x = 1 2`, wantMsg: "invalid syntax", line: 1},
		{name: "invalid character", src: `x = $`, wantMsg: "invalid character", line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatalf("expected an error for %q", tt.src)
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("expected a parse error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
			var cfgErr *Error
			if errors.As(err, &cfgErr) && cfgErr.Line != tt.line {
				t.Errorf("line = %d, want %d", cfgErr.Line, tt.line)
			}
		})
	}
}
