package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"go.starlark.net/starlark"
)

func builtinUpper(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(strings.ToUpper(s)), nil
}

func builtinJoin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	sep := ""
	for _, kv := range kwargs {
		if k := string(kv[0].(starlark.String)); k != "sep" {
			return nil, fmt.Errorf("%s: unexpected keyword argument %s", b.Name(), k)
		}
		sep = Str(kv[1])
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Str(a)
	}
	return starlark.String(strings.Join(parts, sep)), nil
}

func setupTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	if err := RegisterMacros(reg); err != nil {
		t.Fatalf("Failed to register macros: %v", err)
	}
	if err := reg.RegisterBuiltin("upper", builtinUpper); err != nil {
		t.Fatalf("Failed to register upper: %v", err)
	}
	if err := reg.RegisterBuiltin("join", builtinJoin); err != nil {
		t.Fatalf("Failed to register join: %v", err)
	}
	return reg
}

func setupTestInterpreter(t *testing.T, opts ...Option) *Interpreter {
	t.Helper()
	return New(setupTestRegistry(t), opts...)
}

// execState runs src against a fresh state without assembling a result.
func execState(t *testing.T, in *Interpreter, src string) (*State, error) {
	t.Helper()
	state := in.NewState()
	err := in.Exec(state, Source{Name: "test.conf", Text: src})
	return state, err
}

func mustExecState(t *testing.T, in *Interpreter, src string) *State {
	t.Helper()
	state, err := execState(t, in, src)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	return state
}

func collectGroups(g Groups) []Group {
	var out []Group
	for group := range g.All() {
		out = append(out, group)
	}
	return out
}

func TestInterpreter_SafeLiterals(t *testing.T) {
	in := setupTestInterpreter(t)
	state := mustExecState(t, in, `
s = "text"
raw = b"bytes"
i = 42
neg = -7
f = 2.5
yes = True
nothing = None
tup = (1, "a")
lst = [1, [2, 3]]
st = {1, 2}
d = {"k": [1, 2], 3: None}
call = upper("abc")
spread = join(*["a", "b"], sep="-")
kw = join("x", "y", **{"sep": "+"})
`)

	tests := []struct {
		name string
		want string
	}{
		{"s", `"text"`},
		{"raw", `b"bytes"`},
		{"i", "42"},
		{"neg", "-7"},
		{"f", "2.5"},
		{"yes", "True"},
		{"nothing", "None"},
		{"tup", `(1, "a")`},
		{"lst", "[1, [2, 3]]"},
		{"st", "set([1, 2])"},
		{"d", `{"k": [1, 2], 3: None}`},
		{"call", `"ABC"`},
		{"spread", `"a-b"`},
		{"kw", `"x+y"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := state.Item(tt.name)
			if !ok {
				t.Fatalf("item %s not defined", tt.name)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("item %s = %s, want %s", tt.name, got, tt.want)
			}
		})
	}

	wantOrder := []string{"s", "raw", "i", "neg", "f", "yes", "nothing", "tup", "lst", "st", "d", "call", "spread", "kw"}
	if got := state.ItemNames(); !reflect.DeepEqual(got, wantOrder) {
		t.Errorf("item order = %v, want %v", got, wantOrder)
	}
}

func TestInterpreter_UnsafeExpressions(t *testing.T) {
	tests := []string{
		`x = a.b`,
		`x = a[0]`,
		`x = a[1:]`,
		`x = 1 + 2`,
		`x = -a`,
		`x = -(5)`,
		`x = --5`,
		`x = - -5`,
		`x = -(-(2.5))`,
		`x = +5`,
		`x = ~5`,
		`x = a < b`,
		`x = a == b`,
		`x = a or b`,
		`x = not a`,
		`x = a if b else c`,
		`x = lambda: 1`,
		`x = [y for y in z]`,
		`x = {y for y in z}`,
		`x = [*a]`,
		`x = {**a}`,
		`x = unknown(1)`,
		`x = upper(unknown(1))`,
		`x = upper(a.b)`,
		`x = upper(key=a + 1)`,
		`x = join(*a.b)`,
		`x = [1, (2, {3: a.b})]`,
		`x = upper("a")("b")`,
		`x = a.upper("b")`,
		`x = upper(make_all_pairs())`,
		`make_all_pairs(a.b)`,
	}

	in := setupTestInterpreter(t)
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := execState(t, in, src)
			if err == nil {
				t.Fatalf("expected a safety violation")
			}
			if !errors.Is(err, ErrSafety) {
				t.Errorf("expected a safety violation, got %v (kind %s)", err, KindOf(err))
			}
		})
	}
}

func TestInterpreter_ReservedNames(t *testing.T) {
	rhs := []string{`1`, `"text"`, `upper("a")`, `[1, 2]`, `a.b`}
	in := setupTestInterpreter(t)

	for _, name := range []string{"named_items", "items", "total"} {
		for _, value := range rhs {
			src := name + " = " + value
			t.Run(src, func(t *testing.T) {
				_, err := execState(t, in, src)
				if !errors.Is(err, ErrReservedName) {
					t.Errorf("expected a reserved name violation, got %v", err)
				}
			})
		}
	}
}

func TestInterpreter_FunctionNamesCannotBeItems(t *testing.T) {
	in := setupTestInterpreter(t)
	for _, src := range []string{`upper = 1`, `upper = upper("a")`, `join = a.b`} {
		t.Run(src, func(t *testing.T) {
			_, err := execState(t, in, src)
			if !errors.Is(err, ErrReservedName) {
				t.Errorf("expected a reserved name violation, got %v", err)
			}
			if err != nil && !strings.Contains(err.Error(), "already defined as a safe function") {
				t.Errorf("unexpected message: %v", err)
			}
		})
	}
}

func TestInterpreter_StatementShapes(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{name: "multiple assignment", src: `a = b = 1`, wantMsg: "Multiple variable assignment is illegal"},
		{name: "tuple target", src: `a, b = 1, 2`, wantMsg: "This is not valid code."},
		{name: "attribute target", src: `a.b = 1`, wantMsg: "This is not valid code."},
		{name: "bare expression", src: `42`, wantMsg: "This is not valid code."},
		{name: "bare name", src: `a`, wantMsg: "This is not valid code."},
		{name: "unregistered macro", src: `nosuch()`, wantMsg: "Illegal call statement."},
		{name: "safe function as statement", src: `upper("a")`, wantMsg: "Illegal call statement."},
		{name: "anonymous call", src: `a.b()`, wantMsg: "Cannot call an anonymous function."},
		{name: "loop", src: "for x in y:\n    pass", wantMsg: "This is not valid code."},
	}

	in := setupTestInterpreter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execState(t, in, tt.src)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("expected a parse error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestInterpreter_ItemsAreNotGlobals(t *testing.T) {
	in := setupTestInterpreter(t)
	_, err := execState(t, in, "a = \"x\"\nb = upper(a)")
	if !errors.Is(err, ErrEvaluation) {
		t.Fatalf("expected an evaluation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "name 'a' is not defined") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestInterpreter_Namespaces(t *testing.T) {
	in := setupTestInterpreter(t)
	state := mustExecState(t, in, `
namespaces = {"ex": "http://example.org/#", "go": "http://purl.obolibrary.org/obo/GO_"}
x = "ex:Foo"
y = "zz:Foo"
z = "plain"
call = upper("ex:bar")
nested = ["go:0008150", ("ex:a", {"ex:k": "ex:v"})]
raw = b"ex:Foo"
`)

	tests := []struct {
		name string
		want string
	}{
		{"x", `"http://example.org/#Foo"`},
		{"y", `"zz:Foo"`},
		{"z", `"plain"`},
		{"call", `"HTTP://EXAMPLE.ORG/#BAR"`},
		{"nested", `["http://purl.obolibrary.org/obo/GO_0008150", ("http://example.org/#a", {"http://example.org/#k": "http://example.org/#v"})]`},
		{"raw", `b"ex:Foo"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := state.Item(tt.name)
			if v == nil || v.String() != tt.want {
				t.Errorf("item %s = %v, want %s", tt.name, v, tt.want)
			}
		})
	}
}

func TestInterpreter_NamespacesAreNotExpandedInTheirOwnDeclaration(t *testing.T) {
	in := setupTestInterpreter(t)
	state := mustExecState(t, in, `
namespaces = {"ex": "http://example.org/#"}
namespaces = {"ex": "ex:other", "b": "http://b/"}
x = "ex:Foo"
`)
	table, ok := state.Namespaces()
	if !ok {
		t.Fatal("namespaces not bound")
	}
	if table["ex"] != "ex:other" {
		t.Errorf("namespaces[ex] = %q, want the literal text", table["ex"])
	}
	x, _ := state.Item("x")
	if got := Str(x); got != "ex:otherFoo" {
		t.Errorf("x = %q, want %q", got, "ex:otherFoo")
	}
}

func TestExpandNamespaces_KeepsOriginal(t *testing.T) {
	lit := &Literal{Kind: StringLiteral, Str: "ex:Foo"}
	expandNamespaces(&Sequence{Kind: ListSeq, Elems: []Expr{lit}}, map[string]string{"ex": "http://e/"})

	if lit.Str != "http://e/Foo" {
		t.Errorf("Str = %q", lit.Str)
	}
	if lit.Original != "ex:Foo" {
		t.Errorf("Original = %q", lit.Original)
	}
	if lit.Kind != StringLiteral {
		t.Errorf("Kind changed to %v", lit.Kind)
	}

	untouched := &Literal{Kind: StringLiteral, Str: "nope:Foo"}
	expandNamespaces(untouched, map[string]string{"ex": "http://e/"})
	if untouched.Str != "nope:Foo" || untouched.Original != "" {
		t.Errorf("unknown prefix rewritten: %+v", untouched)
	}
}

func TestInterpreter_NamespacesShape(t *testing.T) {
	tests := []struct {
		src     string
		wantMsg string
	}{
		{src: `namespaces = ["ex"]`, wantMsg: "Expecting a dictionary."},
		{src: `namespaces = upper("a")`, wantMsg: "Expecting a dictionary."},
		{src: `namespaces = {"ex": 1}`, wantMsg: "Expecting a string as value."},
		{src: `namespaces = {ex: "http://e/"}`, wantMsg: "Expecting a string as key."},
		{src: `namespaces = {"ex": upper("a")}`, wantMsg: "Expecting a string as value."},
		{src: `namespaces = {b"ex": "http://e/"}`, wantMsg: "Expecting a string as key."},
	}

	in := setupTestInterpreter(t)
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := execState(t, in, tt.src)
			if !errors.Is(err, ErrStructural) {
				t.Fatalf("expected a structural violation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestInterpreter_Groups(t *testing.T) {
	in := setupTestInterpreter(t)
	state := mustExecState(t, in, `
a = "A"
b = "B"
groups = [(a, b), (a, "literal"), (a, 42), [a, a], {b, a, b}, (later, a), (a, upper(a))]
`)

	g, ok := state.Groups()
	if !ok {
		t.Fatal("groups not bound")
	}
	want := []Group{
		{Kind: GroupTuple, Names: []string{"a", "b"}},
		{Kind: GroupTuple, Names: []string{"a", "literal"}},
		{Kind: GroupTuple, Names: []string{"a", "42"}},
		{Kind: GroupList, Names: []string{"a", "a"}},
		{Kind: GroupSet, Names: []string{"b", "a"}},
		{Kind: GroupTuple, Names: []string{"later", "a"}},
		{Kind: GroupTuple, Names: []string{"a", "A"}},
	}
	if got := collectGroups(g); !reflect.DeepEqual(got, want) {
		t.Errorf("groups = %v, want %v", got, want)
	}

	literal, ok := state.Item("literal")
	if !ok || Str(literal) != "literal" {
		t.Errorf("synthesized item literal = %v", literal)
	}
	num, ok := state.Item("42")
	if !ok || num.String() != "42" {
		t.Errorf("synthesized item 42 = %v", num)
	}
	// upper(a) is evaluated against the named items, so a is "A".
	upper, ok := state.Item("A")
	if !ok || Str(upper) != "A" {
		t.Errorf("synthesized item A = %v", upper)
	}
	if _, ok := state.Item("later"); ok {
		t.Error("forward reference should not define an item")
	}
}

func TestInterpreter_GroupsShape(t *testing.T) {
	tests := []struct {
		src     string
		wantMsg string
	}{
		{src: `groups = (("a", "b"),)`, wantMsg: "Expecting a list of groups."},
		{src: `groups = upper("a")`, wantMsg: "Expecting a list of groups."},
		{src: `groups = {("a", "b")}`, wantMsg: "Expecting a list of groups."},
		{src: `groups = ["a"]`, wantMsg: "Groups must be sequences of items."},
		{src: `groups = [("a", "b"), upper("c")]`, wantMsg: "Groups must be sequences of items."},
		{src: `groups = [{"a": "b"}]`, wantMsg: "Groups must be sequences of items."},
	}

	in := setupTestInterpreter(t)
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := execState(t, in, tt.src)
			if !errors.Is(err, ErrStructural) {
				t.Fatalf("expected a structural violation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestInterpreter_GroupsWithNamespaces(t *testing.T) {
	in := setupTestInterpreter(t)
	state := mustExecState(t, in, `
namespaces = {"ex": "http://e/"}
groups = [("ex:a", "ex:b")]
`)
	g, _ := state.Groups()
	want := []Group{{Kind: GroupTuple, Names: []string{"http://e/a", "http://e/b"}}}
	if got := collectGroups(g); !reflect.DeepEqual(got, want) {
		t.Errorf("groups = %v, want %v", got, want)
	}
}

func TestInterpreter_GroupMemberEvaluationError(t *testing.T) {
	in := setupTestInterpreter(t)
	_, err := execState(t, in, `groups = [(upper(missing),)]`)
	if !errors.Is(err, ErrEvaluation) {
		t.Errorf("expected an evaluation error, got %v", err)
	}
}

func TestMakeAllPairs(t *testing.T) {
	in := setupTestInterpreter(t)
	state := mustExecState(t, in, `
z = "Z"
x = "X"
_helper = "private"
y = "Y"
make_all_pairs()
`)

	g, ok := state.Groups()
	if !ok {
		t.Fatal("groups not set")
	}
	want := []Group{
		Pair("x", "x"), Pair("x", "y"), Pair("x", "z"),
		Pair("y", "y"), Pair("y", "z"),
		Pair("z", "z"),
	}
	if got := collectGroups(g); !reflect.DeepEqual(got, want) {
		t.Errorf("groups = %v, want %v", got, want)
	}
	// A second iteration yields the same pairs.
	if got := collectGroups(g); !reflect.DeepEqual(got, want) {
		t.Errorf("second iteration = %v, want %v", got, want)
	}
	if g.Len() != 6 {
		t.Errorf("Len() = %d, want 6", g.Len())
	}
	if total, ok := state.Total(); !ok || total != 6 {
		t.Errorf("total = %d (set %v), want 6", total, ok)
	}
}

func TestMakeAllPairs_RejectsArguments(t *testing.T) {
	in := setupTestInterpreter(t)
	_, err := execState(t, in, "a = 1\nmake_all_pairs(1)")
	if !errors.Is(err, ErrEvaluation) {
		t.Errorf("expected an evaluation error, got %v", err)
	}
}

func TestAddRandomPairs(t *testing.T) {
	in := setupTestInterpreter(t, WithSeed(42))
	state := mustExecState(t, in, `
a = 1
b = 2
c = 3
_private = 4
add_random_pairs(25)
`)

	g, _ := state.Groups()
	if g.Len() != 25 {
		t.Errorf("Len() = %d, want 25", g.Len())
	}
	if total, _ := state.Total(); total != 25 {
		t.Errorf("total = %d, want 25", total)
	}

	eligible := map[string]bool{"a": true, "b": true, "c": true}
	first := collectGroups(g)
	if len(first) != 25 {
		t.Fatalf("iterated %d groups, want 25", len(first))
	}
	for _, group := range first {
		if group.Kind != GroupTuple || len(group.Names) != 2 {
			t.Fatalf("unexpected group %v", group)
		}
		for _, name := range group.Names {
			if !eligible[name] {
				t.Errorf("pair uses ineligible name %q", name)
			}
		}
	}
	if second := collectGroups(g); !reflect.DeepEqual(first, second) {
		t.Error("iteration is not restartable")
	}
}

func TestAddRandomPairs_SameSeedSameSample(t *testing.T) {
	src := "a = 1\nb = 2\nc = 3\nd = 4\nadd_random_pairs(10)"
	one := mustExecState(t, setupTestInterpreter(t, WithSeed(7)), src)
	two := mustExecState(t, setupTestInterpreter(t, WithSeed(7)), src)

	g1, _ := one.Groups()
	g2, _ := two.Groups()
	if !reflect.DeepEqual(collectGroups(g1), collectGroups(g2)) {
		t.Error("same seed produced different samples")
	}
}

// add_random_pairs replaces earlier groups by default. The total, however,
// is added to, so after make_all_pairs it no longer matches the groups.
func TestAddRandomPairs_ReplacesGroupsByDefault(t *testing.T) {
	src := "a = 1\nb = 2\nmake_all_pairs()\nadd_random_pairs(2)"

	state := mustExecState(t, setupTestInterpreter(t, WithSeed(1)), src)
	g, _ := state.Groups()
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (earlier groups replaced)", g.Len())
	}
	if total, _ := state.Total(); total != 5 {
		t.Errorf("total = %d, want 5 (3 from make_all_pairs + 2)", total)
	}
}

func TestAddRandomPairs_AppendMode(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantLen   int
		wantTotal int64
	}{
		{
			name:      "after make_all_pairs",
			src:       "a = 1\nb = 2\nmake_all_pairs()\nadd_random_pairs(2)",
			wantLen:   5,
			wantTotal: 5,
		},
		{
			name:      "after explicit groups",
			src:       "a = 1\nb = 2\ngroups = [(a, b)]\nadd_random_pairs(3)",
			wantLen:   4,
			wantTotal: 4,
		},
		{
			name:      "without earlier groups",
			src:       "a = 1\nadd_random_pairs(3)",
			wantLen:   3,
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := setupTestInterpreter(t, WithSeed(3), WithRandomPairsMode(RandomPairsAppend))
			state := mustExecState(t, in, tt.src)
			g, _ := state.Groups()
			if g.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", g.Len(), tt.wantLen)
			}
			if got := len(collectGroups(g)); got != tt.wantLen {
				t.Errorf("iterated %d groups, want %d", got, tt.wantLen)
			}
			if total, _ := state.Total(); total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
		})
	}
}

func TestAddRandomPairs_Arguments(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{name: "positional", src: `add_random_pairs(2)`},
		{name: "keyword", src: `add_random_pairs(count=2)`},
		{name: "star", src: `add_random_pairs(*[2])`},
		{name: "double star", src: `add_random_pairs(**{"count": 2})`},
		{name: "missing", src: `add_random_pairs()`, wantErr: true},
		{name: "negative", src: `add_random_pairs(-1)`, wantErr: true},
		{name: "not an int", src: `add_random_pairs("2")`, wantErr: true},
		{name: "star of int", src: `add_random_pairs(*2)`, wantErr: true},
		{name: "non-string keyword", src: `add_random_pairs(**{1: 2})`, wantErr: true},
		{name: "duplicate keyword", src: `add_random_pairs(count=1, **{"count": 2})`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := setupTestInterpreter(t, WithSeed(1))
			_, err := execState(t, in, "a = 1\n"+tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrEvaluation) {
				t.Errorf("expected an evaluation error, got %v", err)
			}
		})
	}
}

func TestAddRandomPairs_NoItems(t *testing.T) {
	in := setupTestInterpreter(t)
	_, err := execState(t, in, "_hidden = 1\nadd_random_pairs(1)")
	if !errors.Is(err, ErrEvaluation) {
		t.Errorf("expected an evaluation error, got %v", err)
	}
}

func TestInterpreter_ErrorsCarrySourceAndLine(t *testing.T) {
	in := setupTestInterpreter(t)
	_, err := in.Interpret(
		Source{Name: "first.conf", Text: "a = 1\n"},
		Source{Name: "second.conf", Text: "b = 2\n\nc = a.b\n"},
	)
	if err == nil {
		t.Fatal("expected an error")
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if cfgErr.Source != "second.conf" || cfgErr.Line != 3 {
		t.Errorf("location = %s:%d, want second.conf:3", cfgErr.Source, cfgErr.Line)
	}
	if !strings.HasPrefix(err.Error(), "second.conf, l.3: ") {
		t.Errorf("message = %q", err.Error())
	}

	_, err = in.Interpret(CommandSource("x = 1 +"))
	if err == nil || !strings.HasPrefix(err.Error(), "--execute, l.1: ") {
		t.Errorf("command error = %v", err)
	}
}

func TestInterpreter_StopsAtFirstError(t *testing.T) {
	in := setupTestInterpreter(t)
	state := in.NewState()
	err := in.Exec(state, Source{Name: "t", Text: "a = 1\nb = a.b\nc = 3"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := state.Item("a"); !ok {
		t.Error("statement before the error should have run")
	}
	if _, ok := state.Item("c"); ok {
		t.Error("statement after the error should not have run")
	}
}

func TestAssemble_MissingBindings(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{name: "nothing", src: `a = 1`, wantMsg: "Missing the 'comparer' variable"},
		{name: "no groups", src: `comparer = upper("c")`, wantMsg: "Missing the 'groups' variable"},
		{name: "no comparer", src: "a = 1\nmake_all_pairs()", wantMsg: "Missing the 'comparer' variable"},
	}

	in := setupTestInterpreter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.Interpret(Source{Name: "t", Text: tt.src})
			if !errors.Is(err, ErrMissingBinding) {
				t.Fatalf("expected a missing binding error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestAssemble_Total(t *testing.T) {
	in := setupTestInterpreter(t)

	cfg, err := in.Interpret(Source{Name: "t", Text: `
a = 1
b = 2
comparer = upper("c")
groups = [(a, b), (b, a), (a, a)]
`})
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if cfg.Total() != 3 {
		t.Errorf("Total() = %d, want number of groups 3", cfg.Total())
	}

	cfg, err = in.Interpret(Source{Name: "t", Text: "a = 1\nb = 2\ncomparer = upper(\"c\")\nmake_all_pairs()"})
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if cfg.Total() != 3 {
		t.Errorf("Total() = %d, want 3", cfg.Total())
	}
}

func TestAssemble_FreezesValues(t *testing.T) {
	in := setupTestInterpreter(t)
	cfg, err := in.Interpret(Source{Name: "t", Text: "xs = [1, 2]\ncomparer = upper(\"c\")\ngroups = []"})
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	v, ok := cfg.Item("xs")
	if !ok {
		t.Fatal("item xs missing")
	}
	if err := v.(*starlark.List).Append(starlark.MakeInt(3)); err == nil {
		t.Error("expected frozen list to reject Append")
	}
	if cfg.Total() != 0 || cfg.Groups().Len() != 0 {
		t.Errorf("empty groups: total %d len %d", cfg.Total(), cfg.Groups().Len())
	}
}

func TestInterpret_TwoFiles(t *testing.T) {
	in := setupTestInterpreter(t)
	first := Source{Name: "items.conf", Text: `
namespaces = {"ex": "http://example.org/#"}
heart = "ex:Heart"
liver = "ex:Liver"
`}
	second := Source{Name: "run.conf", Text: `
comparer = upper("ex:resnik")
groups = [(heart, liver)]
make_all_pairs()
`}

	cfg, err := in.Interpret(first, second)
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}

	wantItems := map[string]string{
		"heart": "http://example.org/#Heart",
		"liver": "http://example.org/#Liver",
	}
	items := cfg.Items()
	if len(items) != len(wantItems) {
		t.Errorf("items = %v", items)
	}
	for name, want := range wantItems {
		if got := Str(items[name]); got != want {
			t.Errorf("item %s = %q, want %q", name, got, want)
		}
	}
	if got := Str(cfg.Comparer()); got != "HTTP://EXAMPLE.ORG/#RESNIK" {
		t.Errorf("comparer = %q", got)
	}

	wantGroups := []Group{Pair("heart", "heart"), Pair("heart", "liver"), Pair("liver", "liver")}
	if got := collectGroups(cfg.Groups()); !reflect.DeepEqual(got, wantGroups) {
		t.Errorf("groups = %v, want %v", got, wantGroups)
	}
	if cfg.Total() != 3 {
		t.Errorf("Total() = %d, want 3", cfg.Total())
	}
	if got := cfg.ItemNames(); !reflect.DeepEqual(got, []string{"heart", "liver"}) {
		t.Errorf("ItemNames() = %v", got)
	}
}

func TestInterpret_Deterministic(t *testing.T) {
	src := []Source{
		{Name: "a", Text: "x = \"1\"\ny = [2, 3]\ncomparer = join(\"a\", \"b\")\ngroups = [(x, y), (x, \"lit\")]"},
		CommandSource("z = 4"),
	}
	in := setupTestInterpreter(t)
	one, err := in.Interpret(src...)
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	two, err := in.Interpret(src...)
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if !reflect.DeepEqual(one.ItemNames(), two.ItemNames()) {
		t.Errorf("item names differ: %v vs %v", one.ItemNames(), two.ItemNames())
	}
	for _, name := range one.ItemNames() {
		a, _ := one.Item(name)
		b, _ := two.Item(name)
		if a.String() != b.String() {
			t.Errorf("item %s differs: %s vs %s", name, a, b)
		}
	}
	if !reflect.DeepEqual(collectGroups(one.Groups()), collectGroups(two.Groups())) {
		t.Error("groups differ")
	}
}

func TestInterpreter_StatementHook(t *testing.T) {
	counts := make(map[string]int)
	in := setupTestInterpreter(t, WithStatementHook(func(kind string) {
		counts[kind]++
	}))

	_, err := in.Interpret(Source{Name: "t", Text: "a = 1\nb = 2\ncomparer = upper(\"c\")\nmake_all_pairs()"})
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if counts["assign"] != 3 || counts["call"] != 1 {
		t.Errorf("statement counts = %v, want 3 assign and 1 call", counts)
	}

	counts = make(map[string]int)
	_, err = in.Interpret(Source{Name: "t", Text: "a = 1\nb = missing"})
	if err == nil {
		t.Fatal("expected an error for an unbound name")
	}
	if counts["assign"] != 1 {
		t.Errorf("failed statements must not be counted, got %v", counts)
	}
}
