package config

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
)

// reservedItemNames may never be assigned by configuration text.
var reservedItemNames = map[string]bool{
	"named_items": true,
	"items":       true,
	"total":       true,
}

// Source is one configuration text and the name used in diagnostics.
type Source struct {
	Name string
	Text string
}

// CommandSource wraps an ad-hoc statement given on the command line.
func CommandSource(text string) Source {
	return Source{Name: "--execute", Text: text}
}

// FileSource reads a configuration file.
func FileSource(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Source{Name: path, Text: string(data)}, nil
}

// Interpreter executes configuration sources against a frozen registry.
type Interpreter struct {
	registry   *Registry
	logger     zerolog.Logger
	rng        *rand.Rand
	randomMode RandomPairsMode
	onStmt     func(kind string)
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger used for statement level debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(in *Interpreter) {
		in.logger = logger
	}
}

// WithSeed makes add_random_pairs deterministic.
func WithSeed(seed uint64) Option {
	return func(in *Interpreter) {
		in.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithRandomPairsMode selects whether add_random_pairs replaces or extends
// the groups declared before it.
func WithRandomPairsMode(mode RandomPairsMode) Option {
	return func(in *Interpreter) {
		in.randomMode = mode
	}
}

// WithStatementHook calls fn after every successfully executed statement
// with "call" or "assign".
func WithStatementHook(fn func(kind string)) Option {
	return func(in *Interpreter) {
		in.onStmt = fn
	}
}

// New creates an interpreter. The registry is frozen if it is not already.
func New(reg *Registry, opts ...Option) *Interpreter {
	reg.Freeze()
	in := &Interpreter{
		registry: reg,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.rng == nil {
		in.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return in
}

// Interpret executes every source in order against one fresh state and
// assembles the result.
func (in *Interpreter) Interpret(sources ...Source) (*Config, error) {
	state := in.NewState()
	for _, src := range sources {
		if err := in.Exec(state, src); err != nil {
			return nil, err
		}
	}
	return Assemble(state)
}

// State is the working context of one interpretation run.
type State struct {
	logger zerolog.Logger
	thread *starlark.Thread

	// globals holds the safe functions plus comparer and namespaces.
	globals    starlark.StringDict
	namespaces map[string]string

	items  *itemTable
	groups Groups

	total    int64
	hasTotal bool

	rng        *rand.Rand
	randomMode RandomPairsMode
}

// NewState creates a state seeded with a copy of the safe functions.
func (in *Interpreter) NewState() *State {
	return &State{
		logger: in.logger,
		thread: &starlark.Thread{
			Name:  "mossy",
			Print: func(_ *starlark.Thread, msg string) {},
		},
		globals:    in.registry.functionTable(),
		items:      newItemTable(),
		rng:        in.rng,
		randomMode: in.randomMode,
	}
}

// Thread returns the thread used to call safe functions.
func (s *State) Thread() *starlark.Thread { return s.thread }

// Rand returns the random source shared by the macros of this run.
func (s *State) Rand() *rand.Rand { return s.rng }

// Comparer returns the comparer binding.
func (s *State) Comparer() (starlark.Value, bool) {
	v, ok := s.globals["comparer"]
	return v, ok
}

// Namespaces returns a copy of the prefix table.
func (s *State) Namespaces() (map[string]string, bool) {
	if s.namespaces == nil {
		return nil, false
	}
	table := make(map[string]string, len(s.namespaces))
	for k, v := range s.namespaces {
		table[k] = v
	}
	return table, true
}

// Item returns a named item.
func (s *State) Item(name string) (starlark.Value, bool) {
	return s.items.get(name)
}

// ItemNames returns the item names in definition order.
func (s *State) ItemNames() []string {
	return append([]string(nil), s.items.names...)
}

// SetItem binds a named item.
func (s *State) SetItem(name string, v starlark.Value) {
	s.items.set(name, v)
}

// Groups returns the current groups.
func (s *State) Groups() (Groups, bool) {
	return s.groups, s.groups != nil
}

// SetGroups replaces the groups.
func (s *State) SetGroups(g Groups) {
	s.groups = g
}

// Total returns the explicit expected number of comparisons.
func (s *State) Total() (int64, bool) {
	return s.total, s.hasTotal
}

// SetTotal sets the expected number of comparisons.
func (s *State) SetTotal(n int64) {
	s.total = n
	s.hasTotal = true
}

// Exec parses src and executes its statements in order, stopping at the
// first error. Errors carry the source name.
func (in *Interpreter) Exec(state *State, src Source) error {
	stmts, err := Parse(src.Text)
	if err != nil {
		return withSource(err, src.Name)
	}
	for _, stmt := range stmts {
		if err := in.execStmt(state, stmt); err != nil {
			return withSource(err, src.Name)
		}
	}
	return nil
}

func (in *Interpreter) execStmt(s *State, stmt Stmt) error {
	var kind string
	var err error
	switch n := stmt.(type) {
	case *ExprStmt:
		kind, err = "call", in.execCall(s, n)
	case *AssignStmt:
		kind, err = "assign", in.execAssign(s, n)
	default:
		return newError(KindParse, stmt.Position(), "This is not valid code.")
	}
	if err == nil && in.onStmt != nil {
		in.onStmt(kind)
	}
	return err
}

func (in *Interpreter) execCall(s *State, stmt *ExprStmt) error {
	call, ok := stmt.X.(*Call)
	if !ok {
		return newError(KindParse, stmt.Pos, "This is not valid code.")
	}
	fn, ok := call.Fn.(*Ident)
	if !ok {
		return newError(KindParse, call.Fn.Position(), "Cannot call an anonymous function.")
	}
	macro, ok := in.registry.Macro(fn.Name)
	if !ok {
		return newError(KindParse, call.Pos, "Illegal call statement.")
	}

	for _, arg := range call.Args {
		if err := validateExpr(arg.Value, in.registry); err != nil {
			return err
		}
	}
	args, kwargs, err := s.evalArgs(call.Args, s.globalScope())
	if err != nil {
		return err
	}

	in.logger.Debug().Str("macro", fn.Name).Int("line", call.Pos.Line).Msg("Running macro")
	if err := macro(s, args, kwargs); err != nil {
		return wrapError(KindEvaluation, call.Pos, err, "")
	}
	return nil
}

// controlTarget classifies an assignment target.
type controlTarget int

const (
	targetItem controlTarget = iota
	targetComparer
	targetNamespaces
	targetGroups
)

func classifyTarget(name string) controlTarget {
	switch name {
	case "comparer":
		return targetComparer
	case "namespaces":
		return targetNamespaces
	case "groups":
		return targetGroups
	}
	return targetItem
}

func (in *Interpreter) execAssign(s *State, stmt *AssignStmt) error {
	if len(stmt.Targets) > 1 {
		return newError(KindParse, stmt.Pos, "Multiple variable assignment is illegal")
	}
	target, ok := stmt.Targets[0].(*Ident)
	if !ok {
		return newError(KindParse, stmt.Pos, "This is not valid code.")
	}
	name := target.Name

	if reservedItemNames[name] {
		return newError(KindReservedName, target.Pos, "Assignment to '%s' is illegal", name)
	}
	if in.registry.IsFunction(name) {
		return newError(KindReservedName, target.Pos, "'%s' is already defined as a safe function", name)
	}
	if err := validateExpr(stmt.Value, in.registry); err != nil {
		return err
	}

	kind := classifyTarget(name)
	if kind != targetNamespaces && s.namespaces != nil {
		expandNamespaces(stmt.Value, s.namespaces)
	}

	switch kind {
	case targetGroups:
		if err := s.resolveGroups(stmt.Value); err != nil {
			return err
		}
		in.logger.Debug().Int("line", stmt.Pos.Line).Int("groups", s.groups.Len()).Msg("Groups declared")
		return nil

	case targetNamespaces:
		table, err := validateNamespaces(stmt.Value)
		if err != nil {
			return err
		}
		v, err := s.eval(stmt.Value, s.globalScope())
		if err != nil {
			return err
		}
		s.namespaces = table
		s.globals[name] = v
		in.logger.Debug().Int("line", stmt.Pos.Line).Int("prefixes", len(table)).Msg("Namespaces declared")
		return nil

	case targetComparer:
		v, err := s.eval(stmt.Value, s.globalScope())
		if err != nil {
			return err
		}
		s.globals[name] = v
		in.logger.Debug().Int("line", stmt.Pos.Line).Str("value", describe(v)).Msg("Comparer declared")
		return nil
	}

	v, err := s.eval(stmt.Value, s.globalScope())
	if err != nil {
		return err
	}
	s.items.set(name, v)
	in.logger.Debug().Int("line", stmt.Pos.Line).Str("item", name).Str("value", describe(v)).Msg("Item declared")
	return nil
}

// itemTable is an insertion ordered mapping of named items. Rebinding a
// name keeps its original position.
type itemTable struct {
	names  []string
	values map[string]starlark.Value
}

func newItemTable() *itemTable {
	return &itemTable{values: make(map[string]starlark.Value)}
}

func (t *itemTable) get(name string) (starlark.Value, bool) {
	v, ok := t.values[name]
	return v, ok
}

func (t *itemTable) set(name string, v starlark.Value) {
	if _, ok := t.values[name]; !ok {
		t.names = append(t.names, name)
	}
	t.values[name] = v
}
