package config

import (
	"fmt"

	"go.starlark.net/starlark"
)

// scope resolves bare identifiers during evaluation.
type scope func(name string) (starlark.Value, bool)

// globalScope resolves against the global bindings: safe functions,
// comparer and namespaces. Named items are not visible.
func (s *State) globalScope() scope {
	return func(name string) (starlark.Value, bool) {
		v, ok := s.globals[name]
		return v, ok
	}
}

// itemScope resolves against the named items only.
func (s *State) itemScope() scope {
	return func(name string) (starlark.Value, bool) {
		return s.items.get(name)
	}
}

// eval evaluates an expression that has passed validateExpr.
func (s *State) eval(e Expr, sc scope) (starlark.Value, error) {
	switch n := e.(type) {
	case *Literal:
		return literalValue(n), nil

	case *Ident:
		v, ok := sc(n.Name)
		if !ok {
			return nil, newError(KindEvaluation, n.Pos, "name '%s' is not defined", n.Name)
		}
		return v, nil

	case *Sequence:
		elems := make([]starlark.Value, 0, len(n.Elems))
		for _, elem := range n.Elems {
			v, err := s.eval(elem, sc)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		switch n.Kind {
		case TupleSeq:
			return starlark.Tuple(elems), nil
		case ListSeq:
			return starlark.NewList(elems), nil
		}
		set := starlark.NewSet(len(elems))
		for _, v := range elems {
			if err := set.Insert(v); err != nil {
				return nil, wrapError(KindEvaluation, n.Pos, err, "invalid set element")
			}
		}
		return set, nil

	case *Dict:
		dict := starlark.NewDict(len(n.Entries))
		for _, entry := range n.Entries {
			k, err := s.eval(entry.Key, sc)
			if err != nil {
				return nil, err
			}
			v, err := s.eval(entry.Value, sc)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(k, v); err != nil {
				return nil, wrapError(KindEvaluation, entry.Key.Position(), err, "invalid dict key")
			}
		}
		return dict, nil

	case *Call:
		return s.evalCall(n, sc)
	}
	return nil, newError(KindSafety, e.Position(), "Expressions of type %s are not safe.", nodeName(e))
}

func (s *State) evalCall(n *Call, sc scope) (starlark.Value, error) {
	name := n.Fn.(*Ident).Name
	fn, ok := s.globals[name].(starlark.Callable)
	if !ok {
		return nil, newError(KindSafety, n.Pos, "Function %s is not safe", name)
	}
	args, kwargs, err := s.evalArgs(n.Args, sc)
	if err != nil {
		return nil, err
	}
	v, err := starlark.Call(s.thread, fn, args, kwargs)
	if err != nil {
		return nil, wrapError(KindEvaluation, n.Pos, err, "")
	}
	return v, nil
}

// evalArgs evaluates call arguments. A *seq argument is spliced into the
// positional arguments and a **mapping argument into the keywords.
func (s *State) evalArgs(args []Arg, sc scope) (starlark.Tuple, []starlark.Tuple, error) {
	var positional starlark.Tuple
	var kwargs []starlark.Tuple
	seen := make(map[string]bool)

	addKeyword := func(pos Pos, name string, v starlark.Value) error {
		if seen[name] {
			return newError(KindEvaluation, pos, "Got multiple values for keyword argument '%s'", name)
		}
		seen[name] = true
		kwargs = append(kwargs, starlark.Tuple{starlark.String(name), v})
		return nil
	}

	for _, arg := range args {
		v, err := s.eval(arg.Value, sc)
		if err != nil {
			return nil, nil, err
		}
		switch arg.Kind {
		case PositionalArg:
			positional = append(positional, v)

		case KeywordArg:
			if err := addKeyword(arg.Pos, arg.Name, v); err != nil {
				return nil, nil, err
			}

		case StarArg:
			iterable, ok := v.(starlark.Iterable)
			if !ok {
				return nil, nil, newError(KindEvaluation, arg.Pos, "argument after * must be iterable, not %s", v.Type())
			}
			iter := iterable.Iterate()
			var x starlark.Value
			for iter.Next(&x) {
				positional = append(positional, x)
			}
			iter.Done()

		case DoubleStarArg:
			dict, ok := v.(*starlark.Dict)
			if !ok {
				return nil, nil, newError(KindEvaluation, arg.Pos, "argument after ** must be a mapping, not %s", v.Type())
			}
			for _, item := range dict.Items() {
				key, ok := item[0].(starlark.String)
				if !ok {
					return nil, nil, newError(KindEvaluation, arg.Pos, "keywords must be strings, not %s", item[0].Type())
				}
				if err := addKeyword(arg.Pos, string(key), item[1]); err != nil {
					return nil, nil, err
				}
			}
		}
	}
	return positional, kwargs, nil
}

func literalValue(n *Literal) starlark.Value {
	switch n.Kind {
	case StringLiteral:
		return starlark.String(n.Str)
	case BytesLiteral:
		return starlark.Bytes(n.Str)
	case IntLiteral:
		return starlark.MakeBigInt(n.Int)
	case FloatLiteral:
		return starlark.Float(n.Float)
	case BoolLiteral:
		return starlark.Bool(n.Bool)
	}
	return starlark.None
}

// Str returns the default string form of a value: the raw text of a
// string, the Starlark representation of anything else.
func Str(v starlark.Value) string {
	if s, ok := v.(starlark.String); ok {
		return string(s)
	}
	return v.String()
}

// describe is used in debug logs.
func describe(v starlark.Value) string {
	return fmt.Sprintf("%s %s", v.Type(), v.String())
}
