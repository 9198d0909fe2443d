package config

// validateExpr checks that e belongs to the safe expression grammar:
// literals, identifiers, tuple, list, set and dict literals of safe
// expressions, and calls by name to registered safe functions whose
// arguments are safe. Every other node is rejected.
func validateExpr(e Expr, reg *Registry) error {
	switch n := e.(type) {
	case *Literal, *Ident:
		return nil

	case *Sequence:
		for _, elem := range n.Elems {
			if err := validateExpr(elem, reg); err != nil {
				return err
			}
		}
		return nil

	case *Dict:
		for _, entry := range n.Entries {
			if entry.Key == nil {
				return newError(KindSafety, entry.Value.Position(), "Expressions of type dict unpacking are not safe.")
			}
			if err := validateExpr(entry.Key, reg); err != nil {
				return err
			}
			if err := validateExpr(entry.Value, reg); err != nil {
				return err
			}
		}
		return nil

	case *Call:
		fn, ok := n.Fn.(*Ident)
		if !ok {
			return newError(KindSafety, n.Fn.Position(), "Cannot call an anonymous function")
		}
		if !reg.IsFunction(fn.Name) {
			return newError(KindSafety, fn.Pos, "Function %s is not safe", fn.Name)
		}
		for _, arg := range n.Args {
			if err := validateExpr(arg.Value, reg); err != nil {
				return err
			}
		}
		return nil
	}
	return newError(KindSafety, e.Position(), "Expressions of type %s are not safe.", nodeName(e))
}

// validateNamespaces checks that e is a dict literal whose keys and values
// are all string literals and returns the prefix table it denotes.
func validateNamespaces(e Expr) (map[string]string, error) {
	d, ok := e.(*Dict)
	if !ok {
		return nil, newError(KindStructural, e.Position(), "Expecting a dictionary.")
	}
	table := make(map[string]string, len(d.Entries))
	for _, entry := range d.Entries {
		if entry.Key == nil {
			return nil, newError(KindStructural, entry.Value.Position(), "Expecting a string as key.")
		}
		key, ok := entry.Key.(*Literal)
		if !ok || key.Kind != StringLiteral {
			return nil, newError(KindStructural, entry.Key.Position(), "Expecting a string as key.")
		}
		value, ok := entry.Value.(*Literal)
		if !ok || value.Kind != StringLiteral {
			return nil, newError(KindStructural, entry.Value.Position(), "Expecting a string as value.")
		}
		table[key.Str] = value.Str
	}
	return table, nil
}
