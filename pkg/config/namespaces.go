package config

import "strings"

// expandNamespaces rewrites, in place, every string literal of the form
// "prefix:rest" whose prefix is in table into table[prefix] + rest. The
// text before rewriting is kept in Literal.Original.
func expandNamespaces(e Expr, table map[string]string) {
	switch n := e.(type) {
	case *Literal:
		if n.Kind != StringLiteral {
			return
		}
		prefix, rest, ok := strings.Cut(n.Str, ":")
		if !ok {
			return
		}
		expansion, ok := table[prefix]
		if !ok {
			return
		}
		if n.Original == "" {
			n.Original = n.Str
		}
		n.Str = expansion + rest

	case *Sequence:
		for _, elem := range n.Elems {
			expandNamespaces(elem, table)
		}

	case *Dict:
		for _, entry := range n.Entries {
			if entry.Key != nil {
				expandNamespaces(entry.Key, table)
			}
			expandNamespaces(entry.Value, table)
		}

	case *Call:
		for _, arg := range n.Args {
			expandNamespaces(arg.Value, table)
		}
	}
}
