// Package config implements the mossy configuration language: a small,
// statically checked expression language that declares what to compare
// and how.
//
// # Overview
//
// A configuration is a sequence of statements. Only two statement shapes
// exist:
//
//	name = expression
//	macro_name(arguments...)
//
// Expressions are restricted to literals (strings, bytes, numbers, True,
// False, None), bare identifiers, tuple, list, set and dict literals, and
// calls by name to safe functions registered in a Registry. Attribute
// access, subscripts, operators, lambdas and comprehensions are parsed
// only so that they can be rejected with a precise message.
//
// # Names
//
// Global bindings and named items are separate namespaces. The global
// bindings hold the safe functions plus the control names comparer and
// namespaces. Every other assignment creates a named item, which is only
// reachable through the groups declaration:
//
//	namespaces = {"ex": "http://example.org/onto#"}
//	a = "ex:Heart"                 # item a = "http://example.org/onto#Heart"
//	b = "ex:Liver"
//	comparer = resnik("seco")
//	groups = [(a, b), (a, "ex:Lung")]
//
// The second group member "ex:Lung" is not a name, so it is evaluated,
// stored as an item under its string form and referenced by that name.
//
// # Components
//
// Registry: safe functions and macros, frozen before interpretation.
//
// Interpreter: parses and executes Sources against a State.
//
// Config: the immutable result handed to the comparison runner.
//
// # Usage Example
//
//	reg := config.NewRegistry()
//	if err := config.RegisterMacros(reg); err != nil {
//	    log.Fatal(err)
//	}
//	similarity.Register(reg, store)
//
//	in := config.New(reg, config.WithLogger(log.Logger))
//	src, err := config.FileSource("pairs.conf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := in.Interpret(src, config.CommandSource("make_all_pairs()"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Errors
//
// Every failure is an *Error carrying a Kind, the source name and a
// 1-based line number. Use errors.Is with the Err* sentinels to test the
// kind:
//
//	if errors.Is(err, config.ErrSafety) {
//	    // an expression outside the safe grammar
//	}
package config
