package config

import (
	"fmt"
	"sort"
	"sync"

	"go.starlark.net/starlark"
)

// Macro is a capability invoked as a bare top-level statement. Unlike a
// safe function it returns no value and may rewrite any part of the state,
// typically the groups and the total.
type Macro func(state *State, args starlark.Tuple, kwargs []starlark.Tuple) error

// BuiltinFunc is the signature of a safe function implemented in Go.
type BuiltinFunc func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// reservedControlNames can never be registered as functions or macros.
var reservedControlNames = map[string]bool{
	"comparer":   true,
	"namespaces": true,
	"items":      true,
	"groups":     true,
}

// Registry holds the safe functions and macros available to configuration
// text. It is populated during start-up, frozen, and then only read.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]starlark.Callable
	macros    map[string]Macro
	frozen    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]starlark.Callable),
		macros:    make(map[string]Macro),
	}
}

// RegisterFunction registers a safe function under name.
func (r *Registry) RegisterFunction(name string, fn starlark.Callable) error {
	if fn == nil {
		return &Error{Kind: KindDuplicateRegistration, Message: fmt.Sprintf("function %s is nil", name)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkName(name); err != nil {
		return err
	}
	r.functions[name] = fn
	return nil
}

// RegisterBuiltin registers a Go implemented safe function under name.
func (r *Registry) RegisterBuiltin(name string, impl BuiltinFunc) error {
	return r.RegisterFunction(name, starlark.NewBuiltin(name, impl))
}

// RegisterMacro registers a macro under name.
func (r *Registry) RegisterMacro(name string, m Macro) error {
	if m == nil {
		return &Error{Kind: KindDuplicateRegistration, Message: fmt.Sprintf("macro %s is nil", name)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkName(name); err != nil {
		return err
	}
	r.macros[name] = m
	return nil
}

// checkName must be called with the write lock held.
func (r *Registry) checkName(name string) error {
	switch {
	case r.frozen:
		return &Error{Kind: KindDuplicateRegistration, Message: fmt.Sprintf("cannot register %s: registry is frozen", name)}
	case name == "":
		return &Error{Kind: KindDuplicateRegistration, Message: "cannot register an empty name"}
	case reservedControlNames[name]:
		return &Error{Kind: KindDuplicateRegistration, Message: fmt.Sprintf("Cannot register a function with name %s", name)}
	}
	if _, ok := r.functions[name]; ok {
		return &Error{Kind: KindDuplicateRegistration, Message: fmt.Sprintf("A function named %s has already been registered", name)}
	}
	if _, ok := r.macros[name]; ok {
		return &Error{Kind: KindDuplicateRegistration, Message: fmt.Sprintf("A macro named %s has already been registered", name)}
	}
	return nil
}

// Freeze ends the registration phase. Later registrations fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Function returns the safe function registered under name.
func (r *Registry) Function(name string) (starlark.Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	return fn, ok
}

// Macro returns the macro registered under name.
func (r *Registry) Macro(name string) (Macro, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.macros[name]
	return m, ok
}

// IsFunction reports whether name is a registered safe function.
func (r *Registry) IsFunction(name string) bool {
	_, ok := r.Function(name)
	return ok
}

// Functions returns the sorted names of all safe functions.
func (r *Registry) Functions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.functions)
}

// Macros returns the sorted names of all macros.
func (r *Registry) Macros() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.macros)
}

// functionTable copies the safe functions into a fresh binding table.
func (r *Registry) functionTable() starlark.StringDict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table := make(starlark.StringDict, len(r.functions)+2)
	for name, fn := range r.functions {
		table[name] = fn
	}
	return table
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
