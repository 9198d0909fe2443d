package config

import (
	"go.starlark.net/starlark"
)

// Config is the immutable result of interpretation: the comparer, the
// named items and the groups to compare, plus the expected number of
// comparisons. All values are frozen, so a Config may be shared by
// concurrent readers.
type Config struct {
	comparer starlark.Value
	items    map[string]starlark.Value
	names    []string
	groups   Groups
	total    int64
}

// Assemble checks that the required bindings are present and builds the
// result. total is the explicit value when one was set, else the number of
// groups.
func Assemble(s *State) (*Config, error) {
	comparer, ok := s.Comparer()
	if !ok {
		return nil, &Error{Kind: KindMissingBinding, Message: "Missing the 'comparer' variable"}
	}
	groups, ok := s.Groups()
	if !ok {
		return nil, &Error{Kind: KindMissingBinding, Message: "Missing the 'groups' variable"}
	}

	total, ok := s.Total()
	if !ok {
		total = int64(groups.Len())
	}

	comparer.Freeze()
	items := make(map[string]starlark.Value, len(s.items.names))
	for _, name := range s.items.names {
		v := s.items.values[name]
		v.Freeze()
		items[name] = v
	}

	return &Config{
		comparer: comparer,
		items:    items,
		names:    append([]string(nil), s.items.names...),
		groups:   groups,
		total:    total,
	}, nil
}

// Comparer returns the value bound to comparer.
func (c *Config) Comparer() starlark.Value { return c.comparer }

// Item returns the named item.
func (c *Config) Item(name string) (starlark.Value, bool) {
	v, ok := c.items[name]
	return v, ok
}

// Items returns a copy of the named items.
func (c *Config) Items() map[string]starlark.Value {
	items := make(map[string]starlark.Value, len(c.items))
	for k, v := range c.items {
		items[k] = v
	}
	return items
}

// ItemNames returns the item names in definition order.
func (c *Config) ItemNames() []string {
	return append([]string(nil), c.names...)
}

// Groups returns the groups to compare.
func (c *Config) Groups() Groups { return c.groups }

// Total returns the expected number of comparisons.
func (c *Config) Total() int64 { return c.total }
