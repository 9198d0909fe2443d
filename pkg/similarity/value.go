package similarity

import (
	"context"
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// Value exposes a Go comparer or aggregator to the configuration language.
// Comparers get a compare method and aggregators an aggregate method, so
// the same values can be used from Starlark plugins.
type Value struct {
	kind string
	args []string
	impl any
}

var (
	_ starlark.HasAttrs = (*Value)(nil)
	_ Comparer          = (*Value)(nil)
)

// NewValue wraps impl, which must be a Comparer or an Aggregator. kind and
// args only affect how the value prints.
func NewValue(kind string, impl any, args ...string) *Value {
	return &Value{kind: kind, args: args, impl: impl}
}

// Impl returns the wrapped comparer or aggregator.
func (v *Value) Impl() any { return v.impl }

func (v *Value) String() string {
	return v.kind + "(" + strings.Join(v.args, ", ") + ")"
}

func (v *Value) Type() string         { return v.kind }
func (v *Value) Freeze()              {}
func (v *Value) Truth() starlark.Bool { return starlark.True }

func (v *Value) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", v.kind)
}

// Compare implements Comparer.
func (v *Value) Compare(ctx context.Context, items ...starlark.Value) (float64, error) {
	c, ok := v.impl.(Comparer)
	if !ok {
		return 0, fmt.Errorf("%s is not a comparer", v.kind)
	}
	return c.Compare(ctx, items...)
}

// Void forwards to the wrapped comparer.
func (v *Value) Void() (float64, bool) {
	if vd, ok := v.impl.(voider); ok {
		return vd.Void()
	}
	return 0, false
}

func (v *Value) Attr(name string) (starlark.Value, error) {
	switch name {
	case "compare":
		if c, ok := v.impl.(Comparer); ok {
			return starlark.NewBuiltin(v.kind+".compare", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				if len(kwargs) > 0 {
					return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
				}
				sim, err := c.Compare(threadContext(thread), args...)
				if err != nil {
					return nil, err
				}
				return starlark.Float(sim), nil
			}), nil
		}
	case "aggregate":
		if a, ok := v.impl.(Aggregator); ok {
			return starlark.NewBuiltin(v.kind+".aggregate", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var rows *starlark.List
				if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &rows); err != nil {
					return nil, err
				}
				matrix, err := toMatrix(rows)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", b.Name(), err)
				}
				res, err := a.Aggregate(matrix)
				if err != nil {
					return nil, err
				}
				return starlark.Float(res), nil
			}), nil
		}
	}
	return nil, nil
}

func (v *Value) AttrNames() []string {
	var names []string
	if _, ok := v.impl.(Aggregator); ok {
		names = append(names, "aggregate")
	}
	if _, ok := v.impl.(Comparer); ok {
		names = append(names, "compare")
	}
	return names
}

func toMatrix(rows *starlark.List) ([][]float64, error) {
	matrix := make([][]float64, rows.Len())
	for i := range rows.Len() {
		row, ok := rows.Index(i).(*starlark.List)
		if !ok {
			return nil, fmt.Errorf("row %d is %s, want list", i, rows.Index(i).Type())
		}
		matrix[i] = make([]float64, row.Len())
		for j := range row.Len() {
			f, ok := starlark.AsFloat(row.Index(j))
			if !ok {
				return nil, fmt.Errorf("cell (%d, %d) is %s, want a number", i, j, row.Index(j).Type())
			}
			matrix[i][j] = f
		}
	}
	return matrix, nil
}
