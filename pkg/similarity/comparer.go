package similarity

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"
)

// Comparer computes the similarity of the members of one group.
// Implementations must be safe for concurrent use.
type Comparer interface {
	Compare(ctx context.Context, items ...starlark.Value) (float64, error)
}

// Aggregator reduces a non-empty similarity matrix to a single value.
type Aggregator interface {
	Aggregate(matrix [][]float64) (float64, error)
}

// voider is implemented by comparers that define the similarity of a
// comparison where one side is empty.
type voider interface {
	Void() (float64, bool)
}

// NewThread returns a thread for calling configuration values. The thread
// carries ctx so that Go comparers reached through Starlark code see the
// caller's context, and it is cancelled when ctx is.
func NewThread(ctx context.Context, name string) (*starlark.Thread, func()) {
	thread := &starlark.Thread{
		Name:  name,
		Print: func(*starlark.Thread, string) {},
	}
	thread.SetLocal("ctx", ctx)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(ctx.Err().Error())
	})
	return thread, func() { stop() }
}

func threadContext(thread *starlark.Thread) context.Context {
	if thread != nil {
		if ctx, ok := thread.Local("ctx").(context.Context); ok {
			return ctx
		}
	}
	return context.Background()
}

// FromValue returns the Comparer behind a configuration value: either a Go
// comparer, or any value with a callable "compare" attribute.
func FromValue(v starlark.Value) (Comparer, error) {
	if w, ok := v.(*Value); ok {
		if _, ok := w.impl.(Comparer); !ok {
			return nil, fmt.Errorf("%s is not a comparer", w.String())
		}
		return w, nil
	}
	if c, ok := v.(Comparer); ok {
		return c, nil
	}

	fn, err := callableAttr(v, "compare")
	if err != nil {
		return nil, err
	}
	return &starlarkComparer{value: v, fn: fn}, nil
}

// AggregatorFromValue returns the Aggregator behind a configuration value:
// either a Go aggregator, or any value with a callable "aggregate"
// attribute taking the matrix as a list of lists.
func AggregatorFromValue(v starlark.Value) (Aggregator, error) {
	if w, ok := v.(*Value); ok {
		a, ok := w.impl.(Aggregator)
		if !ok {
			return nil, fmt.Errorf("%s is not an aggregator", w.String())
		}
		return a, nil
	}
	if a, ok := v.(Aggregator); ok {
		return a, nil
	}

	fn, err := callableAttr(v, "aggregate")
	if err != nil {
		return nil, err
	}
	return &starlarkAggregator{value: v, fn: fn}, nil
}

func callableAttr(v starlark.Value, name string) (starlark.Callable, error) {
	obj, ok := v.(starlark.HasAttrs)
	if !ok {
		return nil, fmt.Errorf("%s value %s has no %s method", v.Type(), v.String(), name)
	}
	attr, err := obj.Attr(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s.%s: %w", v.Type(), name, err)
	}
	fn, ok := attr.(starlark.Callable)
	if attr == nil || !ok {
		return nil, fmt.Errorf("%s value %s has no %s method", v.Type(), v.String(), name)
	}
	return fn, nil
}

// starlarkComparer calls the compare method of a plugin value.
type starlarkComparer struct {
	value starlark.Value
	fn    starlark.Callable
}

func (c *starlarkComparer) Compare(ctx context.Context, items ...starlark.Value) (float64, error) {
	thread, stop := NewThread(ctx, "compare")
	defer stop()

	res, err := starlark.Call(thread, c.fn, starlark.Tuple(items), nil)
	if err != nil {
		return 0, fmt.Errorf("%s.compare: %w", c.value.Type(), err)
	}
	f, ok := starlark.AsFloat(res)
	if !ok {
		return 0, fmt.Errorf("%s.compare returned %s, want a number", c.value.Type(), res.Type())
	}
	return f, nil
}

// Void reports the value's "void" attribute, if it has a numeric one.
func (c *starlarkComparer) Void() (float64, bool) {
	obj, ok := c.value.(starlark.HasAttrs)
	if !ok {
		return 0, false
	}
	attr, err := obj.Attr("void")
	if err != nil || attr == nil {
		return 0, false
	}
	return starlark.AsFloat(attr)
}

// starlarkAggregator calls the aggregate method of a plugin value.
type starlarkAggregator struct {
	value starlark.Value
	fn    starlark.Callable
}

func (a *starlarkAggregator) Aggregate(matrix [][]float64) (float64, error) {
	rows := make([]starlark.Value, len(matrix))
	for i, row := range matrix {
		cells := make([]starlark.Value, len(row))
		for j, v := range row {
			cells[j] = starlark.Float(v)
		}
		rows[i] = starlark.NewList(cells)
	}

	thread, stop := NewThread(context.Background(), "aggregate")
	defer stop()

	res, err := starlark.Call(thread, a.fn, starlark.Tuple{starlark.NewList(rows)}, nil)
	if err != nil {
		return 0, fmt.Errorf("%s.aggregate: %w", a.value.Type(), err)
	}
	f, ok := starlark.AsFloat(res)
	if !ok {
		return 0, fmt.Errorf("%s.aggregate returned %s, want a number", a.value.Type(), res.Type())
	}
	return f, nil
}
