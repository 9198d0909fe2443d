package similarity

import (
	"fmt"
	"strconv"

	"go.starlark.net/starlark"

	"github.com/mossy/mossy/pkg/config"
	"github.com/mossy/mossy/pkg/stores"
)

// Register adds the similarity measures, list aggregators and the
// concepts constructor to reg as safe functions.
func Register(reg *config.Registry, store stores.ConceptStore) error {
	builtins := []struct {
		name string
		impl config.BuiltinFunc
	}{
		{string(Resnik), conceptBuiltin(store, Resnik)},
		{string(Lin), conceptBuiltin(store, Lin)},
		{string(Jiang), conceptBuiltin(store, Jiang)},
		{"simple_list_comparer", builtinSimpleListComparer},
		{"list_min", aggregatorBuiltin(Min{})},
		{"list_max", aggregatorBuiltin(Max{})},
		{"list_avg", aggregatorBuiltin(Avg{})},
		{"list_bma", builtinListBMA},
		{"list_hna", builtinListHNA},
		{"concepts", builtinConcepts},
	}

	for _, b := range builtins {
		if err := reg.RegisterBuiltin(b.name, b.impl); err != nil {
			return fmt.Errorf("failed to register %s: %w", b.name, err)
		}
	}
	return nil
}

func conceptBuiltin(store stores.ConceptStore, measure Measure) config.BuiltinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var ic string
		var hierarchy starlark.Value = starlark.None
		var useDisjoints bool
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"ic", &ic,
			"hierarchy?", &hierarchy,
			"use_disjoints?", &useDisjoints,
		); err != nil {
			return nil, err
		}
		if hierarchy != starlark.None {
			return nil, fmt.Errorf("%s: custom hierarchies are not supported", b.Name())
		}
		if useDisjoints {
			return nil, fmt.Errorf("%s: disjointness information is not supported", b.Name())
		}

		c, err := NewConceptComparer(store, measure, ic)
		if err != nil {
			return nil, err
		}
		return NewValue(b.Name(), c, strconv.Quote(ic)), nil
	}
}

func builtinSimpleListComparer(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var innerV, aggrV starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "inner", &innerV, "aggr", &aggrV); err != nil {
		return nil, err
	}

	inner, err := FromValue(innerV)
	if err != nil {
		return nil, fmt.Errorf("%s: inner: %w", b.Name(), err)
	}
	aggr, err := AggregatorFromValue(aggrV)
	if err != nil {
		return nil, fmt.Errorf("%s: aggr: %w", b.Name(), err)
	}

	return NewValue(b.Name(), NewListComparer(inner, aggr), innerV.String(), aggrV.String()), nil
}

func aggregatorBuiltin(a Aggregator) config.BuiltinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
			return nil, err
		}
		return NewValue(b.Name(), a), nil
	}
}

func builtinListBMA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	best := string(BestMatchMax)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "best_match?", &best); err != nil {
		return nil, err
	}

	bma, err := NewBMA(best)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewValue(b.Name(), bma, "best_match="+strconv.Quote(best)), nil
}

func builtinListHNA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var n starlark.Value = starlark.MakeInt(10)
	mode := string(HNAHighest)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n, "mode?", &mode); err != nil {
		return nil, err
	}

	f, ok := starlark.AsFloat(n)
	if !ok {
		return nil, fmt.Errorf("%s: n must be a number, got %s", b.Name(), n.Type())
	}
	hna, err := NewHNA(f, mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewValue(b.Name(), hna, "n="+n.String(), "mode="+strconv.Quote(mode)), nil
}

// builtinConcepts builds a frozen set of IRIs, the item shape list
// comparers expect.
func builtinConcepts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}

	set := starlark.NewSet(len(args))
	for i, arg := range args {
		if _, ok := arg.(starlark.String); !ok {
			return nil, fmt.Errorf("%s: argument %d is %s, want an IRI string", b.Name(), i+1, arg.Type())
		}
		if err := set.Insert(arg); err != nil {
			return nil, err
		}
	}
	set.Freeze()
	return set, nil
}
