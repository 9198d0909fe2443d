package similarity

import (
	"context"
	"fmt"
	"sync"

	"go.starlark.net/starlark"

	"github.com/mossy/mossy/pkg/stores"
)

// Measure selects the formula a ConceptComparer applies.
type Measure string

const (
	// Resnik is the information content of the most informative common
	// ancestor.
	Resnik Measure = "resnik"
	// Lin normalises Resnik by the information content of both concepts.
	Lin Measure = "lin"
	// Jiang is the Jiang-Conrath distance; lower means more similar.
	Jiang Measure = "jiang"
)

// ConceptComparer compares two concepts, given as IRI strings, by the
// information content stored for them.
type ConceptComparer struct {
	measure Measure
	ic      string
	store   stores.ConceptStore
	ics     *icCache
}

// NewConceptComparer returns a comparer for measure using the information
// content values named ic.
func NewConceptComparer(store stores.ConceptStore, measure Measure, ic string) (*ConceptComparer, error) {
	switch measure {
	case Resnik, Lin, Jiang:
	default:
		return nil, fmt.Errorf("unknown measure %q", measure)
	}
	if ic == "" {
		return nil, fmt.Errorf("%s: information content name is required", measure)
	}
	return &ConceptComparer{
		measure: measure,
		ic:      ic,
		store:   store,
		ics:     &icCache{values: make(map[int64]float64)},
	}, nil
}

// Compare implements Comparer for a group of exactly two concepts.
func (c *ConceptComparer) Compare(ctx context.Context, items ...starlark.Value) (float64, error) {
	if len(items) != 2 {
		return 0, fmt.Errorf("%s: expected 2 concepts, got %d", c.measure, len(items))
	}
	one, err := conceptIRI(items[0])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.measure, err)
	}
	two, err := conceptIRI(items[1])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.measure, err)
	}
	return c.CompareIRIs(ctx, one, two)
}

// CompareIRIs compares two concepts by IRI.
func (c *ConceptComparer) CompareIRIs(ctx context.Context, one, two string) (float64, error) {
	if one == two {
		switch c.measure {
		case Lin:
			return 1, nil
		case Jiang:
			return 0, nil
		}
	}

	id1, err := c.store.ConceptID(ctx, one)
	if err != nil {
		return 0, err
	}
	id2, err := c.store.ConceptID(ctx, two)
	if err != nil {
		return 0, err
	}

	if c.measure == Resnik {
		return c.store.MICA(ctx, id1, id2, c.ic)
	}

	ic1, err := c.ics.get(ctx, c.store, id1, c.ic)
	if err != nil {
		return 0, err
	}
	ic2, err := c.ics.get(ctx, c.store, id2, c.ic)
	if err != nil {
		return 0, err
	}

	// A concept without information content, or two concepts that both
	// have none, are as far apart as the measure allows.
	if ic1 == stores.NoIC || ic2 == stores.NoIC || ic1+ic2 == 0 {
		if c.measure == Lin {
			return 0, nil
		}
		return 1, nil
	}

	shared, err := c.store.MICA(ctx, id1, id2, c.ic)
	if err != nil {
		return 0, err
	}

	if c.measure == Lin {
		return 2 * shared / (ic1 + ic2), nil
	}
	return (ic1 + ic2 - 2*shared) / 2, nil
}

func conceptIRI(v starlark.Value) (string, error) {
	s, ok := v.(starlark.String)
	if !ok {
		return "", fmt.Errorf("expected a concept IRI, got %s", v.Type())
	}
	return string(s), nil
}

type icCache struct {
	mu     sync.RWMutex
	values map[int64]float64
}

func (c *icCache) get(ctx context.Context, store stores.ConceptStore, id int64, measure string) (float64, error) {
	c.mu.RLock()
	ic, ok := c.values[id]
	c.mu.RUnlock()
	if ok {
		return ic, nil
	}

	ic, err := store.IC(ctx, id, measure)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.values[id] = ic
	c.mu.Unlock()
	return ic, nil
}
