package similarity

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.starlark.net/starlark"
)

// ListComparer compares two collections of concepts by comparing every
// member of one with every member of the other and aggregating the
// resulting matrix.
type ListComparer struct {
	inner Comparer
	aggr  Aggregator
}

// NewListComparer returns a comparer over collections.
func NewListComparer(inner Comparer, aggr Aggregator) *ListComparer {
	return &ListComparer{inner: inner, aggr: aggr}
}

// Compare implements Comparer for a group of exactly two collections.
// When either collection is empty the result is the inner comparer's void
// value, or 0.
func (c *ListComparer) Compare(ctx context.Context, items ...starlark.Value) (float64, error) {
	if len(items) != 2 {
		return 0, fmt.Errorf("simple_list_comparer: expected 2 collections, got %d", len(items))
	}
	one, err := elements(items[0])
	if err != nil {
		return 0, fmt.Errorf("simple_list_comparer: %w", err)
	}
	two, err := elements(items[1])
	if err != nil {
		return 0, fmt.Errorf("simple_list_comparer: %w", err)
	}

	if len(one) == 0 || len(two) == 0 {
		if vd, ok := c.inner.(voider); ok {
			if void, ok := vd.Void(); ok {
				return void, nil
			}
		}
		return 0, nil
	}

	matrix := make([][]float64, len(one))
	for i, first := range one {
		matrix[i] = make([]float64, len(two))
		for j, second := range two {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			sim, err := c.inner.Compare(ctx, first, second)
			if err != nil {
				return 0, err
			}
			matrix[i][j] = sim
		}
	}

	return c.aggr.Aggregate(matrix)
}

func elements(v starlark.Value) ([]starlark.Value, error) {
	if _, ok := v.(starlark.String); ok {
		return nil, fmt.Errorf("expected a collection of concepts, got string")
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("expected a collection of concepts, got %s", v.Type())
	}

	var out []starlark.Value
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		out = append(out, x)
	}
	return out, nil
}

// Min aggregates a matrix to its smallest value.
type Min struct{}

func (Min) Aggregate(matrix [][]float64) (float64, error) {
	out := math.Inf(1)
	for _, row := range matrix {
		for _, v := range row {
			out = math.Min(out, v)
		}
	}
	return out, nil
}

// Max aggregates a matrix to its largest value.
type Max struct{}

func (Max) Aggregate(matrix [][]float64) (float64, error) {
	out := math.Inf(-1)
	for _, row := range matrix {
		for _, v := range row {
			out = math.Max(out, v)
		}
	}
	return out, nil
}

// Avg aggregates a matrix to the mean of its values.
type Avg struct{}

func (Avg) Aggregate(matrix [][]float64) (float64, error) {
	var total float64
	var count int
	for _, row := range matrix {
		for _, v := range row {
			total += v
			count++
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("list_avg: empty matrix")
	}
	return total / float64(count), nil
}

// BestMatch selects how BMA picks the best match of a row or column.
type BestMatch string

const (
	BestMatchMax BestMatch = "max"
	BestMatchMin BestMatch = "min"
)

// BMA is the best-match average: the best value of each row and of each
// column, averaged over rows plus columns.
type BMA struct {
	Best BestMatch
}

// NewBMA validates the best-match mode.
func NewBMA(best string) (BMA, error) {
	switch BestMatch(best) {
	case BestMatchMax, BestMatchMin:
		return BMA{Best: BestMatch(best)}, nil
	}
	return BMA{}, fmt.Errorf("valid values for best_match are 'max' and 'min', got %q", best)
}

func (a BMA) Aggregate(matrix [][]float64) (float64, error) {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return 0, fmt.Errorf("list_bma: empty matrix")
	}
	pick := math.Max
	if a.Best == BestMatchMin {
		pick = math.Min
	}

	cols := slices.Clone(matrix[0])
	var sum float64
	for i, row := range matrix {
		best := row[0]
		for j, v := range row {
			best = pick(best, v)
			if i > 0 {
				cols[j] = pick(cols[j], v)
			}
		}
		sum += best
	}
	for _, v := range cols {
		sum += v
	}

	return sum / float64(len(matrix)+len(cols)), nil
}

// HNAMode selects whether HNA averages the highest or lowest values.
type HNAMode string

const (
	HNAHighest HNAMode = "highest"
	HNALowest  HNAMode = "lowest"
)

// HNA averages the N highest (or lowest) values of a matrix. An N below 1
// is a fraction of all values.
type HNA struct {
	N    float64
	Mode HNAMode
}

// NewHNA validates the parameters of an HNA aggregator.
func NewHNA(n float64, mode string) (HNA, error) {
	switch HNAMode(mode) {
	case HNAHighest, HNALowest:
	default:
		return HNA{}, fmt.Errorf("valid modes are 'highest' and 'lowest', got %q", mode)
	}
	if !(n > 0) {
		return HNA{}, fmt.Errorf("n must be positive, got %v", n)
	}
	return HNA{N: n, Mode: HNAMode(mode)}, nil
}

func (a HNA) Aggregate(matrix [][]float64) (float64, error) {
	var flat []float64
	for _, row := range matrix {
		flat = append(flat, row...)
	}
	if len(flat) == 0 {
		return 0, fmt.Errorf("list_hna: empty matrix")
	}
	slices.Sort(flat)

	var n int
	if a.N < 1 {
		n = int(math.Ceil(a.N * float64(len(flat))))
	} else {
		n = min(int(a.N), len(flat))
	}
	n = max(n, 1)

	picked := flat[:n]
	if a.Mode == HNAHighest {
		picked = flat[len(flat)-n:]
	}

	var sum float64
	for _, v := range picked {
		sum += v
	}
	return sum / float64(n), nil
}
