package config

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// RandomPairsMode selects how add_random_pairs treats groups that were
// already declared.
type RandomPairsMode int

const (
	// RandomPairsReplace discards earlier groups. This is how the macro
	// has always behaved, so it stays the default.
	RandomPairsReplace RandomPairsMode = iota
	// RandomPairsAppend keeps earlier groups and adds the sample after them.
	RandomPairsAppend
)

// RegisterMacros registers make_all_pairs and add_random_pairs.
func RegisterMacros(reg *Registry) error {
	if err := reg.RegisterMacro("make_all_pairs", makeAllPairs); err != nil {
		return err
	}
	return reg.RegisterMacro("add_random_pairs", addRandomPairs)
}

// eligibleNames returns the item names that take part in automatic
// pairing: every name not starting with an underscore, in definition
// order.
func eligibleNames(s *State) []string {
	var names []string
	for _, name := range s.ItemNames() {
		if !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	return names
}

func makeAllPairs(s *State, args starlark.Tuple, kwargs []starlark.Tuple) error {
	if err := starlark.UnpackArgs("make_all_pairs", args, kwargs); err != nil {
		return err
	}
	names := eligibleNames(s)
	sort.Strings(names)

	pairs := allPairs(names)
	s.SetGroups(pairs)
	s.SetTotal(int64(pairs.Len()))
	return nil
}

func addRandomPairs(s *State, args starlark.Tuple, kwargs []starlark.Tuple) error {
	var count int
	if err := starlark.UnpackArgs("add_random_pairs", args, kwargs, "count", &count); err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("add_random_pairs: count must not be negative, got %d", count)
	}
	names := eligibleNames(s)
	if len(names) == 0 && count > 0 {
		return fmt.Errorf("add_random_pairs: no items to pair")
	}

	sample := randomPairs{
		names: names,
		count: count,
		seed1: s.Rand().Uint64(),
		seed2: s.Rand().Uint64(),
	}

	prior, hasPrior := s.Groups()
	total, hasTotal := s.Total()
	if !hasTotal && s.randomMode == RandomPairsAppend && hasPrior {
		total = int64(prior.Len())
	}

	if s.randomMode == RandomPairsAppend && hasPrior {
		s.SetGroups(Concat(prior, sample))
	} else {
		s.SetGroups(sample)
	}
	s.SetTotal(total + int64(count))
	return nil
}

// allPairs yields every pair (a, b) with a <= b over sorted names,
// self-pairs included, without materialising them.
type allPairs []string

func (p allPairs) Len() int {
	n := len(p)
	return n * (n + 1) / 2
}

func (p allPairs) All() iter.Seq[Group] {
	return func(yield func(Group) bool) {
		for i := range p {
			for j := i; j < len(p); j++ {
				if !yield(Pair(p[i], p[j])) {
					return
				}
			}
		}
	}
}

// randomPairs yields count pairs drawn uniformly with replacement. The
// generator is reseeded on every iteration so that the sample is the same
// each time.
type randomPairs struct {
	names        []string
	count        int
	seed1, seed2 uint64
}

func (p randomPairs) Len() int { return p.count }

func (p randomPairs) All() iter.Seq[Group] {
	return func(yield func(Group) bool) {
		rng := rand.New(rand.NewPCG(p.seed1, p.seed2))
		for i := 0; i < p.count; i++ {
			a := p.names[rng.IntN(len(p.names))]
			b := p.names[rng.IntN(len(p.names))]
			if !yield(Pair(a, b)) {
				return
			}
		}
	}
}
