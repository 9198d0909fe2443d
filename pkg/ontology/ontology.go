// Package ontology loads class hierarchies into the concept store.
//
// An ontology file is YAML listing classes with their direct
// superclasses:
//
//	classes:
//	  - iri: http://example.org/thing
//	  - iri: http://example.org/animal
//	    superclasses: [http://example.org/thing]
//
// Import computes the reflexive-transitive closure of the hierarchy with
// shortest distances and the intrinsic information content of Seco et al.,
// stored under the measure name "seco".
package ontology

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mossy/mossy/pkg/stores"
)

// SecoMeasure is the name the intrinsic information content is stored under.
const SecoMeasure = "seco"

// Class is one ontology class.
type Class struct {
	IRI          string   `yaml:"iri" validate:"required"`
	Type         string   `yaml:"type" validate:"omitempty,oneof=class individual"`
	Superclasses []string `yaml:"superclasses" validate:"dive,required"`
}

// Ontology is a parsed ontology file.
type Ontology struct {
	Classes []Class `yaml:"classes" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Parse reads an ontology from r.
func Parse(r io.Reader) (*Ontology, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var o Ontology
	if err := dec.Decode(&o); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ontology is empty")
		}
		return nil, fmt.Errorf("failed to parse ontology: %w", err)
	}
	if err := validate.Struct(&o); err != nil {
		return nil, fmt.Errorf("invalid ontology: %w", err)
	}

	seen := make(map[string]bool, len(o.Classes))
	for _, c := range o.Classes {
		if seen[c.IRI] {
			return nil, fmt.Errorf("class %s is declared twice", c.IRI)
		}
		seen[c.IRI] = true
	}
	return &o, nil
}

// ParseFile reads an ontology file.
func ParseFile(path string) (*Ontology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Edge is a closure edge between two IRIs.
type Edge struct {
	Subclass   string
	Superclass string
	Distance   int
}

// IRIs returns every IRI of the ontology in declaration order, followed by
// superclasses that are referenced but not declared.
func (o *Ontology) IRIs() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(iri string) {
		if !seen[iri] {
			seen[iri] = true
			out = append(out, iri)
		}
	}
	for _, c := range o.Classes {
		add(c.IRI)
	}
	for _, c := range o.Classes {
		for _, s := range c.Superclasses {
			add(s)
		}
	}
	return out
}

// Closure returns the reflexive-transitive subclass closure with the
// shortest distance of every pair. Cycles are tolerated.
func (o *Ontology) Closure() []Edge {
	parents := make(map[string][]string)
	for _, c := range o.Classes {
		parents[c.IRI] = append(parents[c.IRI], c.Superclasses...)
	}

	var edges []Edge
	for _, iri := range o.IRIs() {
		dist := map[string]int{iri: 0}
		queue := []string{iri}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, p := range parents[cur] {
				if _, ok := dist[p]; !ok {
					dist[p] = dist[cur] + 1
					queue = append(queue, p)
				}
			}
		}

		supers := make([]string, 0, len(dist))
		for s := range dist {
			supers = append(supers, s)
		}
		slices.Sort(supers)
		for _, s := range supers {
			edges = append(edges, Edge{Subclass: iri, Superclass: s, Distance: dist[s]})
		}
	}
	return edges
}

// SecoIC returns the intrinsic information content of every class:
// 1 - log(hypo+1)/log(N), where hypo counts the strict descendants of a
// class and N the classes of the ontology. Leaves have 1, a root
// subsuming everything has 0.
func (o *Ontology) SecoIC(closure []Edge) map[string]float64 {
	iris := o.IRIs()
	hypo := make(map[string]int, len(iris))
	for _, e := range closure {
		if e.Subclass != e.Superclass {
			hypo[e.Superclass]++
		}
	}

	n := float64(len(iris))
	ics := make(map[string]float64, len(iris))
	for _, iri := range iris {
		if hypo[iri] == 0 {
			ics[iri] = 1
			continue
		}
		ics[iri] = 1 - math.Log(float64(hypo[iri]+1))/math.Log(n)
	}
	return ics
}

// Stats summarises an import.
type Stats struct {
	Concepts int
	Edges    int
}

// Import writes the ontology, its closure and the Seco information content
// to store in one transaction.
func Import(ctx context.Context, store stores.Store, o *Ontology) (*Stats, error) {
	closure := o.Closure()
	ics := o.SecoIC(closure)

	kinds := make(map[string]string, len(o.Classes))
	for _, c := range o.Classes {
		kinds[c.IRI] = c.Type
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = store.RollbackTx(tx)
		}
	}()

	ids := make(map[string]int64)
	for _, iri := range o.IRIs() {
		kind := kinds[iri]
		if kind == "" {
			kind = "class"
		}
		id, err := store.AddConcept(ctx, tx, iri, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", iri, err)
		}
		ids[iri] = id
	}

	edges := make([]stores.HierarchyEdge, len(closure))
	for i, e := range closure {
		edges[i] = stores.HierarchyEdge{
			Subclass:   ids[e.Subclass],
			Superclass: ids[e.Superclass],
			Distance:   e.Distance,
		}
	}
	if err := store.AddHierarchy(ctx, tx, edges); err != nil {
		return nil, fmt.Errorf("failed to add hierarchy: %w", err)
	}

	for iri, ic := range ics {
		if err := store.SetIC(ctx, tx, ids[iri], SecoMeasure, ic); err != nil {
			return nil, fmt.Errorf("failed to set information content of %s: %w", iri, err)
		}
	}

	if err := store.CommitTx(tx); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	tx = nil

	return &Stats{Concepts: len(ids), Edges: len(edges)}, nil
}
