package config

import (
	"iter"
)

// GroupKind is the container kind a group was declared with.
type GroupKind int

const (
	// GroupTuple is a fixed-order group.
	GroupTuple GroupKind = iota
	// GroupList is an ordered group that may repeat names.
	GroupList
	// GroupSet is a deduplicated group. Names keep their first occurrence
	// order so that output is deterministic.
	GroupSet
)

func (k GroupKind) String() string {
	switch k {
	case GroupTuple:
		return "tuple"
	case GroupList:
		return "list"
	case GroupSet:
		return "set"
	}
	return "unknown"
}

// Group is a collection of item names compared together.
type Group struct {
	Kind  GroupKind
	Names []string
}

// Groups is a restartable sequence of groups. Implementations may be lazy;
// each call to All starts a fresh iteration yielding the same groups.
type Groups interface {
	Len() int
	All() iter.Seq[Group]
}

// groupSlice is a materialised Groups.
type groupSlice []Group

// Len returns the number of groups.
func (l groupSlice) Len() int { return len(l) }

// All yields the groups in order.
func (l groupSlice) All() iter.Seq[Group] {
	return func(yield func(Group) bool) {
		for _, g := range l {
			if !yield(g) {
				return
			}
		}
	}
}

// Pair builds a two-member tuple group.
func Pair(a, b string) Group {
	return Group{Kind: GroupTuple, Names: []string{a, b}}
}

// concatGroups yields the groups of each part in turn.
type concatGroups []Groups

func (c concatGroups) Len() int {
	n := 0
	for _, g := range c {
		n += g.Len()
	}
	return n
}

func (c concatGroups) All() iter.Seq[Group] {
	return func(yield func(Group) bool) {
		for _, part := range c {
			for g := range part.All() {
				if !yield(g) {
					return
				}
			}
		}
	}
}

// Concat joins several group sequences into one.
func Concat(parts ...Groups) Groups {
	var flat concatGroups
	for _, p := range parts {
		if p == nil {
			continue
		}
		if inner, ok := p.(concatGroups); ok {
			flat = append(flat, inner...)
			continue
		}
		flat = append(flat, p)
	}
	return flat
}

var groupKinds = map[SeqKind]GroupKind{
	TupleSeq: GroupTuple,
	ListSeq:  GroupList,
	SetSeq:   GroupSet,
}

// resolveGroups interprets the expression assigned to groups. Identifier
// members name items directly; any other member is evaluated against the
// named items and stored there under its string form.
func (s *State) resolveGroups(e Expr) error {
	list, ok := e.(*Sequence)
	if !ok || list.Kind != ListSeq {
		return newError(KindStructural, e.Position(), "Expecting a list of groups.")
	}

	groups := make(groupSlice, 0, len(list.Elems))
	for _, elem := range list.Elems {
		seq, ok := elem.(*Sequence)
		if !ok {
			return newError(KindStructural, elem.Position(), "Groups must be sequences of items.")
		}

		group := Group{Kind: groupKinds[seq.Kind]}
		seen := make(map[string]bool, len(seq.Elems))
		for _, member := range seq.Elems {
			var name string
			if id, ok := member.(*Ident); ok {
				name = id.Name
				if _, bound := s.items.get(name); !bound {
					s.logger.Debug().
						Str("item", name).
						Int("line", id.Pos.Line).
						Msg("Group refers to an item that is not defined yet")
				}
			} else {
				v, err := s.eval(member, s.itemScope())
				if err != nil {
					return err
				}
				name = Str(v)
				s.items.set(name, v)
			}

			if group.Kind == GroupSet {
				if seen[name] {
					continue
				}
				seen[name] = true
			}
			group.Names = append(group.Names, name)
		}
		groups = append(groups, group)
	}

	s.groups = groups
	return nil
}
