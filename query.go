package depot

import (
	"github.com/TheBitDrifter/mask"
)

type Operation int

const (
	OpAnd Operation = iota
	OpOr
	OpNot
)

type compositeNode struct {
	op       Operation
	children []QueryNode
	mask     mask.Mask
}

type changeFilter struct {
	since   uint64
	columns []ComponentID
}

var _ Query = &query{}

type query struct {
	root    QueryNode
	access  AccessSet
	changed []changeFilter
}

func newQuery() *query {
	return &query{}
}

func newCompositeNode(op Operation, components []*ComponentType) *compositeNode {
	node := &compositeNode{
		op:       op,
		children: make([]QueryNode, 0),
	}
	for _, ct := range components {
		node.mask.Mark(uint32(ct.id))
	}
	return node
}

func (n *compositeNode) Evaluate(archetype Archetype) bool {
	archeMask := archetype.Mask()

	switch n.op {
	case OpAnd:
		if !archeMask.ContainsAll(n.mask) {
			return false
		}
		for _, child := range n.children {
			if !child.Evaluate(archetype) {
				return false
			}
		}
		return true

	case OpOr:
		if archeMask.ContainsAny(n.mask) {
			return true
		}
		for _, child := range n.children {
			if child.Evaluate(archetype) {
				return true
			}
		}
		return false

	case OpNot:
		for _, child := range n.children {
			if child.Evaluate(archetype) {
				return false
			}
		}
		return !archeMask.ContainsAny(n.mask)
	}
	return false
}

// And matches archetypes holding every listed component and satisfying every
// nested node. Components listed bare are read; wrap them in Write to mutate.
// The node built last becomes the query's root, so nest inner nodes as
// arguments: q.And(a, Write(b), q.Not(c)).
func (q *query) And(items ...any) QueryNode {
	components, children := q.processItems(true, items...)
	node := newCompositeNode(OpAnd, components)
	node.children = children
	q.root = node
	return node
}

func (q *query) Or(items ...any) QueryNode {
	components, children := q.processItems(true, items...)
	node := newCompositeNode(OpOr, components)
	node.children = children
	q.root = node
	return node
}

// Not matches archetypes holding none of the listed components and matching
// none of the nested nodes. Excluded components declare no access.
func (q *query) Not(items ...any) QueryNode {
	components, children := q.processItems(false, items...)
	node := newCompositeNode(OpNot, components)
	node.children = children
	q.root = node
	return node
}

// ChangedSince keeps only chunks in which at least one of the components was
// written after tick. Repeated calls must all hold. The components are
// declared as read.
func (q *query) ChangedSince(tick uint64, components ...Component) Query {
	filter := changeFilter{since: tick}
	for _, c := range components {
		ct := c.Descriptor()
		q.access.Add(Read(ct))
		filter.columns = append(filter.columns, ct.id)
	}
	q.changed = append(q.changed, filter)
	return q
}

func (q *query) Accesses() AccessSet {
	return q.access.Clone()
}

func (q *query) processItems(declare bool, items ...any) ([]*ComponentType, []QueryNode) {
	components := make([]*ComponentType, 0)
	children := make([]QueryNode, 0)

	for _, item := range items {
		switch v := item.(type) {
		case Access:
			components = append(components, v.Component)
			if declare {
				q.access.Add(v)
			}
		case optionalAccess:
			q.access.Add(v.access)
		case Component:
			ct := v.Descriptor()
			components = append(components, ct)
			if declare {
				q.access.Add(Read(ct))
			}
		case []Component:
			for _, c := range v {
				ct := c.Descriptor()
				components = append(components, ct)
				if declare {
					q.access.Add(Read(ct))
				}
			}
		case QueryNode:
			children = append(children, v)
		}
	}

	return components, children
}

func (q *query) Evaluate(archetype Archetype) bool {
	if q.root == nil {
		return false
	}
	return q.root.Evaluate(archetype)
}

func (q *query) chunkChanged(c *chunk, arch *archetype) bool {
	for _, filter := range q.changed {
		changed := false
		for _, id := range filter.columns {
			if col := arch.columnIndex(id); col >= 0 && c.columns[col].version > filter.since {
				changed = true
				break
			}
		}
		if !changed {
			return false
		}
	}
	return true
}

// collect evaluates the query against the current archetypes. Nothing is
// cached between calls, so structural changes are always observed.
func (q *query) collect(w *World) []chunkRef {
	var targets []chunkRef
	for _, arch := range w.archetypes.asSlice {
		if arch.size == 0 || !q.Evaluate(arch) {
			continue
		}
		for _, c := range arch.chunks {
			if q.chunkChanged(c, arch) {
				targets = append(targets, chunkRef{arch: arch, chunk: c})
			}
		}
	}
	return targets
}

// ForEach runs fn for every matching entity in chunk order, then slot order.
func (q *query) ForEach(w *World, fn func(*Cursor)) {
	cursor := newCursor(q, w)
	defer cursor.Reset()
	for cursor.Next() {
		fn(cursor)
	}
}
