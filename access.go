package depot

import (
	"fmt"

	"github.com/TheBitDrifter/mask"
)

type AccessMode uint8

const (
	AccessRead AccessMode = iota + 1
	AccessWrite
)

func (m AccessMode) String() string {
	switch m {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	}
	return fmt.Sprintf("AccessMode(%d)", m)
}

// Access pairs a component with the mode a query or system uses it in.
type Access struct {
	Component *ComponentType
	Mode      AccessMode
}

func Read(c Component) Access {
	return Access{Component: c.Descriptor(), Mode: AccessRead}
}

func Write(c Component) Access {
	return Access{Component: c.Descriptor(), Mode: AccessWrite}
}

type optionalAccess struct {
	access Access
}

// Optional declares access to a component without requiring entities to
// carry it. Use TryRead/TryWrite to reach the data.
func Optional(a Access) any {
	return optionalAccess{access: a}
}

// AccessSet is the set of component streams a query or system touches.
// Write access implies read access.
type AccessSet struct {
	reads  mask.Mask
	writes mask.Mask
	all    mask.Mask
	list   []Access
}

func (s *AccessSet) Add(accesses ...Access) {
	for _, a := range accesses {
		bit := uint32(a.Component.id)
		switch {
		case a.Mode == AccessWrite && !s.writes.ContainsAll(bitOf(a.Component)):
			s.writes.Mark(bit)
			s.reads.Unmark(bit)
			s.all.Mark(bit)
			s.replace(a)
		case a.Mode == AccessRead && !s.all.ContainsAll(bitOf(a.Component)):
			s.reads.Mark(bit)
			s.all.Mark(bit)
			s.list = append(s.list, a)
		}
	}
}

func (s *AccessSet) replace(a Access) {
	for i := range s.list {
		if s.list[i].Component == a.Component {
			s.list[i] = a
			return
		}
	}
	s.list = append(s.list, a)
}

func (s *AccessSet) Merge(other AccessSet) {
	s.Add(other.list...)
}

// Clone returns a copy that does not share storage with s.
func (s AccessSet) Clone() AccessSet {
	s.list = append([]Access(nil), s.list...)
	return s
}

func (s AccessSet) Empty() bool {
	return len(s.list) == 0
}

func (s AccessSet) Accesses() []Access {
	return append([]Access(nil), s.list...)
}

func (s AccessSet) CanRead(ct *ComponentType) bool {
	return s.all.ContainsAll(bitOf(ct))
}

func (s AccessSet) CanWrite(ct *ComponentType) bool {
	return s.writes.ContainsAll(bitOf(ct))
}

// Conflicts reports whether running s and other concurrently could race: one
// side writes a stream the other reads or writes.
func (s AccessSet) Conflicts(other AccessSet) bool {
	return s.writes.ContainsAny(other.all) || other.writes.ContainsAny(s.all)
}

// Covers reports whether every access of other is permitted by s.
func (s AccessSet) Covers(other AccessSet) bool {
	return s.all.ContainsAll(other.all) && s.writes.ContainsAll(other.writes)
}

func (s AccessSet) String() string {
	return fmt.Sprint(s.list)
}

func (a Access) String() string {
	return a.Mode.String() + " " + a.Component.name
}

func readAll(arch *archetype) *AccessSet {
	set := &AccessSet{}
	for _, ct := range arch.components {
		set.Add(Read(ct))
	}
	return set
}
