package schedule

import (
	"github.com/TheBitDrifter/depot"
)

// Func is the body of a system. It runs once per scheduler tick.
type Func func(ctx *Context) error

// System is a unit of work with declared component access. Systems whose
// accesses conflict never run in the same stage.
type System struct {
	name   string
	run    Func
	access depot.AccessSet
	after  []string
	before []string
}

func NewSystem(name string, run Func) *System {
	return &System{name: name, run: run}
}

func (s *System) Name() string {
	return s.name
}

// Reads declares read access to the components.
func (s *System) Reads(components ...depot.Component) *System {
	for _, c := range components {
		s.access.Add(depot.Read(c))
	}
	return s
}

// Writes declares write access to the components.
func (s *System) Writes(components ...depot.Component) *System {
	for _, c := range components {
		s.access.Add(depot.Write(c))
	}
	return s
}

// Query declares every access q declares.
func (s *System) Query(q depot.Query) *System {
	s.access.Merge(q.Accesses())
	return s
}

// After orders s after the named systems.
func (s *System) After(names ...string) *System {
	s.after = append(s.after, names...)
	return s
}

// Before orders s before the named systems.
func (s *System) Before(names ...string) *System {
	s.before = append(s.before, names...)
	return s
}

func (s *System) Accesses() depot.AccessSet {
	return s.access.Clone()
}
