package schedule

import (
	"github.com/TheBitDrifter/depot"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Scheduler runs systems against one world. Systems are layered into stages
// so that no two systems of a stage conflict; a stage runs its systems in
// parallel and applies their command buffers once all of them returned.
type Scheduler struct {
	world   *depot.World
	pool    *depot.WorkerPool
	log     *zap.Logger
	systems []*System
	names   map[string]int

	stages  [][]int
	built   bool
	lastRun []uint64
	buffers []*depot.CommandBuffer
	ticks   uint64
}

func New(world *depot.World, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		world: world,
		log:   depot.Config.Logger(),
		names: make(map[string]int),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		s.pool = depot.NewWorkerPool(0)
	}
	return s, nil
}

// Add registers systems. Registration order breaks ties everywhere the
// ordering is otherwise free. The plan is rebuilt on the next Build or Tick.
func (s *Scheduler) Add(systems ...*System) error {
	for _, sys := range systems {
		if _, exists := s.names[sys.name]; exists {
			return DuplicateSystemError{Name: sys.name}
		}
		s.names[sys.name] = len(s.systems)
		s.systems = append(s.systems, sys)
		s.lastRun = append(s.lastRun, 0)
		s.buffers = append(s.buffers, depot.NewCommandBuffer())
	}
	s.built = false
	return nil
}

// Build computes the stage plan. It fails on unknown or cyclic ordering
// hints.
func (s *Scheduler) Build() error {
	stages, err := plan(s.systems)
	if err != nil {
		return err
	}
	s.stages = stages
	s.built = true
	for i, stage := range stages {
		s.log.Info("stage planned",
			zap.Int("stage", i),
			zap.Strings("systems", s.namesOf(stage)),
		)
	}
	return nil
}

// Stages lists the system names of each stage in execution order.
func (s *Scheduler) Stages() ([][]string, error) {
	if !s.built {
		if err := s.Build(); err != nil {
			return nil, err
		}
	}
	out := make([][]string, len(s.stages))
	for i, stage := range s.stages {
		out[i] = s.namesOf(stage)
	}
	return out, nil
}

// Ticks counts the completed calls to Tick.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// Tick runs every stage once. Each stage starts a new world change tick. If
// a system fails, the remaining systems of its stage still finish and their
// commands are applied, the failed system's commands are dropped, and later
// stages are skipped. A panicking system is re-raised after its stage
// finished, the commands of the whole stage were discarded and the world was
// unlocked.
func (s *Scheduler) Tick() error {
	if !s.built {
		if err := s.Build(); err != nil {
			return err
		}
	}
	for i, stage := range s.stages {
		if err := s.runStage(i, stage); err != nil {
			return err
		}
	}
	s.ticks++
	return nil
}

func (s *Scheduler) runStage(index int, stage []int) error {
	tick := s.world.AdvanceTick()
	results := make([]error, len(stage))
	tasks := make([]func() error, len(stage))
	for i, sys := range stage {
		ctx := &Context{
			World:    s.world,
			Commands: s.buffers[sys],
			Tick:     tick,
			LastRun:  s.lastRun[sys],
			Logger:   s.log.With(zap.String("system", s.systems[sys].name)),
			Pool:     s.pool,
			system:   s.systems[sys],
		}
		tasks[i] = func() error {
			results[i] = s.systems[sys].run(ctx)
			return nil
		}
	}

	s.world.Lock()
	func() {
		defer s.world.Unlock()
		defer func() {
			if r := recover(); r != nil {
				// an abandoned stage leaves no commands for the next tick
				for _, sys := range stage {
					s.buffers[sys].Reset()
				}
				panic(r)
			}
		}()
		_ = s.pool.Run(tasks...)
	}()

	var errs error
	for i, sys := range stage {
		name := s.systems[sys].name
		s.lastRun[sys] = tick
		if results[i] != nil {
			s.buffers[sys].Reset()
			s.log.Error("system failed",
				zap.String("system", name),
				zap.Int("stage", index),
				zap.Uint64("tick", tick),
				zap.Error(results[i]),
			)
			errs = multierr.Append(errs, &SystemError{System: name, Tick: tick, Err: results[i]})
			continue
		}
		if err := s.buffers[sys].Apply(s.world); err != nil {
			s.log.Error("system commands failed",
				zap.String("system", name),
				zap.Int("stage", index),
				zap.Uint64("tick", tick),
				zap.Error(err),
			)
			errs = multierr.Append(errs, &SystemError{System: name, Tick: tick, Err: err})
		}
	}
	return errs
}

func (s *Scheduler) namesOf(stage []int) []string {
	names := make([]string, len(stage))
	for i, sys := range stage {
		names[i] = s.systems[sys].name
	}
	return names
}
