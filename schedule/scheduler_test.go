package schedule_test

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/TheBitDrifter/depot"
	"github.com/TheBitDrifter/depot/schedule"
	"github.com/stretchr/testify/require"
)

type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

type Mass struct {
	Value float64
}

type Score struct {
	Points int
}

var (
	position = depot.FactoryNewComponent[Position]()
	velocity = depot.FactoryNewComponent[Velocity]()
	mass     = depot.FactoryNewComponent[Mass]()
	score    = depot.FactoryNewComponent[Score]()
)

func noop(*schedule.Context) error { return nil }

func newScheduler(t *testing.T, opts ...schedule.Option) (*depot.World, *schedule.Scheduler) {
	t.Helper()
	world := depot.Factory.NewWorld()
	scheduler, err := schedule.New(world, opts...)
	require.NoError(t, err)
	return world, scheduler
}

func TestCrossWritesRunInSeparateStages(t *testing.T) {
	for _, reversed := range []bool{false, true} {
		t.Run("reversed="+strconv.FormatBool(reversed), func(t *testing.T) {
			_, scheduler := newScheduler(t)
			a := schedule.NewSystem("A", noop).Writes(position).Reads(velocity)
			b := schedule.NewSystem("B", noop).Writes(velocity).Reads(position)
			if reversed {
				require.NoError(t, scheduler.Add(b, a))
			} else {
				require.NoError(t, scheduler.Add(a, b))
			}

			stages, err := scheduler.Stages()
			require.NoError(t, err)
			require.Len(t, stages, 2)
			if reversed {
				require.Equal(t, [][]string{{"B"}, {"A"}}, stages)
			} else {
				require.Equal(t, [][]string{{"A"}, {"B"}}, stages)
			}
		})
	}
}

func TestCompatibleSystemsShareAStage(t *testing.T) {
	_, scheduler := newScheduler(t)
	require.NoError(t, scheduler.Add(
		schedule.NewSystem("read-position-1", noop).Reads(position),
		schedule.NewSystem("read-position-2", noop).Reads(position, velocity),
		schedule.NewSystem("write-mass", noop).Writes(mass),
		schedule.NewSystem("write-score", noop).Writes(score).Reads(velocity),
	))

	stages, err := scheduler.Stages()
	require.NoError(t, err)
	require.Equal(t, [][]string{{"read-position-1", "read-position-2", "write-mass", "write-score"}}, stages)
}

func TestOrderingHints(t *testing.T) {
	_, scheduler := newScheduler(t)
	require.NoError(t, scheduler.Add(
		schedule.NewSystem("render", noop).Reads(position).After("physics"),
		schedule.NewSystem("physics", noop).Writes(position),
		schedule.NewSystem("input", noop).Writes(velocity).Before("physics"),
		schedule.NewSystem("audio", noop).Reads(mass),
	))

	stages, err := scheduler.Stages()
	require.NoError(t, err)
	require.Equal(t, [][]string{{"input", "audio"}, {"physics"}, {"render"}}, stages)
}

func TestOrderingErrors(t *testing.T) {
	tests := []struct {
		name    string
		systems []*schedule.System
		wantErr error
	}{
		{
			name: "Cycle",
			systems: []*schedule.System{
				schedule.NewSystem("a", noop).After("c"),
				schedule.NewSystem("b", noop).After("a"),
				schedule.NewSystem("c", noop).After("b"),
				schedule.NewSystem("d", noop),
			},
			wantErr: schedule.ErrCyclicDependency,
		},
		{
			name: "Unknown reference",
			systems: []*schedule.System{
				schedule.NewSystem("a", noop).Before("missing"),
			},
			wantErr: schedule.ErrUnknownSystem,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, scheduler := newScheduler(t)
			require.NoError(t, scheduler.Add(tt.systems...))
			err := scheduler.Build()
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, scheduler.Tick(), tt.wantErr)
		})
	}

	var cycle schedule.CyclicDependencyError
	_, scheduler := newScheduler(t)
	require.NoError(t, scheduler.Add(
		schedule.NewSystem("x", noop).After("y"),
		schedule.NewSystem("y", noop).After("x"),
	))
	require.ErrorAs(t, scheduler.Build(), &cycle)
	require.Equal(t, []string{"x", "y"}, cycle.Systems)

	require.ErrorIs(t, scheduler.Add(schedule.NewSystem("x", noop)), schedule.ErrDuplicateSystem)
}

// TestStageSafetyProperty builds random systems and checks that no stage
// holds a conflicting pair and that hints are respected.
func TestStageSafetyProperty(t *testing.T) {
	components := []depot.Component{position, velocity, mass, score}
	rng := rand.New(rand.NewPCG(3, 5))

	for round := range 50 {
		_, scheduler := newScheduler(t)
		count := 2 + rng.IntN(8)
		systems := make([]*schedule.System, count)
		for i := range systems {
			sys := schedule.NewSystem("s"+strconv.Itoa(i), noop)
			for _, c := range components {
				switch rng.IntN(3) {
				case 1:
					sys.Reads(c)
				case 2:
					sys.Writes(c)
				}
			}
			if i > 0 && rng.IntN(4) == 0 {
				sys.After("s" + strconv.Itoa(rng.IntN(i)))
			}
			systems[i] = sys
		}
		require.NoError(t, scheduler.Add(systems...))

		stages, err := scheduler.Stages()
		require.NoError(t, err, "round %d", round)

		stageOf := make(map[string]int)
		seen := 0
		for i, stage := range stages {
			require.NotEmpty(t, stage)
			for _, name := range stage {
				stageOf[name] = i
				seen++
			}
		}
		require.Equal(t, count, seen)

		for x := range systems {
			for y := x + 1; y < count; y++ {
				sx, sy := systems[x], systems[y]
				if sx.Accesses().Conflicts(sy.Accesses()) {
					require.NotEqual(t, stageOf[sx.Name()], stageOf[sy.Name()],
						"round %d: %s and %s conflict but share a stage", round, sx.Name(), sy.Name())
				}
			}
		}
	}
}

func TestTickRunsSystems(t *testing.T) {
	world, scheduler := newScheduler(t, schedule.WithWorkers(2))
	entities, err := world.NewEntities(100, position, velocity)
	require.NoError(t, err)
	for _, e := range entities {
		require.NoError(t, velocity.Set(world, e, Velocity{X: 1, Y: 2}))
	}

	movement := depot.Factory.NewQuery()
	movement.And(depot.Write(position), velocity)
	var runs atomic.Int32

	require.NoError(t, scheduler.Add(
		schedule.NewSystem("movement", func(ctx *schedule.Context) error {
			runs.Add(1)
			ctx.ParForEach(movement, func(cursor *depot.Cursor) {
				pos := position.Write(cursor)
				vel := velocity.Read(cursor)
				pos.X += vel.X
				pos.Y += vel.Y
			})
			return nil
		}).Query(movement),
	))

	for range 3 {
		require.NoError(t, scheduler.Tick())
	}
	require.EqualValues(t, 3, runs.Load())
	require.EqualValues(t, 3, scheduler.Ticks())
	for _, e := range entities {
		pos, ok := position.Get(world, e)
		require.True(t, ok)
		require.Equal(t, Position{X: 3, Y: 6}, *pos)
	}
	require.False(t, world.Locked())
}

func TestCommandsApplyAfterStage(t *testing.T) {
	world, scheduler := newScheduler(t)
	seed, err := world.NewEntities(3, position)
	require.NoError(t, err)

	positions := depot.Factory.NewQuery()
	positions.And(position)
	var seenInStage2, lenDuringStage int

	require.NoError(t, scheduler.Add(
		schedule.NewSystem("spawner", func(ctx *schedule.Context) error {
			ctx.ForEach(positions, func(cursor *depot.Cursor) {
				ctx.Commands.Add(cursor.Entity(), velocity.With(Velocity{X: 1}))
			})
			ctx.Commands.Spawn(position.With(Position{}))
			lenDuringStage = world.Len()
			return nil
		}).Query(positions).Writes(velocity),
		schedule.NewSystem("observer", func(ctx *schedule.Context) error {
			q := depot.Factory.NewQuery()
			q.And(position, velocity)
			ctx.ForEach(q, func(*depot.Cursor) { seenInStage2++ })
			return nil
		}).Reads(position, velocity).After("spawner"),
	))

	require.NoError(t, scheduler.Tick())
	require.Equal(t, 3, lenDuringStage, "commands applied before the stage ended")
	require.Equal(t, 3, seenInStage2)
	require.Equal(t, 4, world.Len())
	for _, e := range seed {
		require.True(t, world.Has(e, velocity))
	}
}

func TestDirectStructuralChangePanics(t *testing.T) {
	world, scheduler := newScheduler(t)
	require.NoError(t, scheduler.Add(
		schedule.NewSystem("rogue", func(ctx *schedule.Context) error {
			_, err := ctx.World.NewEntity(position.With(Position{}))
			return err
		}),
	))

	require.PanicsWithValue(t, depot.AccessConflictError{
		Op:     "NewEntity",
		Reason: "structural change while the world is being iterated",
	}, func() { scheduler.Tick() })
	require.False(t, world.Locked())
	require.Zero(t, world.Len())
}

func TestUndeclaredQueryPanics(t *testing.T) {
	_, scheduler := newScheduler(t)
	q := depot.Factory.NewQuery()
	q.And(depot.Write(position))

	require.NoError(t, scheduler.Add(
		schedule.NewSystem("sneaky", func(ctx *schedule.Context) error {
			ctx.Cursor(q).Reset()
			return nil
		}).Reads(position),
	))

	require.Panics(t, func() { scheduler.Tick() })
}

func TestPanickingStageDiscardsCommands(t *testing.T) {
	world, scheduler := newScheduler(t)
	q := depot.Factory.NewQuery()
	q.And(depot.Write(velocity))
	var panicked atomic.Bool

	require.NoError(t, scheduler.Add(
		schedule.NewSystem("spawner", func(ctx *schedule.Context) error {
			ctx.Commands.Spawn(position.With(Position{}))
			return nil
		}).Writes(position),
		schedule.NewSystem("faulty", func(ctx *schedule.Context) error {
			if panicked.CompareAndSwap(false, true) {
				ctx.Cursor(q).Reset()
			}
			return nil
		}).Reads(velocity),
	))
	stages, err := scheduler.Stages()
	require.NoError(t, err)
	require.Len(t, stages, 1)

	require.Panics(t, func() { scheduler.Tick() })
	require.False(t, world.Locked())
	require.Equal(t, 0, world.Len())

	require.NoError(t, scheduler.Tick())
	require.Equal(t, 1, world.Len())
	require.Equal(t, uint64(1), scheduler.Ticks())
}

func TestSystemErrorStopsTick(t *testing.T) {
	world, scheduler := newScheduler(t)
	errBroken := errors.New("broken")
	var laterRan bool

	require.NoError(t, scheduler.Add(
		schedule.NewSystem("broken", func(ctx *schedule.Context) error {
			ctx.Commands.Spawn(position.With(Position{}))
			return errBroken
		}).Writes(position),
		schedule.NewSystem("healthy", func(ctx *schedule.Context) error {
			ctx.Commands.Spawn(mass.With(Mass{}))
			return nil
		}).Writes(mass),
		schedule.NewSystem("later", func(ctx *schedule.Context) error {
			laterRan = true
			return nil
		}).Writes(position).After("broken"),
	))

	err := scheduler.Tick()
	require.ErrorIs(t, err, errBroken)
	var failed *schedule.SystemError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, "broken", failed.System)
	require.False(t, laterRan)
	// The healthy system's commands still land; the failed one's are dropped
	require.Equal(t, 1, world.Len())
	require.EqualValues(t, 0, scheduler.Ticks())
}

func TestLastRunSeesChanges(t *testing.T) {
	world, scheduler := newScheduler(t)
	e, err := world.NewEntity(position.With(Position{}), velocity.With(Velocity{}))
	require.NoError(t, err)

	var lastRuns []uint64
	var changed []int
	require.NoError(t, scheduler.Add(
		schedule.NewSystem("watcher", func(ctx *schedule.Context) error {
			lastRuns = append(lastRuns, ctx.LastRun)
			q := depot.Factory.NewQuery()
			q.And(position)
			q.ChangedSince(ctx.LastRun, position)
			n := 0
			ctx.ForEach(q, func(*depot.Cursor) { n++ })
			changed = append(changed, n)
			return nil
		}).Reads(position),
		schedule.NewSystem("mover", func(ctx *schedule.Context) error {
			if len(lastRuns) == 2 {
				pos, _ := position.GetMut(ctx.World, e)
				pos.X++
			}
			return nil
		}).Writes(position).After("watcher"),
	))

	for range 4 {
		require.NoError(t, scheduler.Tick())
	}
	require.Zero(t, lastRuns[0])
	for i := 1; i < len(lastRuns); i++ {
		require.Greater(t, lastRuns[i], lastRuns[i-1])
	}
	// Creation, nothing, the mover's write in the previous tick, nothing
	require.Equal(t, []int{1, 0, 1, 0}, changed)
}

func TestWithSettings(t *testing.T) {
	settings, err := depot.LoadSettings(strings.NewReader("workers: 3\n"))
	require.NoError(t, err)
	world := depot.Factory.NewWorld()
	scheduler, err := schedule.New(world, schedule.WithSettings(settings))
	require.NoError(t, err)
	require.NoError(t, scheduler.Tick())

	_, err = schedule.New(world, schedule.WithSettings(&depot.Settings{LogLevel: "shouting"}))
	require.Error(t, err)
}
