// Profiling:
// go build ./cmd/profile
// go tool pprof -http=":8000" -nodefraction=0.001 ./profile cpu.pprof

package main

import (
	"flag"

	"github.com/TheBitDrifter/depot"
	"github.com/pkg/profile"
)

type comp1 struct {
	V int64
	W int64
}

type comp2 struct {
	V int64
	W int64
}

func main() {
	rounds := flag.Int("rounds", 50, "worlds to build")
	iters := flag.Int("iters", 1000, "spawn/iterate/destroy cycles per world")
	entities := flag.Int("entities", 1000, "entities per cycle")
	mem := flag.Bool("mem", false, "profile allocations instead of CPU")
	flag.Parse()

	mode := profile.CPUProfile
	if *mem {
		mode = profile.MemProfileAllocs
	}
	p := profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook)
	run(*rounds, *iters, *entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	c1 := depot.FactoryNewComponent[comp1]()
	c2 := depot.FactoryNewComponent[comp2]()

	for range rounds {
		w := depot.Factory.NewWorld()
		query := depot.Factory.NewQuery()
		query.And(depot.Write(c1), c2)
		commands := depot.NewCommandBuffer()

		for range iters {
			if _, err := w.NewEntities(numEntities, c1, c2); err != nil {
				panic(err)
			}
			query.ForEach(w, func(cursor *depot.Cursor) {
				a := c1.Write(cursor)
				b := c2.Read(cursor)
				a.V += b.V
				a.W += b.W
				commands.Destroy(cursor.Entity())
			})
			if err := commands.Apply(w); err != nil {
				panic(err)
			}
		}
	}
}
