package schedule

import (
	"fmt"
	"slices"

	"github.com/TheBitDrifter/depot"
)

// graph is the ordering between registered systems, by registration index.
// An edge u -> v means u runs in an earlier stage than v.
type graph struct {
	succ [][]int
	pred [][]int
}

func newGraph(n int) *graph {
	return &graph{succ: make([][]int, n), pred: make([][]int, n)}
}

func (g *graph) edge(from, to int) {
	if from == to || slices.Contains(g.succ[from], to) {
		return
	}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
}

// hints builds the graph of After/Before edges.
func hints(systems []*System) (*graph, error) {
	index := make(map[string]int, len(systems))
	for i, sys := range systems {
		index[sys.name] = i
	}
	g := newGraph(len(systems))
	for i, sys := range systems {
		for _, name := range sys.after {
			j, ok := index[name]
			if !ok {
				return nil, UnknownSystemError{System: sys.name, Reference: name}
			}
			g.edge(j, i)
		}
		for _, name := range sys.before {
			j, ok := index[name]
			if !ok {
				return nil, UnknownSystemError{System: sys.name, Reference: name}
			}
			g.edge(i, j)
		}
	}
	return g, nil
}

// order is a topological order of g. Among ready systems the earliest
// registered goes first.
func (g *graph) order(systems []*System) ([]int, error) {
	n := len(g.succ)
	indegree := make([]int, n)
	for v := range n {
		indegree[v] = len(g.pred[v])
	}
	var ready []int
	for v := range n {
		if indegree[v] == 0 {
			ready = append(ready, v)
		}
	}
	order := make([]int, 0, n)
	for len(ready) > 0 {
		v := slices.Min(ready)
		ready = slices.DeleteFunc(ready, func(x int) bool { return x == v })
		order = append(order, v)
		for _, w := range g.succ[v] {
			indegree[w]--
			if indegree[w] == 0 {
				ready = append(ready, w)
			}
		}
	}
	if len(order) < n {
		var cycle []string
		for v := range n {
			if indegree[v] > 0 {
				cycle = append(cycle, systems[v].name)
			}
		}
		return nil, CyclicDependencyError{Systems: cycle}
	}
	return order, nil
}

// plan layers systems into stages. Hint edges come first; every conflicting
// pair is then ordered along the hint order, so the result stays acyclic.
// A system's stage is the length of the longest path reaching it.
func plan(systems []*System) ([][]int, error) {
	g, err := hints(systems)
	if err != nil {
		return nil, err
	}
	order, err := g.order(systems)
	if err != nil {
		return nil, err
	}
	for a := range order {
		for b := a + 1; b < len(order); b++ {
			u, v := order[a], order[b]
			if systems[u].access.Conflicts(systems[v].access) {
				g.edge(u, v)
			}
		}
	}

	depth := make([]int, len(systems))
	stageCount := 0
	for _, v := range order {
		for _, u := range g.pred[v] {
			depth[v] = max(depth[v], depth[u]+1)
		}
		stageCount = max(stageCount, depth[v]+1)
	}
	stages := make([][]int, stageCount)
	for v := range systems {
		stages[depth[v]] = append(stages[depth[v]], v)
	}
	if err := validate(systems, stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func validate(systems []*System, stages [][]int) error {
	for i, stage := range stages {
		for a := range stage {
			for b := a + 1; b < len(stage); b++ {
				x, y := systems[stage[a]], systems[stage[b]]
				if x.access.Conflicts(y.access) {
					return depot.AccessConflictError{
						Op:     fmt.Sprintf("stage %d", i),
						Reason: "systems " + x.name + " and " + y.name + " conflict",
					}
				}
			}
		}
	}
	return nil
}
