// Package dag models the pipeline's transformation steps as a directed
// acyclic graph. Execution order is decided by topological sort over the
// graph, not by naming conventions.
package dag

import (
	"fmt"
	"slices"
)

// Step is a named transformation step in the graph.
type Step struct {
	// Name uniquely identifies the step within the graph.
	Name string
	// Data holds the step payload; the engine attaches its stage definition.
	Data any
}

// Graph is a DAG of transformation steps.
type Graph struct {
	steps      map[string]*Step
	dependents map[string][]string // step -> steps that consume its output
	depends    map[string][]string // step -> steps it consumes from
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		steps:      make(map[string]*Step),
		dependents: make(map[string][]string),
		depends:    make(map[string][]string),
	}
}

// AddStep registers a step. Adding an existing name replaces its payload.
func (g *Graph) AddStep(name string, data any) {
	if s, ok := g.steps[name]; ok {
		s.Data = data
		return
	}
	g.steps[name] = &Step{Name: name, Data: data}
	g.dependents[name] = nil
	g.depends[name] = nil
}

// AddDependency declares that step depends on upstream. Both must already
// be registered; self-dependencies are rejected.
func (g *Graph) AddDependency(step, upstream string) error {
	if _, ok := g.steps[step]; !ok {
		return fmt.Errorf("unknown step %q", step)
	}
	if _, ok := g.steps[upstream]; !ok {
		return fmt.Errorf("unknown upstream step %q", upstream)
	}
	if step == upstream {
		return fmt.Errorf("step %q cannot depend on itself", step)
	}
	if !slices.Contains(g.depends[step], upstream) {
		g.depends[step] = append(g.depends[step], upstream)
	}
	if !slices.Contains(g.dependents[upstream], step) {
		g.dependents[upstream] = append(g.dependents[upstream], step)
	}
	return nil
}

// Step returns the registered step by name.
func (g *Graph) Step(name string) (*Step, bool) {
	s, ok := g.steps[name]
	return s, ok
}

// Dependencies returns the steps name consumes from.
func (g *Graph) Dependencies(name string) []string {
	return g.depends[name]
}

// Dependents returns the steps that consume name's output.
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name]
}

// Len returns the number of steps.
func (g *Graph) Len() int { return len(g.steps) }

// HasCycle reports whether the graph contains a cycle, with the cycle path
// for the error message.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cycle []string
	var visit func(name string) bool
	visit = func(name string) bool {
		visited[name] = true
		inStack[name] = true
		for _, next := range g.dependents[name] {
			if !visited[next] {
				cameFrom[next] = name
				if visit(next) {
					return true
				}
			} else if inStack[next] {
				cycle = []string{next}
				for cur := name; cur != next; cur = cameFrom[cur] {
					cycle = append([]string{cur}, cycle...)
				}
				cycle = append([]string{next}, cycle...)
				return true
			}
		}
		inStack[name] = false
		return false
	}

	for name := range g.steps {
		if !visited[name] && visit(name) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns steps in dependency order, deterministically.
// Returns an error if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]*Step, error) {
	if cyclic, path := g.HasCycle(); cyclic {
		return nil, fmt.Errorf("dependency cycle: %v", path)
	}

	visited := make(map[string]bool)
	var order []*Step
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, up := range sorted(g.depends[name]) {
			visit(up)
		}
		order = append(order, g.steps[name])
	}

	for _, name := range sortedKeys(g.steps) {
		visit(name)
	}
	return order, nil
}

// ExecutionLevels groups steps by dependency depth: steps within a level
// have no edges between them and may run concurrently once the previous
// level completes.
func (g *Graph) ExecutionLevels() ([][]string, error) {
	if cyclic, path := g.HasCycle(); cyclic {
		return nil, fmt.Errorf("dependency cycle: %v", path)
	}

	depth := make(map[string]int)
	var levelOf func(name string) int
	levelOf = func(name string) int {
		if d, ok := depth[name]; ok {
			return d
		}
		d := 0
		for _, up := range g.depends[name] {
			if ud := levelOf(up) + 1; ud > d {
				d = ud
			}
		}
		depth[name] = d
		return d
	}

	max := 0
	for name := range g.steps {
		if d := levelOf(name); d > max {
			max = d
		}
	}

	levels := make([][]string, max+1)
	for name, d := range depth {
		levels[d] = append(levels[d], name)
	}
	for i := range levels {
		slices.Sort(levels[i])
	}
	return levels, nil
}

// Roots returns steps with no dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for name := range g.steps {
		if len(g.depends[name]) == 0 {
			roots = append(roots, name)
		}
	}
	slices.Sort(roots)
	return roots
}

func sorted(names []string) []string {
	out := slices.Clone(names)
	slices.Sort(out)
	return out
}

func sortedKeys(m map[string]*Step) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
