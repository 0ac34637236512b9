// Package graph provides the directed labeled graph used for policy
// dependency analysis: cycle detection, reachability, and stratification of
// negation.
package graph

import "sort"

// NegationLabel marks edges that cross a negated literal.
const NegationLabel = "not"

// Edge is an outgoing labeled edge.
type Edge struct {
	To    string
	Label string
}

// Graph is a directed graph with labeled edges keyed by node name.
type Graph struct {
	nodes map[string]struct{}
	edges map[string]map[Edge]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		edges: make(map[string]map[Edge]struct{}),
	}
}

// AddNode adds a node and reports whether it was new.
func (g *Graph) AddNode(name string) bool {
	if _, ok := g.nodes[name]; ok {
		return false
	}
	g.nodes[name] = struct{}{}
	return true
}

// DeleteNode removes a node and its outgoing edges.
func (g *Graph) DeleteNode(name string) {
	delete(g.nodes, name)
	delete(g.edges, name)
}

// AddEdge adds a labeled edge, adding the endpoints as needed.
func (g *Graph) AddEdge(from, to, label string) {
	g.AddNode(from)
	g.AddNode(to)
	if g.edges[from] == nil {
		g.edges[from] = make(map[Edge]struct{})
	}
	g.edges[from][Edge{To: to, Label: label}] = struct{}{}
}

// DeleteEdge removes the edge with the given label. The endpoints stay.
func (g *Graph) DeleteEdge(from, to, label string) {
	if out, ok := g.edges[from]; ok {
		delete(out, Edge{To: to, Label: label})
		if len(out) == 0 {
			delete(g.edges, from)
		}
	}
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// HasEdge reports whether the labeled edge exists.
func (g *Graph) HasEdge(from, to, label string) bool {
	out, ok := g.edges[from]
	if !ok {
		return false
	}
	_, ok = out[Edge{To: to, Label: label}]
	return ok
}

// Nodes returns the node names in sorted order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Edges returns the outgoing edges of a node.
func (g *Graph) Edges(from string) []Edge {
	out := make([]Edge, 0, len(g.edges[from]))
	for e := range g.edges[from] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Roots returns the nodes with no incoming edges.
func (g *Graph) Roots() []string {
	candidates := make(map[string]struct{}, len(g.nodes))
	for n := range g.nodes {
		candidates[n] = struct{}{}
	}
	for _, out := range g.edges {
		for e := range out {
			delete(candidates, e.To)
		}
	}
	roots := make([]string, 0, len(candidates))
	for n := range candidates {
		roots = append(roots, n)
	}
	sort.Strings(roots)
	return roots
}

// dfsState carries per-run depth-first-search bookkeeping.
type dfsState struct {
	begin    map[string]int
	end      map[string]int
	counter  int
	backpath map[string]string
	cycles   [][]string
}

// Cycles runs depth-first search over the whole graph and returns every
// cycle discovered, as node paths ending at the node that closed the cycle.
func (g *Graph) Cycles() [][]string {
	s := &dfsState{
		begin:    make(map[string]int),
		end:      make(map[string]int),
		backpath: make(map[string]string),
	}
	for _, n := range g.Nodes() {
		if _, visited := s.begin[n]; !visited {
			g.dfs(n, s)
		}
	}
	return s.cycles
}

// HasCycle reports whether the graph contains a cycle.
func (g *Graph) HasCycle() bool { return len(g.Cycles()) > 0 }

func (g *Graph) dfs(node string, s *dfsState) {
	s.begin[node] = s.counter
	s.counter++
	for _, e := range g.Edges(node) {
		s.backpath[e.To] = node
		if _, visited := s.begin[e.To]; !visited {
			g.dfs(e.To, s)
		} else if _, done := s.end[e.To]; !done {
			s.cycles = append(s.cycles, constructCycle(e.To, s.backpath))
		}
	}
	s.end[node] = s.counter
	s.counter++
}

// constructCycle rebuilds the cycle ending at node from the DFS backpath.
func constructCycle(node string, backpath map[string]string) []string {
	prev := backpath[node]
	cycle := []string{prev}
	for prev != node {
		prev = backpath[prev]
		cycle = append(cycle, prev)
	}
	cycle = append(cycle, node)
	for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
		cycle[i], cycle[j] = cycle[j], cycle[i]
	}
	return cycle
}

// Dependencies returns the set of nodes reachable from node, itself
// included. It returns nil when the node is not in the graph.
func (g *Graph) Dependencies(node string) map[string]struct{} {
	if !g.HasNode(node) {
		return nil
	}
	reach := map[string]struct{}{}
	stack := []string{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := reach[n]; seen {
			continue
		}
		reach[n] = struct{}{}
		for _, e := range g.Edges(n) {
			stack = append(stack, e.To)
		}
	}
	return reach
}

// Stratification assigns each node a stratum such that an edge carrying one
// of the given labels strictly increases the stratum. It returns nil when no
// assignment exists, which happens exactly when a cycle crosses a labeled
// edge.
func (g *Graph) Stratification(labels []string) map[string]int {
	labelSet := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		labelSet[l] = struct{}{}
	}

	stratum := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		stratum[n] = 1
	}

	changed := true
	for changed {
		changed = false
		for node, out := range g.edges {
			for e := range out {
				old := stratum[node]
				if _, labeled := labelSet[e.Label]; labeled {
					if s := stratum[e.To] + 1; s > stratum[node] {
						stratum[node] = s
					}
				} else if stratum[e.To] > stratum[node] {
					stratum[node] = stratum[e.To]
				}
				if stratum[node] != old {
					changed = true
				}
				if stratum[node] > len(g.nodes) {
					return nil
				}
			}
		}
	}
	return stratum
}
