package graph

// BagGraph is a Graph with bag semantics: nodes and edges carry reference
// counts and disappear only after as many deletes as inserts. The policy
// runtime uses it to track table dependencies incrementally as individual
// rules come and go.
type BagGraph struct {
	Graph
	nodeRefs map[string]int
	edgeRefs map[edgeKey]int
}

type edgeKey struct {
	from  string
	to    string
	label string
}

// NewBag creates an empty refcounted graph.
func NewBag() *BagGraph {
	return &BagGraph{
		Graph:    *New(),
		nodeRefs: make(map[string]int),
		edgeRefs: make(map[edgeKey]int),
	}
}

// AddNode adds a node reference and reports whether the node was new.
func (g *BagGraph) AddNode(name string) bool {
	g.nodeRefs[name]++
	return g.Graph.AddNode(name)
}

// DeleteNode drops one node reference; the node is removed once the count
// reaches zero. Deletes of absent nodes are ignored.
func (g *BagGraph) DeleteNode(name string) {
	n, ok := g.nodeRefs[name]
	if !ok {
		return
	}
	if n <= 1 {
		delete(g.nodeRefs, name)
		g.Graph.DeleteNode(name)
		return
	}
	g.nodeRefs[name] = n - 1
}

// AddEdge adds an edge reference, adding node references for both endpoints.
func (g *BagGraph) AddEdge(from, to, label string) {
	g.AddNode(from)
	g.AddNode(to)
	g.edgeRefs[edgeKey{from, to, label}]++
	g.Graph.AddEdge(from, to, label)
}

// DeleteEdge drops one edge reference together with one node reference for
// each endpoint. Deletes of absent edges are ignored.
func (g *BagGraph) DeleteEdge(from, to, label string) {
	key := edgeKey{from, to, label}
	n, ok := g.edgeRefs[key]
	if !ok {
		return
	}
	g.DeleteNode(from)
	g.DeleteNode(to)
	if n <= 1 {
		delete(g.edgeRefs, key)
		g.Graph.DeleteEdge(from, to, label)
		return
	}
	g.edgeRefs[key] = n - 1
}

// NodeCount returns the reference count of a node.
func (g *BagGraph) NodeCount(name string) int { return g.nodeRefs[name] }

// EdgeCount returns the reference count of an edge.
func (g *BagGraph) EdgeCount(from, to, label string) int {
	return g.edgeRefs[edgeKey{from, to, label}]
}

// HasNode reports whether at least one reference to the node remains.
func (g *BagGraph) HasNode(name string) bool { return g.nodeRefs[name] > 0 }

// HasEdge reports whether at least one reference to the edge remains.
func (g *BagGraph) HasEdge(from, to, label string) bool {
	return g.edgeRefs[edgeKey{from, to, label}] > 0
}
