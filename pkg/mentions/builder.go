// Package mentions turns a year of journal entries into the undirected hiker
// mention graph that community detection runs on.
package mentions

import (
	"sort"

	"github.com/gilchrisn/trail-community-service/pkg/models"
)

// EdgeKey is an undirected edge with A < B
type EdgeKey struct {
	A string `json:"a"`
	B string `json:"b"`
}

func newEdgeKey(u, v string) EdgeKey {
	if u > v {
		u, v = v, u
	}
	return EdgeKey{A: u, B: v}
}

// Graph is the simple, unweighted mention graph for one year.
// Nodes are normalized hiker ids in ascending order; that order is the
// visitation order used by the community detector.
type Graph struct {
	Year  int       `json:"year"`
	Nodes []string  `json:"nodes"`
	Edges []EdgeKey `json:"edges"`

	index     map[string]int
	adjacency [][]int
}

// Builder accumulates mention relations before freezing them into a Graph.
type Builder struct {
	year    int
	nodeSet map[string]struct{}
	edgeSet map[EdgeKey]struct{}

	// Statistics
	EntriesSeen   int
	SelfMentions  int
	RepeatedEdges int
}

// NewBuilder creates an empty builder for year
func NewBuilder(year int) *Builder {
	return &Builder{
		year:    year,
		nodeSet: make(map[string]struct{}),
		edgeSet: make(map[EdgeKey]struct{}),
	}
}

// AddEntry records the author of e as a node and an edge to every hiker it
// mentions. Entries from other years and entries with no usable author are ignored.
func (b *Builder) AddEntry(e models.JournalEntry) {
	if e.Year() != b.year {
		return
	}
	author := e.NormalizedHikerID()
	if author == "" {
		return
	}

	b.EntriesSeen++
	b.nodeSet[author] = struct{}{}

	for _, mentioned := range e.NormalizedMentions() {
		if mentioned == author {
			b.SelfMentions++
			continue
		}
		b.nodeSet[mentioned] = struct{}{}

		key := newEdgeKey(author, mentioned)
		if _, exists := b.edgeSet[key]; exists {
			b.RepeatedEdges++
			continue
		}
		b.edgeSet[key] = struct{}{}
	}
}

// Build freezes the accumulated relations. It fails with EmptyYearError when no
// entry for the year was added.
func (b *Builder) Build() (*Graph, error) {
	if b.EntriesSeen == 0 {
		return nil, &models.EmptyYearError{Year: b.year}
	}

	nodes := make([]string, 0, len(b.nodeSet))
	for n := range b.nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	edges := make([]EdgeKey, 0, len(b.edgeSet))
	for e := range b.edgeSet {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})

	return newGraph(b.year, nodes, edges), nil
}

// Build constructs the mention graph for year from the full journal table.
func Build(entries []models.JournalEntry, year int) (*Graph, error) {
	b := NewBuilder(year)
	for _, e := range entries {
		b.AddEntry(e)
	}
	return b.Build()
}

// FromEdges builds a graph directly from node and edge lists. Names are
// normalized like journal hiker ids and names that normalize to nothing are
// dropped along with their edges. Edge endpoints missing from nodes are added;
// self-loops and duplicates are dropped.
func FromEdges(year int, nodes []string, edges [][2]string) *Graph {
	nodeSet := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if id := models.NormalizeHikerID(n); id != "" {
			nodeSet[id] = struct{}{}
		}
	}
	edgeSet := make(map[EdgeKey]struct{}, len(edges))
	for _, e := range edges {
		u, v := models.NormalizeHikerID(e[0]), models.NormalizeHikerID(e[1])
		if u == "" || v == "" {
			continue
		}
		nodeSet[u] = struct{}{}
		nodeSet[v] = struct{}{}
		if u == v {
			continue
		}
		edgeSet[newEdgeKey(u, v)] = struct{}{}
	}

	b := &Builder{year: year, nodeSet: nodeSet, edgeSet: edgeSet, EntriesSeen: len(nodeSet)}
	g, err := b.Build()
	if err != nil {
		return newGraph(year, nil, nil)
	}
	return g
}

func newGraph(year int, nodes []string, edges []EdgeKey) *Graph {
	g := &Graph{
		Year:      year,
		Nodes:     nodes,
		Edges:     edges,
		index:     make(map[string]int, len(nodes)),
		adjacency: make([][]int, len(nodes)),
	}
	for i, n := range nodes {
		g.index[n] = i
	}
	for _, e := range edges {
		a, b := g.index[e.A], g.index[e.B]
		g.adjacency[a] = append(g.adjacency[a], b)
		g.adjacency[b] = append(g.adjacency[b], a)
	}
	for i := range g.adjacency {
		sort.Ints(g.adjacency[i])
	}
	return g
}

// NumNodes returns the node count
func (g *Graph) NumNodes() int { return len(g.Nodes) }

// NumEdges returns the edge count
func (g *Graph) NumEdges() int { return len(g.Edges) }

// Index returns the position of hiker in Nodes.
func (g *Graph) Index(hiker string) (int, bool) {
	i, ok := g.index[models.NormalizeHikerID(hiker)]
	return i, ok
}

// EdgeIndices returns every edge as a pair of node indices, in Edges order.
// Endpoints that are not nodes of g are skipped.
func (g *Graph) EdgeIndices() [][2]int {
	out := make([][2]int, 0, len(g.Edges))
	for _, e := range g.Edges {
		u, ok := g.index[e.A]
		if !ok {
			continue
		}
		v, ok := g.index[e.B]
		if !ok {
			continue
		}
		out = append(out, [2]int{u, v})
	}
	return out
}

// Neighbors returns the indices adjacent to node i in ascending order.
func (g *Graph) Neighbors(i int) []int {
	if i < 0 || i >= len(g.adjacency) {
		return nil
	}
	return g.adjacency[i]
}

// Degree returns the number of distinct hikers node i is linked to
func (g *Graph) Degree(i int) int {
	return len(g.Neighbors(i))
}

// HasEdge reports whether hikers u and v mention each other in either direction.
func (g *Graph) HasEdge(u, v string) bool {
	ui, ok := g.Index(u)
	if !ok {
		return false
	}
	vi, ok := g.Index(v)
	if !ok {
		return false
	}
	neighbors := g.adjacency[ui]
	j := sort.SearchInts(neighbors, vi)
	return j < len(neighbors) && neighbors[j] == vi
}

// Isolated returns the hikers with no mention relations, ascending.
func (g *Graph) Isolated() []string {
	out := make([]string, 0)
	for i, n := range g.Nodes {
		if len(g.adjacency[i]) == 0 {
			out = append(out, n)
		}
	}
	return out
}
