package louvain

import (
	"fmt"
	"math"

	"github.com/gilchrisn/trail-community-service/pkg/mentions"
)

// Graph is the weighted working graph of the detector. Level 0 is the mention
// graph with unit weights; later levels are contracted communities whose
// internal weight lives on SelfLoops. Adjacency never contains i itself.
type Graph struct {
	NumNodes    int         `json:"num_nodes"`
	Adjacency   [][]int     `json:"-"`
	Weights     [][]float64 `json:"-"` // parallel to Adjacency
	SelfLoops   []float64   `json:"-"`
	Degrees     []float64   `json:"degrees"` // self-loops count twice
	TotalWeight float64     `json:"total_weight"`
}

// NewGraph creates an edgeless graph of numNodes nodes
func NewGraph(numNodes int) *Graph {
	return &Graph{
		NumNodes:  numNodes,
		Adjacency: make([][]int, numNodes),
		Weights:   make([][]float64, numNodes),
		SelfLoops: make([]float64, numNodes),
		Degrees:   make([]float64, numNodes),
	}
}

// FromMentionGraph converts a mention graph into a working graph with unit
// weights. Node i of the result is g.Nodes[i].
func FromMentionGraph(g *mentions.Graph) *Graph {
	graph := NewGraph(g.NumNodes())
	for i := 0; i < g.NumNodes(); i++ {
		for _, j := range g.Neighbors(i) {
			if j > i {
				// Indices come from g itself, so this cannot fail.
				_ = graph.AddEdge(i, j, 1.0)
			}
		}
	}
	return graph
}

// AddEdge adds weight between u and v. u == v adds to the self-loop.
func (g *Graph) AddEdge(u, v int, weight float64) error {
	if !g.has(u) || !g.has(v) {
		return fmt.Errorf("node index out of range: u=%d, v=%d, numNodes=%d", u, v, g.NumNodes)
	}
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("edge weight must be positive and finite: %f", weight)
	}

	g.TotalWeight += weight
	if u == v {
		g.SelfLoops[u] += weight
		g.Degrees[u] += 2 * weight
		return nil
	}
	g.Adjacency[u] = append(g.Adjacency[u], v)
	g.Weights[u] = append(g.Weights[u], weight)
	g.Adjacency[v] = append(g.Adjacency[v], u)
	g.Weights[v] = append(g.Weights[v], weight)
	g.Degrees[u] += weight
	g.Degrees[v] += weight
	return nil
}

// Neighbors returns the adjacent nodes of node with their weights
func (g *Graph) Neighbors(node int) ([]int, []float64) {
	if !g.has(node) {
		return nil, nil
	}
	return g.Adjacency[node], g.Weights[node]
}

// Validate checks that the arrays agree with each other and that every
// degree matches its edges.
func (g *Graph) Validate() error {
	if g.NumNodes <= 0 {
		return fmt.Errorf("graph must have positive number of nodes")
	}
	if len(g.Adjacency) != g.NumNodes || len(g.Weights) != g.NumNodes ||
		len(g.SelfLoops) != g.NumNodes || len(g.Degrees) != g.NumNodes {
		return fmt.Errorf("graph arrays do not match %d nodes", g.NumNodes)
	}

	for i := 0; i < g.NumNodes; i++ {
		if len(g.Adjacency[i]) != len(g.Weights[i]) {
			return fmt.Errorf("adjacency and weights arrays inconsistent for node %d", i)
		}
		degree := 2 * g.SelfLoops[i]
		for j, nb := range g.Adjacency[i] {
			if !g.has(nb) || nb == i {
				return fmt.Errorf("invalid neighbor %d for node %d", nb, i)
			}
			if g.Weights[i][j] <= 0 {
				return fmt.Errorf("non-positive weight %f for edge %d-%d", g.Weights[i][j], i, nb)
			}
			degree += g.Weights[i][j]
		}
		if math.Abs(degree-g.Degrees[i]) > 1e-9*math.Max(1, degree) {
			return fmt.Errorf("degree %f of node %d does not match its edges (%f)", g.Degrees[i], i, degree)
		}
	}
	return nil
}

func (g *Graph) has(node int) bool {
	return node >= 0 && node < g.NumNodes
}
