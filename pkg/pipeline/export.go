package pipeline

import (
	"fmt"

	"github.com/gilchrisn/trail-community-service/pkg/louvain"
	"github.com/gilchrisn/trail-community-service/pkg/mentions"
)

// GraphNode is one hiker of an exported mention graph. Real ids are left out
// unless the export was asked to reveal them.
type GraphNode struct {
	ID        int    `json:"id"`
	Label     string `json:"label"`
	HikerID   string `json:"hiker_id,omitempty"`
	Community int    `json:"community"`
	Degree    int    `json:"degree"`
	Point
}

// GraphEdge references nodes by GraphNode.ID
type GraphEdge struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// GraphExport is a community-colored mention graph ready for a network view
type GraphExport struct {
	Year           int         `json:"year"`
	NumCommunities int         `json:"num_communities"`
	Modularity     float64     `json:"modularity"`
	Nodes          []GraphNode `json:"nodes"`
	Edges          []GraphEdge `json:"edges"`
}

// AnonymousLabel is the display name of the i-th hiker (0-based) in
// ascending id order.
func AnonymousLabel(i int) string {
	return fmt.Sprintf("Hiker %d", i+1)
}

// ExportGraph converts a graph and its assignment. Node ids follow the
// graph's sorted node order, so labels and positions are stable for the same
// input.
func ExportGraph(g *mentions.Graph, a *louvain.Assignment, reveal bool) *GraphExport {
	out := &GraphExport{
		Year:           g.Year,
		NumCommunities: a.NumCommunities(),
		Modularity:     a.Modularity,
		Nodes:          make([]GraphNode, len(g.Nodes)),
		Edges:          make([]GraphEdge, 0, len(g.Edges)),
	}
	layout := Layout(g)
	for i, hiker := range g.Nodes {
		node := GraphNode{
			ID:        i,
			Label:     AnonymousLabel(i),
			Community: a.Communities[hiker],
			Degree:    g.Degree(i),
			Point:     layout[i],
		}
		if reveal {
			node.HikerID = hiker
		}
		out.Nodes[i] = node
	}
	for _, pair := range g.EdgeIndices() {
		out.Edges = append(out.Edges, GraphEdge{Source: pair[0], Target: pair[1]})
	}
	return out
}

// Graph exports the mention graph of year with anonymized labels
func (a *Analyzer) Graph(year int, reveal bool) (*GraphExport, error) {
	g, assignment, err := a.Communities(year)
	if err != nil {
		return nil, err
	}
	return ExportGraph(g, assignment, reveal), nil
}
