package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/trail-community-service/pkg/louvain"
	"github.com/gilchrisn/trail-community-service/pkg/mentions"
)

const (
	DefaultDampingFactor = 0.85
	DefaultTolerance     = 1e-6
)

// PageRankCalculator ranks hikers of a mention graph
type PageRankCalculator struct {
	dampingFactor float64
	tolerance     float64
}

// NewPageRankCalculator creates a calculator with the default damping and
// tolerance
func NewPageRankCalculator() *PageRankCalculator {
	return &PageRankCalculator{
		dampingFactor: DefaultDampingFactor,
		tolerance:     DefaultTolerance,
	}
}

// WithDampingFactor sets the damping factor (default: 0.85)
func (pr *PageRankCalculator) WithDampingFactor(factor float64) *PageRankCalculator {
	pr.dampingFactor = factor
	return pr
}

// WithTolerance sets the convergence tolerance (default: 1e-6)
func (pr *PageRankCalculator) WithTolerance(tolerance float64) *PageRankCalculator {
	pr.tolerance = tolerance
	return pr
}

// Scores computes a PageRank score per hiker. The undirected mention graph is
// turned into a directed one with both directions of every edge.
func (pr *PageRankCalculator) Scores(g *mentions.Graph) map[string]float64 {
	if g == nil || g.NumNodes() == 0 {
		return map[string]float64{}
	}

	directed := simple.NewDirectedGraph()
	for i := range g.Nodes {
		directed.AddNode(simple.Node(i))
	}
	for _, pair := range g.EdgeIndices() {
		u, v := pair[0], pair[1]
		directed.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(v)})
		directed.SetEdge(simple.Edge{F: simple.Node(v), T: simple.Node(u)})
	}

	raw := network.PageRank(directed, pr.dampingFactor, pr.tolerance)

	scores := make(map[string]float64, len(raw))
	for id, score := range raw {
		scores[g.Nodes[id]] = score
	}
	return scores
}

// Representatives returns up to n members of every community, highest
// PageRank first. Scores are compared at 1e-9 resolution and equal scores fall
// back to ascending hiker id, so the order does not depend on iteration noise.
func (pr *PageRankCalculator) Representatives(g *mentions.Graph, a *louvain.Assignment, n int) map[int][]string {
	out := make(map[int][]string)
	if a == nil || n <= 0 {
		return out
	}

	scores := pr.Scores(g)
	rounded := func(h string) float64 { return math.Round(scores[h]*1e9) / 1e9 }

	for id, members := range a.Members {
		ranked := append([]string(nil), members...)
		sort.SliceStable(ranked, func(i, j int) bool {
			si, sj := rounded(ranked[i]), rounded(ranked[j])
			if si != sj {
				return si > sj
			}
			return ranked[i] < ranked[j]
		})
		if len(ranked) > n {
			ranked = ranked[:n]
		}
		out[id] = ranked
	}
	return out
}

// AttachRepresentatives fills CommunityStats.Representatives in place
func (s *YearSummary) AttachRepresentatives(reps map[int][]string) {
	for i := range s.Communities {
		s.Communities[i].Representatives = reps[s.Communities[i].ID]
	}
}
