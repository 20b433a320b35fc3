// Package validation checks mention graphs and community assignments for the
// structural properties the rest of the pipeline relies on.
package validation

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/trail-community-service/pkg/louvain"
	"github.com/gilchrisn/trail-community-service/pkg/mentions"
	"github.com/gilchrisn/trail-community-service/pkg/models"
)

// ValidationError is a single failed check
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation error in field '%s': %s (value: %s)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
}

// ValidationErrors collects every failed check of one validation run
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "no validation errors"
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("validation failed with %d errors:\n%s", len(errs), strings.Join(messages, "\n"))
}

// ValidateGraph checks that a mention graph is simple and its node list is
// sorted, unique and normalized.
func ValidateGraph(g *mentions.Graph) error {
	if g == nil {
		return ValidationError{Field: "graph", Message: "graph cannot be nil"}
	}

	var errors ValidationErrors

	for i, n := range g.Nodes {
		if n == "" || models.NormalizeHikerID(n) != n {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("nodes[%d]", i),
				Message: "hiker id is not normalized",
				Value:   n,
			})
		}
		if i > 0 && g.Nodes[i-1] >= n {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("nodes[%d]", i),
				Message: "nodes must be strictly ascending",
				Value:   n,
			})
		}
	}

	seen := make(map[mentions.EdgeKey]bool, len(g.Edges))
	for i, e := range g.Edges {
		field := fmt.Sprintf("edges[%d]", i)
		switch {
		case e.A == e.B:
			errors = append(errors, ValidationError{Field: field, Message: "self-loop", Value: e.A})
		case e.A > e.B:
			errors = append(errors, ValidationError{Field: field, Message: "endpoints out of order", Value: e.A + "-" + e.B})
		}
		if seen[e] {
			errors = append(errors, ValidationError{Field: field, Message: "duplicate edge", Value: e.A + "-" + e.B})
		}
		seen[e] = true

		for _, end := range []string{e.A, e.B} {
			if _, ok := g.Index(end); !ok {
				errors = append(errors, ValidationError{Field: field, Message: "endpoint is not a node", Value: end})
			}
		}
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// ValidatePartition checks that every node of g belongs to exactly one
// community of a, that a covers nothing else, and that community ids are dense
// with no empty community.
func ValidatePartition(g *mentions.Graph, a *louvain.Assignment) error {
	if g == nil || a == nil {
		return ValidationError{Field: "partition", Message: "graph and assignment are required"}
	}

	var errors ValidationErrors

	if a.Year != g.Year {
		errors = append(errors, ValidationError{
			Field:   "year",
			Message: fmt.Sprintf("assignment is for %d, graph for %d", a.Year, g.Year),
		})
	}

	membership := make(map[string]int, len(a.Communities))
	for id, members := range a.Members {
		if len(members) == 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("members[%d]", id),
				Message: "community is empty",
			})
		}
		for _, h := range members {
			membership[h]++
			if c, ok := a.Communities[h]; !ok || c != id {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("members[%d]", id),
					Message: "member list disagrees with community map",
					Value:   h,
				})
			}
		}
	}

	for _, n := range g.Nodes {
		switch membership[n] {
		case 0:
			errors = append(errors, ValidationError{Field: "communities", Message: "node has no community", Value: n})
		case 1:
		default:
			errors = append(errors, ValidationError{Field: "communities", Message: "node is in more than one community", Value: n})
		}
	}

	for h, c := range a.Communities {
		if _, ok := g.Index(h); !ok {
			errors = append(errors, ValidationError{Field: "communities", Message: "hiker is not a node of the graph", Value: h})
		}
		if c < 0 || c >= len(a.Members) {
			errors = append(errors, ValidationError{
				Field:   "communities",
				Message: fmt.Sprintf("community id %d out of range", c),
				Value:   h,
			})
		}
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// Modularity computes the modularity of a over g with gonum, independent of
// the detector's own bookkeeping. Graphs without edges score 0.
func Modularity(g *mentions.Graph, a *louvain.Assignment) float64 {
	if g == nil || a == nil || g.NumEdges() == 0 {
		return 0
	}

	ug := simple.NewUndirectedGraph()
	for i := range g.Nodes {
		ug.AddNode(simple.Node(i))
	}
	for _, pair := range g.EdgeIndices() {
		ug.SetEdge(simple.Edge{F: simple.Node(pair[0]), T: simple.Node(pair[1])})
	}

	communities := make([][]graph.Node, len(a.Members))
	for id, members := range a.Members {
		for _, h := range members {
			if i, ok := g.Index(h); ok {
				communities[id] = append(communities[id], simple.Node(i))
			}
		}
	}

	return community.Q(ug, communities, 1)
}

// CrossCheckModularity fails when the detector's reported modularity differs
// from the gonum computation by more than tolerance.
func CrossCheckModularity(g *mentions.Graph, a *louvain.Assignment, tolerance float64) error {
	want := Modularity(g, a)
	if math.Abs(want-a.Modularity) > tolerance {
		return ValidationError{
			Field:   "modularity",
			Message: fmt.Sprintf("reported %.6f, recomputed %.6f", a.Modularity, want),
		}
	}
	return nil
}

// SingletonModularity is the modularity of the all-singletons baseline
func SingletonModularity(g *mentions.Graph) float64 {
	if g == nil {
		return 0
	}
	communities := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		communities[n] = i
	}
	return Modularity(g, louvain.NewAssignment(g.Year, communities))
}
