package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/trail-community-service/pkg/louvain"
	"github.com/gilchrisn/trail-community-service/pkg/mentions"
)

func detect(t *testing.T, g *mentions.Graph) *louvain.Assignment {
	t.Helper()
	cfg := louvain.NewConfig()
	cfg.Set("logging.level", "disabled")
	a, err := louvain.Detect(g, cfg)
	require.NoError(t, err)
	return a
}

func TestValidateGraph(t *testing.T) {
	g := mentions.FromEdges(2021, []string{"z"}, [][2]string{{"a", "b"}, {"b", "c"}})
	assert.NoError(t, ValidateGraph(g))

	bad := &mentions.Graph{
		Year:  2021,
		Nodes: []string{"b", "a", "Bad"},
		Edges: []mentions.EdgeKey{{A: "a", B: "a"}, {A: "b", B: "a"}},
	}
	err := ValidateGraph(bad)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.GreaterOrEqual(t, len(verrs), 4)

	assert.Error(t, ValidateGraph(nil))
}

func TestValidatePartition(t *testing.T) {
	g := mentions.FromEdges(2021, nil, [][2]string{{"a", "b"}, {"b", "c"}, {"d", "e"}})

	t.Run("detector output", func(t *testing.T) {
		assert.NoError(t, ValidatePartition(g, detect(t, g)))
	})

	t.Run("missing node", func(t *testing.T) {
		a := louvain.NewAssignment(2021, map[string]int{"a": 0, "b": 0, "c": 0, "d": 1})
		err := ValidatePartition(g, a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node has no community")
	})

	t.Run("node in two communities", func(t *testing.T) {
		a := louvain.NewAssignment(2021, map[string]int{"a": 0, "b": 0, "c": 0, "d": 1, "e": 1})
		a.Members[1] = append(a.Members[1], "a")
		err := ValidatePartition(g, a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "more than one community")
	})

	t.Run("foreign hiker", func(t *testing.T) {
		a := louvain.NewAssignment(2021, map[string]int{"a": 0, "b": 0, "c": 0, "d": 1, "e": 1, "x": 2})
		err := ValidatePartition(g, a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a node")
	})

	t.Run("year mismatch", func(t *testing.T) {
		a := louvain.NewAssignment(2020, map[string]int{"a": 0, "b": 0, "c": 0, "d": 1, "e": 1})
		assert.Error(t, ValidatePartition(g, a))
	})
}

func TestModularityRawNames(t *testing.T) {
	raw := mentions.FromEdges(2021, nil, [][2]string{{"Alice", "Bob"}, {"Bob", "Carol"}, {"Dan", "Eve"}})
	clean := mentions.FromEdges(2021, nil, [][2]string{{"alice", "bob"}, {"bob", "carol"}, {"dan", "eve"}})
	require.Equal(t, clean.Nodes, raw.Nodes)

	a := detect(t, raw)
	assert.InDelta(t, Modularity(clean, a), Modularity(raw, a), 1e-12)
	assert.InDelta(t, 4.0/9.0, Modularity(raw, a), 1e-9)
	assert.NoError(t, CrossCheckModularity(raw, a, 1e-9))
}

func TestModularityCrossCheck(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
	}{
		{"scenario", [][2]string{{"a", "b"}, {"b", "c"}, {"d", "e"}}},
		{"two triangles", [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}, {"d", "e"}, {"e", "f"}, {"d", "f"}, {"c", "d"}}},
		{"star", [][2]string{{"h", "a"}, {"h", "b"}, {"h", "c"}, {"h", "d"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mentions.FromEdges(2021, nil, tt.edges)
			a := detect(t, g)

			assert.NoError(t, CrossCheckModularity(g, a, 1e-9))
			assert.GreaterOrEqual(t, Modularity(g, a), SingletonModularity(g)-1e-12)
		})
	}

	t.Run("scenario value", func(t *testing.T) {
		g := mentions.FromEdges(2021, nil, [][2]string{{"a", "b"}, {"b", "c"}, {"d", "e"}})
		assert.InDelta(t, 4.0/9.0, Modularity(g, detect(t, g)), 1e-12)
	})

	t.Run("no edges", func(t *testing.T) {
		g := mentions.FromEdges(2021, []string{"a", "b"}, nil)
		assert.Zero(t, Modularity(g, detect(t, g)))
		assert.Zero(t, SingletonModularity(g))
	})

	t.Run("mismatch", func(t *testing.T) {
		g := mentions.FromEdges(2021, nil, [][2]string{{"a", "b"}, {"b", "c"}, {"d", "e"}})
		a := detect(t, g)
		a.Modularity += 0.1
		assert.Error(t, CrossCheckModularity(g, a, 1e-9))
	})
}
