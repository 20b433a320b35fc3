package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/trail-community-service/pkg/mentions"
)

func TestLayoutPath(t *testing.T) {
	g := mentions.FromEdges(2021, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	layout := Layout(g)
	require.Len(t, layout, 3)

	// A path is one-dimensional: the ends span the x range, the middle sits
	// halfway, and y collapses to the center.
	assert.InDelta(t, 1.0, layout[0].X+layout[2].X, 1e-9)
	assert.InDelta(t, 1.0, math.Abs(layout[0].X-layout[2].X), 1e-9)
	assert.InDelta(t, 0.5, layout[1].X, 1e-9)
	for _, p := range layout {
		assert.Equal(t, 0.5, p.Y)
	}
}

func TestLayoutDeterministic(t *testing.T) {
	g := mentions.FromEdges(2021,
		[]string{"a", "b", "c", "d", "e", "f"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}, {"d", "e"}})

	first := Layout(g)
	second := Layout(g)
	assert.Equal(t, first, second)

	for i, p := range first {
		assert.True(t, p.X >= 0 && p.X <= 1, "node %d x=%v", i, p.X)
		assert.True(t, p.Y >= 0 && p.Y <= 1, "node %d y=%v", i, p.Y)
	}
	assert.NotEqual(t, first[0], first[3], "separate components are placed apart")
}

func TestLayoutDegenerate(t *testing.T) {
	assert.Empty(t, Layout(mentions.FromEdges(2021, nil, nil)))
	assert.Equal(t, []Point{{X: 0.5, Y: 0.5}}, Layout(mentions.FromEdges(2021, []string{"solo"}, nil)))
}

func TestGraphExportPositions(t *testing.T) {
	export, err := NewAnalyzer(fixture()).Graph(2022, false)
	require.NoError(t, err)
	require.Len(t, export.Nodes, 2)

	// Two hikers one hop apart land on opposite ends of the x axis.
	assert.InDelta(t, 1.0, math.Abs(export.Nodes[0].X-export.Nodes[1].X), 1e-9)
	assert.Equal(t, 0.5, export.Nodes[0].Y)
}
