package mentions

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/trail-community-service/pkg/models"
)

func entry(hiker string, year int, mentions ...string) models.JournalEntry {
	return models.JournalEntry{
		HikerID:   hiker,
		Timestamp: time.Date(year, 5, 10, 12, 0, 0, 0, time.UTC),
		Latitude:  35.0,
		Longitude: -83.0,
		Mentions:  mentions,
	}
}

func TestBuild(t *testing.T) {
	entries := []models.JournalEntry{
		entry("Alpha", 2021, "Bravo", "bravo "),
		entry("Bravo", 2021, "Alpha"),
		entry("alpha", 2021, "Charlie"),
		entry("Delta", 2021, "Delta"),
		entry("Echo", 2021),
		entry("Foxtrot", 2020, "Alpha"),
	}

	g, err := Build(entries, 2021)
	require.NoError(t, err)

	t.Run("Nodes", func(t *testing.T) {
		assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta", "echo"}, g.Nodes)
	})

	t.Run("EdgesCollapseAndIgnoreDirection", func(t *testing.T) {
		assert.Equal(t, 2, g.NumEdges())
		assert.True(t, g.HasEdge("alpha", "bravo"))
		assert.True(t, g.HasEdge("Bravo", "ALPHA"))
		assert.True(t, g.HasEdge("charlie", "alpha"))
		assert.False(t, g.HasEdge("bravo", "charlie"))
	})

	t.Run("NoSelfLoops", func(t *testing.T) {
		assert.False(t, g.HasEdge("delta", "delta"))
		di, ok := g.Index("delta")
		require.True(t, ok)
		assert.Equal(t, 0, g.Degree(di))
	})

	t.Run("IsolatedAuthorsStayNodes", func(t *testing.T) {
		assert.Equal(t, []string{"delta", "echo"}, g.Isolated())
	})

	t.Run("OtherYearsIgnored", func(t *testing.T) {
		_, ok := g.Index("foxtrot")
		assert.False(t, ok)
	})

	t.Run("NeighborsSorted", func(t *testing.T) {
		ai, _ := g.Index("alpha")
		bi, _ := g.Index("bravo")
		ci, _ := g.Index("charlie")
		assert.Equal(t, []int{bi, ci}, g.Neighbors(ai))
	})
}

func TestBuildMentionedOnlyHikerIsNode(t *testing.T) {
	g, err := Build([]models.JournalEntry{entry("a", 2022, "Ghost")}, 2022)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "ghost"}, g.Nodes)
}

func TestBuildEmptyYear(t *testing.T) {
	_, err := Build([]models.JournalEntry{entry("a", 2019)}, 2023)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrEmptyYear))

	var eye *models.EmptyYearError
	require.True(t, errors.As(err, &eye))
	assert.Equal(t, 2023, eye.Year)
}

func TestFromEdges(t *testing.T) {
	g := FromEdges(2021, []string{"z"}, [][2]string{{"b", "a"}, {"a", "b"}, {"c", "c"}})
	assert.Equal(t, []string{"a", "b", "c", "z"}, g.Nodes)
	assert.Equal(t, []EdgeKey{{A: "a", B: "b"}}, g.Edges)

	empty := FromEdges(2021, nil, nil)
	assert.Equal(t, 0, empty.NumNodes())
}

func TestFromEdgesNormalizesNames(t *testing.T) {
	g := FromEdges(2021, []string{" Zed", "42"}, [][2]string{{"Bob", "alice"}, {"ALICE", "bob "}, {"Carl", "carl"}, {"dave", "#7"}})

	assert.Equal(t, []string{"alice", "bob", "carl", "zed"}, g.Nodes, "edges with an unusable endpoint are dropped whole")
	assert.Equal(t, []EdgeKey{{A: "alice", B: "bob"}}, g.Edges)
	assert.True(t, g.HasEdge("Alice", "Bob"))
	assert.Equal(t, [][2]int{{0, 1}}, g.EdgeIndices())
}

func TestEdgeIndices(t *testing.T) {
	g := FromEdges(2021, nil, [][2]string{{"c", "d"}, {"a", "b"}, {"b", "c"}})
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}}, g.EdgeIndices())

	hand := &Graph{Nodes: []string{"a"}, Edges: []EdgeKey{{A: "a", B: "b"}}}
	assert.Empty(t, hand.EdgeIndices())
}

func TestBuildUsesUTCYear(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	entries := []models.JournalEntry{
		// 2021 on the wall clock in Tokyo, 2020 in UTC.
		{HikerID: "Kenji", Timestamp: time.Date(2021, 1, 1, 3, 0, 0, 0, tokyo), Mentions: []string{"yuki"}},
		{HikerID: "Yuki", Timestamp: time.Date(2021, 1, 1, 12, 0, 0, 0, tokyo)},
	}

	g2020, err := Build(entries, 2020)
	require.NoError(t, err)
	assert.Equal(t, []string{"kenji", "yuki"}, g2020.Nodes)

	g2021, err := Build(entries, 2021)
	require.NoError(t, err)
	assert.Equal(t, []string{"yuki"}, g2021.Nodes)
	assert.Zero(t, g2021.NumEdges())
}
