package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/trail-community-service/pkg/louvain"
	"github.com/gilchrisn/trail-community-service/pkg/mentions"
	"github.com/gilchrisn/trail-community-service/pkg/models"
)

func entry(hiker string, year int) models.JournalEntry {
	return models.JournalEntry{
		HikerID:   hiker,
		Timestamp: time.Date(year, 5, 1, 0, 0, 0, 0, time.UTC),
		Latitude:  35,
		Longitude: -83,
	}
}

func scenario(t *testing.T) (*mentions.Graph, *louvain.Assignment) {
	t.Helper()
	g := mentions.FromEdges(2021, nil, [][2]string{{"a", "b"}, {"b", "c"}, {"d", "e"}})
	cfg := louvain.NewConfig()
	cfg.Set("logging.level", "disabled")
	a, err := louvain.Detect(g, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, a.NumCommunities())
	return g, a
}

func TestAggregate(t *testing.T) {
	_, a := scenario(t)
	entries := []models.JournalEntry{
		entry("A", 2021), entry(" a", 2021), entry("B!", 2021),
		entry("d", 2021),
		entry("a", 2020),     // other year
		entry("zulu", 2021), // not in the graph
	}

	s := Aggregate(a, entries)

	assert.Equal(t, 2021, s.Year)
	assert.Equal(t, 2, s.NumCommunities)
	assert.Equal(t, 5, s.NumHikers)
	assert.Equal(t, 4, s.TotalEntries)
	assert.Equal(t, []int{3, 2}, s.Sizes)
	assert.Equal(t, map[int]int{3: 1, 2: 1}, s.SizeHistogram)
	assert.InDelta(t, 2.5, s.MeanSize, 1e-12)
	assert.InDelta(t, 2.0, s.MeanActiveness, 1e-12)
	assert.GreaterOrEqual(t, s.MedianSize, 2.0)
	assert.LessOrEqual(t, s.MedianSize, 3.0)

	require.Len(t, s.Communities, 2)
	assert.Equal(t, CommunityStats{ID: 0, Label: "2021_G0", Size: 3, Activeness: 3, Share: 0.75, Members: []string{"a", "b", "c"}}, s.Communities[0])
	assert.Equal(t, CommunityStats{ID: 1, Label: "2021_G1", Size: 2, Activeness: 1, Share: 0.25, Members: []string{"d", "e"}}, s.Communities[1])
}

func TestAggregateDegenerate(t *testing.T) {
	s := Aggregate(nil, nil)
	assert.Zero(t, s.NumCommunities)
	assert.Empty(t, s.Communities)

	_, a := scenario(t)
	s = Aggregate(a, nil)
	assert.Zero(t, s.TotalEntries)
	assert.Zero(t, s.MeanActiveness)
	assert.Zero(t, s.Communities[0].Share)
	assert.Zero(t, s.Communities[1].Share)

	empty := EmptySummary(2020)
	assert.Equal(t, 2020, empty.Year)
	assert.Empty(t, empty.Sizes)
}

func TestLargest(t *testing.T) {
	a := louvain.NewAssignment(2022, map[string]int{"a": 0, "b": 1, "c": 1, "d": 2, "e": 2})
	s := Aggregate(a, nil)

	top := s.Largest(2)
	require.Len(t, top, 2)
	assert.Equal(t, 1, top[0].ID)
	assert.Equal(t, 2, top[1].ID)
	assert.Len(t, s.Largest(-1), 3)
}

func TestRepresentatives(t *testing.T) {
	g, a := scenario(t)

	scores := NewPageRankCalculator().Scores(g)
	require.Len(t, scores, 5)
	assert.Greater(t, scores["b"], scores["a"])

	pr := NewPageRankCalculator()
	reps := pr.Representatives(g, a, 2)
	assert.Equal(t, []string{"b", "a"}, reps[0])
	assert.Equal(t, []string{"d", "e"}, reps[1])

	all := pr.Representatives(g, a, 10)
	assert.Equal(t, []string{"b", "a", "c"}, all[0])

	assert.Empty(t, pr.Representatives(g, a, 0))
	assert.Empty(t, NewPageRankCalculator().Scores(nil))

	s := Aggregate(a, nil)
	s.AttachRepresentatives(reps)
	assert.Equal(t, []string{"b", "a"}, s.Communities[0].Representatives)
}

func TestPageRankRawNames(t *testing.T) {
	g := mentions.FromEdges(2021, nil, [][2]string{{"Alice", "Bob"}, {"Bob", "Carol"}, {"Dan", "Eve"}})
	scores := NewPageRankCalculator().Scores(g)

	require.Len(t, scores, 5)
	assert.Greater(t, scores["bob"], scores["alice"])
	assert.InDelta(t, scores["alice"], scores["carol"], 1e-9)
	assert.InDelta(t, scores["dan"], scores["eve"], 1e-9)
}

func TestPageRankSettings(t *testing.T) {
	g, a := scenario(t)

	// Path a-b-c among five nodes: b scores 0.2(1+2d)/(1+d).
	def := NewPageRankCalculator().Scores(g)
	low := NewPageRankCalculator().WithDampingFactor(0.5).WithTolerance(1e-10).Scores(g)
	assert.InDelta(t, 0.2*2.7/1.85, def["b"], 1e-4)
	assert.InDelta(t, 0.2*2.0/1.5, low["b"], 1e-6)

	sum := 0.0
	for _, s := range low {
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	reps := NewPageRankCalculator().WithDampingFactor(0.5).Representatives(g, a, 1)
	assert.Equal(t, []string{"b"}, reps[0])
}

func TestBuildTrend(t *testing.T) {
	_, a := scenario(t)
	y2021 := Aggregate(a, []models.JournalEntry{entry("a", 2021), entry("d", 2021)})
	y2019 := Aggregate(louvain.NewAssignment(2019, map[string]int{"p": 0, "q": 0, "r": 0, "s": 0}), []models.JournalEntry{
		entry("p", 2019), entry("q", 2019), entry("r", 2019),
	})

	trend := BuildTrend([]*YearSummary{y2021, nil, EmptySummary(2020), y2019})

	require.Len(t, trend.Years, 3)
	assert.Equal(t, 2019, trend.Years[0].Year)
	assert.Equal(t, 2020, trend.Years[1].Year)
	assert.Equal(t, 2021, trend.Years[2].Year)
	assert.Zero(t, trend.Years[1].NumCommunities)
	assert.Equal(t, []int{3, 2}, trend.Years[2].Sizes)
	assert.Equal(t, []int{1, 1}, trend.Years[2].Activeness)

	require.Len(t, trend.Communities, 3)
	assert.Equal(t, "2019_G0", trend.Communities[0].Label)
	assert.Equal(t, 4, trend.Communities[0].Size)
	assert.Equal(t, "2021_G0", trend.Communities[1].Label)
	assert.Equal(t, "2021_G1", trend.Communities[2].Label)

	assert.GreaterOrEqual(t, trend.CountActivenessCorrelation, -1.0)
	assert.LessOrEqual(t, trend.CountActivenessCorrelation, 1.0)

	assert.Empty(t, BuildTrend(nil).Years)
}

func TestNormalizedMutualInfo(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizedMutualInfo([]int{0, 0, 1, 1}, []int{5, 5, 3, 3}), 1e-12, "labels are arbitrary")
	assert.InDelta(t, 0.0, NormalizedMutualInfo([]int{0, 0, 1, 1}, []int{0, 1, 0, 1}), 1e-12)
	assert.Equal(t, 1.0, NormalizedMutualInfo([]int{2, 2}, []int{7, 7}))
	assert.Zero(t, NormalizedMutualInfo([]int{0}, []int{0, 1}))
	assert.Zero(t, NormalizedMutualInfo(nil, nil))

	partial := NormalizedMutualInfo([]int{0, 0, 0, 1, 1, 1}, []int{0, 0, 1, 1, 1, 1})
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}

func TestChainContinuity(t *testing.T) {
	y2022 := louvain.NewAssignment(2022, map[string]int{"a": 0, "b": 0, "c": 1, "d": 1, "z": 1})
	y2020 := louvain.NewAssignment(2020, map[string]int{"a": 0, "b": 0, "c": 1, "d": 1})
	y2019 := louvain.NewAssignment(2019, map[string]int{"p": 0, "q": 0})

	chain := ChainContinuity([]*louvain.Assignment{y2022, nil, y2020, y2019})
	require.Len(t, chain, 2)

	assert.Equal(t, 2019, chain[0].From)
	assert.Equal(t, 2020, chain[0].To)
	assert.Zero(t, chain[0].SharedHikers)
	assert.Zero(t, chain[0].NMI)

	assert.Equal(t, 2020, chain[1].From)
	assert.Equal(t, 2022, chain[1].To)
	assert.Equal(t, 4, chain[1].SharedHikers)
	assert.InDelta(t, 1.0, chain[1].NMI, 1e-12)

	assert.Empty(t, ChainContinuity(nil))
}
