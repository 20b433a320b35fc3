package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// YearPoint is one year on the cross-year charts
type YearPoint struct {
	Year           int     `json:"year"`
	NumCommunities int     `json:"num_communities"`
	Sizes          []int   `json:"sizes"`
	Activeness     []int   `json:"activeness"`
	MeanActiveness float64 `json:"mean_activeness"`
	TotalEntries   int     `json:"total_entries"`
}

// LabeledCommunity is one bar of the community ranking chart
type LabeledCommunity struct {
	Label       string `json:"label"`
	Year        int    `json:"year"`
	CommunityID int    `json:"community_id"`
	Size        int    `json:"size"`
	Activeness  int    `json:"activeness"`
}

// Trend compares independent yearly summaries. Community ids are only
// meaningful inside their year, so communities are keyed by label.
type Trend struct {
	Years       []YearPoint        `json:"years"`
	Communities []LabeledCommunity `json:"communities"`
	// Correlation between community count and mean activeness across years;
	// zero with fewer than two years.
	CountActivenessCorrelation float64 `json:"count_activeness_correlation"`
	// Continuity between consecutive years with data, filled by the caller
	// that holds the assignments.
	Continuity []Continuity `json:"continuity"`
}

// BuildTrend orders summaries by year and ranks every community of every year
// by size, largest first.
func BuildTrend(summaries []*YearSummary) *Trend {
	sorted := make([]*YearSummary, 0, len(summaries))
	for _, s := range summaries {
		if s != nil {
			sorted = append(sorted, s)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	t := &Trend{
		Years:       make([]YearPoint, 0, len(sorted)),
		Communities: []LabeledCommunity{},
		Continuity:  []Continuity{},
	}
	counts := make([]float64, 0, len(sorted))
	means := make([]float64, 0, len(sorted))

	for _, s := range sorted {
		p := YearPoint{
			Year:           s.Year,
			NumCommunities: s.NumCommunities,
			Sizes:          make([]int, 0, len(s.Communities)),
			Activeness:     make([]int, 0, len(s.Communities)),
			MeanActiveness: s.MeanActiveness,
			TotalEntries:   s.TotalEntries,
		}
		for _, c := range s.Communities {
			p.Sizes = append(p.Sizes, c.Size)
			p.Activeness = append(p.Activeness, c.Activeness)
			t.Communities = append(t.Communities, LabeledCommunity{
				Label:       Label(s.Year, c.ID),
				Year:        s.Year,
				CommunityID: c.ID,
				Size:        c.Size,
				Activeness:  c.Activeness,
			})
		}
		t.Years = append(t.Years, p)
		counts = append(counts, float64(s.NumCommunities))
		means = append(means, s.MeanActiveness)
	}

	sort.SliceStable(t.Communities, func(i, j int) bool {
		return t.Communities[i].Size > t.Communities[j].Size
	})

	if len(counts) >= 2 && stat.Variance(counts, nil) > 0 && stat.Variance(means, nil) > 0 {
		t.CountActivenessCorrelation = stat.Correlation(counts, means, nil)
	}
	return t
}
