package louvain

import (
	"fmt"
	"sort"

	"github.com/gilchrisn/trail-community-service/pkg/mentions"
	"github.com/gilchrisn/trail-community-service/pkg/models"
)

// Assignment maps every hiker of one yearly graph to a community id.
// Ids are dense (0..NumCommunities-1) and numbered by the alphabetically first
// member of each community. They mean nothing across years.
type Assignment struct {
	Year        int            `json:"year"`
	Communities map[string]int `json:"communities"`
	Members     [][]string     `json:"members"`
	Modularity  float64        `json:"modularity"`
	Levels      []LevelInfo    `json:"levels"`
}

// Detect partitions a yearly mention graph by modularity optimization.
// Graphs without edges come back as all-singleton partitions; graphs without
// nodes fail with EmptyGraphError.
func Detect(g *mentions.Graph, config *Config) (*Assignment, error) {
	if g == nil || g.NumNodes() == 0 {
		year := 0
		if g != nil {
			year = g.Year
		}
		return nil, &models.EmptyGraphError{Year: year}
	}

	result, err := Run(FromMentionGraph(g), config)
	if err != nil {
		return nil, fmt.Errorf("detect communities for %d: %w", g.Year, err)
	}

	a := &Assignment{
		Year:        g.Year,
		Communities: make(map[string]int, g.NumNodes()),
		Members:     make([][]string, result.NumCommunities),
		Modularity:  result.Modularity,
		Levels:      result.Levels,
	}
	// g.Nodes is sorted, so each member list comes out sorted as well.
	for node, c := range result.FinalCommunities {
		hiker := g.Nodes[node]
		a.Communities[hiker] = c
		a.Members[c] = append(a.Members[c], hiker)
	}

	return a, nil
}

// NewAssignment builds an assignment from an explicit hiker -> community map,
// renumbering communities densely by their alphabetically first member.
func NewAssignment(year int, communities map[string]int) *Assignment {
	hikers := make([]string, 0, len(communities))
	for h := range communities {
		hikers = append(hikers, h)
	}
	sort.Strings(hikers)

	renumber := make(map[int]int)
	a := &Assignment{Year: year, Communities: make(map[string]int, len(hikers))}
	for _, h := range hikers {
		id, ok := renumber[communities[h]]
		if !ok {
			id = len(renumber)
			renumber[communities[h]] = id
			a.Members = append(a.Members, nil)
		}
		a.Communities[h] = id
		a.Members[id] = append(a.Members[id], h)
	}
	return a
}

// NumCommunities returns the number of communities
func (a *Assignment) NumCommunities() int {
	return len(a.Members)
}

// CommunityOf returns the community of a hiker
func (a *Assignment) CommunityOf(hiker string) (int, bool) {
	c, ok := a.Communities[models.NormalizeHikerID(hiker)]
	return c, ok
}

// MembersOf returns a copy of the sorted member ids of community id. The order
// is the stable enumeration callers use to keep per-hiker colors fixed across
// frames.
func (a *Assignment) MembersOf(id int) ([]string, bool) {
	if id < 0 || id >= len(a.Members) {
		return nil, false
	}
	return append([]string(nil), a.Members[id]...), true
}

// Sizes returns the member count of every community, indexed by community id.
func (a *Assignment) Sizes() []int {
	sizes := make([]int, len(a.Members))
	for i, m := range a.Members {
		sizes[i] = len(m)
	}
	return sizes
}

// Partition returns the member lists as a slice of communities, for callers
// that only care about node grouping and not id numbering.
func (a *Assignment) Partition() [][]string {
	out := make([][]string, len(a.Members))
	for i, m := range a.Members {
		out[i] = append([]string(nil), m...)
	}
	return out
}
