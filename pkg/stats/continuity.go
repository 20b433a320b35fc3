package stats

import (
	"math"
	"sort"

	"github.com/gilchrisn/trail-community-service/pkg/louvain"
)

// Continuity measures how much of one year's community structure survives
// into the next, over the hikers present in both years.
type Continuity struct {
	From         int     `json:"from"`
	To           int     `json:"to"`
	SharedHikers int     `json:"shared_hikers"`
	NMI          float64 `json:"nmi"`
}

// CompareYears computes the continuity between two assignments. With no
// shared hikers NMI is zero.
func CompareYears(prev, next *louvain.Assignment) Continuity {
	c := Continuity{From: prev.Year, To: next.Year}

	shared := make([]string, 0)
	for hiker := range prev.Communities {
		if _, ok := next.Communities[hiker]; ok {
			shared = append(shared, hiker)
		}
	}
	sort.Strings(shared)
	c.SharedHikers = len(shared)
	if len(shared) == 0 {
		return c
	}

	left := make([]int, len(shared))
	right := make([]int, len(shared))
	for i, hiker := range shared {
		left[i] = prev.Communities[hiker]
		right[i] = next.Communities[hiker]
	}
	c.NMI = NormalizedMutualInfo(left, right)
	return c
}

// ChainContinuity compares every pair of consecutive years. Nil assignments
// (years without data) are skipped.
func ChainContinuity(assignments []*louvain.Assignment) []Continuity {
	sorted := make([]*louvain.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a != nil {
			sorted = append(sorted, a)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	out := make([]Continuity, 0, len(sorted))
	for i := 1; i < len(sorted); i++ {
		out = append(out, CompareYears(sorted[i-1], sorted[i]))
	}
	return out
}

// NormalizedMutualInfo compares two labelings of the same items, normalized by
// the mean entropy. Two single-cluster labelings are identical and score 1.
// Slices of different length score 0.
func NormalizedMutualInfo(left, right []int) float64 {
	n := len(left)
	if n == 0 || n != len(right) {
		return 0
	}

	joint := make(map[[2]int]int)
	countsL := make(map[int]int)
	countsR := make(map[int]int)
	for i := range left {
		joint[[2]int{left[i], right[i]}]++
		countsL[left[i]]++
		countsR[right[i]]++
	}

	// Sum in label order.
	pairs := make([][2]int, 0, len(joint))
	for pair := range joint {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	total := float64(n)
	mi := 0.0
	for _, pair := range pairs {
		nij := joint[pair]
		ni, nj := countsL[pair[0]], countsR[pair[1]]
		mi += float64(nij) / total * math.Log2(float64(nij)*total/float64(ni*nj))
	}

	avg := (entropy(countsL, total) + entropy(countsR, total)) / 2
	if avg == 0 {
		return 1
	}
	return mi / avg
}

func entropy(counts map[int]int, total float64) float64 {
	labels := make([]int, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	h := 0.0
	for _, label := range labels {
		p := float64(counts[label]) / total
		h -= p * math.Log2(p)
	}
	return h
}
