package pipeline

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/trail-community-service/pkg/mentions"
)

// eigenTolerance is the smallest eigenvalue treated as a real dimension
const eigenTolerance = 1e-9

// Point is a node coordinate normalized to [0,1]
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout places every node of g in the unit square by classical
// multidimensional scaling of hop distances. Hikers in different components
// are one hop further apart than the longest path of the graph. The result is
// indexed like g.Nodes and is the same for the same graph.
func Layout(g *mentions.Graph) []Point {
	n := g.NumNodes()
	out := make([]Point, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[0] = Point{X: 0.5, Y: 0.5}
		return out
	}

	dist := hopDistances(g)
	coords, ok := torgerson(dist, n)
	if !ok {
		return circleLayout(n)
	}
	return normalize(coords)
}

// hopDistances runs a BFS from every node. Unreachable pairs get the longest
// finite distance plus one.
func hopDistances(g *mentions.Graph) [][]float64 {
	n := g.NumNodes()
	dist := make([][]float64, n)
	longest := 0.0
	for src := 0; src < n; src++ {
		row := make([]float64, n)
		for i := range row {
			row[i] = -1
		}
		row[src] = 0
		queue := []int{src}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range g.Neighbors(cur) {
				if row[nb] < 0 {
					row[nb] = row[cur] + 1
					longest = math.Max(longest, row[nb])
					queue = append(queue, nb)
				}
			}
		}
		dist[src] = row
	}

	for _, row := range dist {
		for j, d := range row {
			if d < 0 {
				row[j] = longest + 1
			}
		}
	}
	return dist
}

// torgerson double-centers the squared distances and keeps the two largest
// eigen directions. Eigenvector signs are fixed so that the first non-zero
// component is positive.
func torgerson(dist [][]float64, n int) ([][2]float64, bool) {
	sq := make([][]float64, n)
	rowMean := make([]float64, n)
	grand := 0.0
	for i := range dist {
		sq[i] = make([]float64, n)
		for j, d := range dist[i] {
			sq[i][j] = d * d
			rowMean[i] += d * d
		}
		grand += rowMean[i]
		rowMean[i] /= float64(n)
	}
	grand /= float64(n * n)

	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, -0.5*(sq[i][j]-rowMean[i]-rowMean[j]+grand))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(b, true) {
		return nil, false
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	coords := make([][2]float64, n)
	// Values are ascending, so the largest two are at the end.
	for dim := 0; dim < 2; dim++ {
		col := n - 1 - dim
		lambda := values[col]
		if lambda <= eigenTolerance {
			continue
		}
		scale := math.Sqrt(lambda)
		sign := 1.0
		for i := 0; i < n; i++ {
			if v := vectors.At(i, col); math.Abs(v) > eigenTolerance {
				if v < 0 {
					sign = -1
				}
				break
			}
		}
		for i := 0; i < n; i++ {
			coords[i][dim] = sign * scale * vectors.At(i, col)
		}
	}
	return coords, true
}

func normalize(coords [][2]float64) []Point {
	minX, maxX := coords[0][0], coords[0][0]
	minY, maxY := coords[0][1], coords[0][1]
	for _, c := range coords[1:] {
		minX, maxX = math.Min(minX, c[0]), math.Max(maxX, c[0])
		minY, maxY = math.Min(minY, c[1]), math.Max(maxY, c[1])
	}

	scale := func(v, lo, hi float64) float64 {
		if hi-lo <= eigenTolerance {
			return 0.5
		}
		return (v - lo) / (hi - lo)
	}
	out := make([]Point, len(coords))
	for i, c := range coords {
		out[i] = Point{X: scale(c[0], minX, maxX), Y: scale(c[1], minY, maxY)}
	}
	return out
}

func circleLayout(n int) []Point {
	out := make([]Point, n)
	for i := range out {
		angle := 2 * math.Pi * float64(i) / float64(n)
		out[i] = Point{X: 0.5 + 0.5*math.Cos(angle), Y: 0.5 + 0.5*math.Sin(angle)}
	}
	return out
}
