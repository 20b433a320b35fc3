package louvain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Result represents the algorithm output
type Result struct {
	Levels           []LevelInfo `json:"levels"`
	FinalCommunities []int       `json:"final_communities"` // original node -> dense community id
	NumCommunities   int         `json:"num_communities"`
	Modularity       float64     `json:"modularity"`
	NumLevels        int         `json:"num_levels"`
	Statistics       Statistics  `json:"statistics"`
}

// LevelInfo contains information about each hierarchical level
type LevelInfo struct {
	Level             int     `json:"level"`
	NumNodes          int     `json:"num_nodes"`
	NumCommunities    int     `json:"num_communities"`
	InitialModularity float64 `json:"initial_modularity"`
	Modularity        float64 `json:"modularity"`
	NumMoves          int     `json:"num_moves"`
	Iterations        int     `json:"iterations"`
	RuntimeMS         int64   `json:"runtime_ms"`
}

// Statistics contains algorithm performance metrics
type Statistics struct {
	TotalIterations int   `json:"total_iterations"`
	TotalMoves      int   `json:"total_moves"`
	RuntimeMS       int64 `json:"runtime_ms"`
}

// Community represents the state of communities (simple arrays, NetworkX style)
type Community struct {
	NodeToCommunity          []int     // nodeToComm[i] = community ID of node i
	CommunityNodes           [][]int   // commNodes[c] = list of nodes in community c
	CommunityWeights         []float64 // commWeights[c] = total degree of community c
	CommunityInternalWeights []float64 // commInternal[c] = twice the internal edge weight of c
	NumCommunities           int       // number of community slots
}

// NewCommunity initializes each node in its own community
func NewCommunity(graph *Graph) *Community {
	n := graph.NumNodes
	comm := &Community{
		NodeToCommunity:          make([]int, n),
		CommunityNodes:           make([][]int, n),
		CommunityWeights:         make([]float64, n),
		CommunityInternalWeights: make([]float64, n),
		NumCommunities:           n,
	}

	for i := 0; i < n; i++ {
		comm.NodeToCommunity[i] = i
		comm.CommunityNodes[i] = []int{i}
		comm.CommunityWeights[i] = graph.Degrees[i]
		comm.CommunityInternalWeights[i] = 2 * graph.SelfLoops[i]
	}

	return comm
}

// CalculateModularity computes Newman's modularity at resolution 1
func CalculateModularity(graph *Graph, comm *Community) float64 {
	return calculateModularity(graph, comm, 1.0)
}

func calculateModularity(graph *Graph, comm *Community, resolution float64) float64 {
	if graph.TotalWeight == 0 {
		return 0.0
	}

	modularity := 0.0
	m2 := 2.0 * graph.TotalWeight

	for c := 0; c < comm.NumCommunities; c++ {
		if len(comm.CommunityNodes[c]) == 0 {
			continue
		}

		internal := comm.CommunityInternalWeights[c]
		total := comm.CommunityWeights[c]

		modularity += internal/m2 - resolution*(total/m2)*(total/m2)
	}

	return modularity
}

// CalculateModularityGain returns the gain, up to the constant factor 1/m, of
// inserting an isolated node into targetComm. edgeWeight is the weight between
// the node and the members of targetComm.
func CalculateModularityGain(graph *Graph, comm *Community, node, targetComm int, edgeWeight, resolution float64) float64 {
	nodeDegree := graph.Degrees[node]
	commTotal := comm.CommunityWeights[targetComm]
	m2 := 2.0 * graph.TotalWeight

	return edgeWeight - resolution*(nodeDegree*commTotal)/m2
}

// neighborCommunities sums edge weight from node to each adjacent community
// and returns the community ids in ascending order.
func neighborCommunities(graph *Graph, comm *Community, node int) (map[int]float64, []int) {
	weights := make(map[int]float64)
	neighbors, edgeWeights := graph.Neighbors(node)
	for i, neighbor := range neighbors {
		weights[comm.NodeToCommunity[neighbor]] += edgeWeights[i]
	}

	ids := make([]int, 0, len(weights))
	for c := range weights {
		ids = append(ids, c)
	}
	sort.Ints(ids)
	return weights, ids
}

func removeNode(graph *Graph, comm *Community, node, c int, weightToComm float64) {
	nodes := comm.CommunityNodes[c]
	for i, n := range nodes {
		if n == node {
			comm.CommunityNodes[c] = append(nodes[:i], nodes[i+1:]...)
			break
		}
	}
	comm.CommunityWeights[c] -= graph.Degrees[node]
	comm.CommunityInternalWeights[c] -= 2 * (weightToComm + graph.SelfLoops[node])
	comm.NodeToCommunity[node] = -1
}

func insertNode(graph *Graph, comm *Community, node, c int, weightToComm float64) {
	comm.CommunityNodes[c] = append(comm.CommunityNodes[c], node)
	comm.CommunityWeights[c] += graph.Degrees[node]
	comm.CommunityInternalWeights[c] += 2 * (weightToComm + graph.SelfLoops[node])
	comm.NodeToCommunity[node] = c
}

// OneLevel performs one level of local optimization. Nodes are visited in
// ascending index order on every sweep. A node leaves its community only for a
// strictly better one; among equally good targets the lowest community id wins.
// No randomness is involved, so the same graph always yields the same partition.
func OneLevel(graph *Graph, comm *Community, p params, level int, logger zerolog.Logger, tracker *MoveTracker) (bool, int, int) {
	improvement := false
	totalMoves := 0
	iterations := 0

	for iteration := 0; iteration < p.maxIterations; iteration++ {
		iterations++
		iterationMoves := 0

		for node := 0; node < graph.NumNodes; node++ {
			oldComm := comm.NodeToCommunity[node]
			weights, candidates := neighborCommunities(graph, comm, node)

			removeNode(graph, comm, node, oldComm, weights[oldComm])

			stayGain := CalculateModularityGain(graph, comm, node, oldComm, weights[oldComm], p.resolution)
			bestComm := oldComm
			bestGain := math.Inf(-1)
			for _, target := range candidates {
				if target == oldComm {
					continue
				}
				gain := CalculateModularityGain(graph, comm, node, target, weights[target], p.resolution)
				if gain > bestGain {
					bestComm = target
					bestGain = gain
				}
			}

			if bestComm != oldComm && bestGain-stayGain > p.minGain {
				insertNode(graph, comm, node, bestComm, weights[bestComm])
				iterationMoves++
				improvement = true

				if tracker != nil {
					tracker.LogMove(level, node, oldComm, bestComm, (bestGain-stayGain)/graph.TotalWeight,
						calculateModularity(graph, comm, p.resolution))
				}
			} else {
				insertNode(graph, comm, node, oldComm, weights[oldComm])
			}
		}

		totalMoves += iterationMoves

		if p.enableProgress {
			logger.Debug().
				Int("level", level).
				Int("iteration", iteration+1).
				Int("moves", iterationMoves).
				Float64("modularity", calculateModularity(graph, comm, p.resolution)).
				Msg("Local optimization progress")
		}

		if iterationMoves == 0 {
			break
		}
	}

	return improvement, totalMoves, iterations
}

// AggregateGraph creates a super-graph from communities. Super-node i stands
// for the i-th non-empty community in ascending community id order; the
// returned mapping lists the current-level nodes inside each super-node.
func AggregateGraph(graph *Graph, comm *Community) (*Graph, [][]int, error) {
	validComms := make([]int, 0)
	for c := 0; c < comm.NumCommunities; c++ {
		if len(comm.CommunityNodes[c]) > 0 {
			validComms = append(validComms, c)
		}
	}

	numSuperNodes := len(validComms)
	if numSuperNodes == 0 {
		return nil, nil, fmt.Errorf("no valid communities found")
	}

	commToSuper := make(map[int]int, numSuperNodes)
	communityMapping := make([][]int, numSuperNodes)
	for i, commID := range validComms {
		commToSuper[commID] = i
		members := make([]int, len(comm.CommunityNodes[commID]))
		copy(members, comm.CommunityNodes[commID])
		sort.Ints(members)
		communityMapping[i] = members
	}

	// Every edge is seen from both ends and halved below, so self-loops are
	// added twice to match.
	superEdges := make(map[[2]int]float64)
	for node := 0; node < graph.NumNodes; node++ {
		superI := commToSuper[comm.NodeToCommunity[node]]
		if loop := graph.SelfLoops[node]; loop > 0 {
			superEdges[[2]int{superI, superI}] += 2 * loop
		}

		neighbors, weights := graph.Neighbors(node)
		for i, neighbor := range neighbors {
			superJ := commToSuper[comm.NodeToCommunity[neighbor]]
			edge := [2]int{superI, superJ}
			if superJ < superI {
				edge = [2]int{superJ, superI}
			}
			superEdges[edge] += weights[i]
		}
	}

	keys := make([][2]int, 0, len(superEdges))
	for edge := range superEdges {
		keys = append(keys, edge)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	superGraph := NewGraph(numSuperNodes)
	for _, edge := range keys {
		if weight := superEdges[edge]; weight > 0 {
			if err := superGraph.AddEdge(edge[0], edge[1], weight/2); err != nil {
				return nil, nil, err
			}
		}
	}

	return superGraph, communityMapping, nil
}

// Run executes the complete Louvain algorithm. Passes alternate local moving
// and contraction until a pass makes no move.
func Run(graph *Graph, config *Config) (*Result, error) {
	startTime := time.Now()
	if config == nil {
		config = NewConfig()
	}
	logger := config.CreateLogger()
	p := config.snapshot()

	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}

	tracker, err := config.openMoveTracker()
	if err != nil {
		return nil, fmt.Errorf("open move tracker: %w", err)
	}
	defer tracker.Close()

	logger.Debug().
		Int("nodes", graph.NumNodes).
		Float64("total_weight", graph.TotalWeight).
		Msg("Starting Louvain algorithm")

	result := &Result{Levels: make([]LevelInfo, 0)}

	// Without edges every node stays on its own.
	if graph.TotalWeight == 0 {
		result.FinalCommunities = make([]int, graph.NumNodes)
		for i := range result.FinalCommunities {
			result.FinalCommunities[i] = i
		}
		result.NumCommunities = graph.NumNodes
		result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()
		return result, nil
	}

	currentGraph := graph
	comm := NewCommunity(currentGraph)

	nodeToOriginal := make([][]int, graph.NumNodes)
	for i := 0; i < graph.NumNodes; i++ {
		nodeToOriginal[i] = []int{i}
	}

	for level := 0; level < p.maxLevels; level++ {
		levelStart := time.Now()
		initialMod := calculateModularity(currentGraph, comm, p.resolution)

		improvement, moves, iterations := OneLevel(currentGraph, comm, p, level, logger, tracker)

		finalMod := calculateModularity(currentGraph, comm, p.resolution)
		levelInfo := LevelInfo{
			Level:             level,
			NumNodes:          currentGraph.NumNodes,
			NumCommunities:    countNonEmpty(comm),
			InitialModularity: initialMod,
			Modularity:        finalMod,
			NumMoves:          moves,
			Iterations:        iterations,
			RuntimeMS:         time.Since(levelStart).Milliseconds(),
		}
		result.Levels = append(result.Levels, levelInfo)
		result.Statistics.TotalMoves += moves
		result.Statistics.TotalIterations += iterations

		logger.Debug().
			Int("level", level).
			Int("nodes", levelInfo.NumNodes).
			Int("communities", levelInfo.NumCommunities).
			Int("moves", moves).
			Float64("modularity", finalMod).
			Msg("Level completed")

		if !improvement || levelInfo.NumCommunities == 1 {
			break
		}

		superGraph, communityMapping, err := AggregateGraph(currentGraph, comm)
		if err != nil {
			return nil, fmt.Errorf("aggregation failed at level %d: %w", level, err)
		}
		if superGraph.NumNodes >= currentGraph.NumNodes {
			break
		}

		newNodeToOriginal := make([][]int, superGraph.NumNodes)
		for superNode, members := range communityMapping {
			for _, member := range members {
				newNodeToOriginal[superNode] = append(newNodeToOriginal[superNode], nodeToOriginal[member]...)
			}
		}
		nodeToOriginal = newNodeToOriginal
		currentGraph = superGraph
		comm = NewCommunity(currentGraph)
	}

	result.NumLevels = len(result.Levels)
	result.Modularity = calculateModularity(currentGraph, comm, p.resolution)
	result.FinalCommunities, result.NumCommunities = denseAssignment(graph.NumNodes, currentGraph, comm, nodeToOriginal)
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()

	logger.Debug().
		Int("levels", result.NumLevels).
		Int("communities", result.NumCommunities).
		Float64("final_modularity", result.Modularity).
		Msg("Louvain algorithm completed")

	return result, nil
}

// denseAssignment maps every original node to a community id in 0..k-1,
// numbering communities by their lowest original node index.
func denseAssignment(numOriginal int, graph *Graph, comm *Community, nodeToOriginal [][]int) ([]int, int) {
	raw := make([]int, numOriginal)
	for superNode := 0; superNode < graph.NumNodes; superNode++ {
		for _, original := range nodeToOriginal[superNode] {
			raw[original] = comm.NodeToCommunity[superNode]
		}
	}

	renumber := make(map[int]int)
	out := make([]int, numOriginal)
	for node, c := range raw {
		id, ok := renumber[c]
		if !ok {
			id = len(renumber)
			renumber[c] = id
		}
		out[node] = id
	}
	return out, len(renumber)
}

func countNonEmpty(comm *Community) int {
	n := 0
	for c := 0; c < comm.NumCommunities; c++ {
		if len(comm.CommunityNodes[c]) > 0 {
			n++
		}
	}
	return n
}
