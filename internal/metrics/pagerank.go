package metrics

import (
	"context"
	"math"

	"github.com/replygraph/replygraph/internal/interaction"
)

// PageRankResult holds per-node scores in node order
type PageRankResult struct {
	Scores     []float64
	Iterations int
	Converged  bool
}

// PageRank runs power iteration over the directed reply graph. Each node
// scores (1-d)/N plus d times the share it receives from its in-neighbors.
// Sinks spread their mass evenly over every node so the scores keep summing to 1.
func PageRank(ctx context.Context, g *interaction.Graph, damping, tolerance float64, maxIterations int) (*PageRankResult, error) {
	n := g.NodeCount()
	result := &PageRankResult{Scores: make([]float64, n)}
	if n == 0 {
		result.Converged = true
		return result, nil
	}

	outNeighbors := make([][]int, n)
	for _, e := range g.Edges() {
		from, okFrom := g.Index(e.Source)
		to, okTo := g.Index(e.Target)
		if !okFrom || !okTo {
			continue
		}
		outNeighbors[from] = append(outNeighbors[from], to)
	}

	rank := result.Scores
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}
	teleport := (1.0 - damping) / float64(n)

	for iter := 1; iter <= maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dangling := 0.0
		for i := 0; i < n; i++ {
			if len(outNeighbors[i]) == 0 {
				dangling += rank[i]
			}
		}
		base := teleport + damping*dangling/float64(n)
		for i := range next {
			next[i] = base
		}

		for i := 0; i < n; i++ {
			if len(outNeighbors[i]) == 0 {
				continue
			}
			contrib := damping * rank[i] / float64(len(outNeighbors[i]))
			for _, j := range outNeighbors[i] {
				next[j] += contrib
			}
		}

		diff := 0.0
		for i := range rank {
			diff += math.Abs(next[i] - rank[i])
		}

		rank, next = next, rank
		result.Iterations = iter

		if diff < tolerance*float64(n) {
			result.Converged = true
			break
		}
	}

	sum := 0.0
	for _, r := range rank {
		sum += r
	}
	for i := range rank {
		rank[i] /= sum
	}
	result.Scores = rank

	return result, nil
}
