package metrics

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/replygraph/replygraph/internal/interaction"
)

// LabelPropagationOptions tunes community detection
type LabelPropagationOptions struct {
	MaxIterations int
	// Seed fixes the visit order; 0 draws a new seed per run
	Seed int64
	// WeightedVotes counts each neighbor by reply weight instead of once
	WeightedVotes bool
}

// CommunityResult holds per-node community ids in node order, numbered from 1
type CommunityResult struct {
	Labels      []int
	Communities int
	Iterations  int
	Converged   bool
}

type neighbor struct {
	index  int
	weight float64
}

// LabelPropagation detects communities on the undirected projection of the graph.
//
// Every node starts in its own community. Each pass visits the nodes in a
// shuffled order and moves each one to the label with the highest vote among
// its neighbors. A node keeps its label when it is among the best; otherwise
// the smallest best label wins. Passes stop when nothing moves or at MaxIterations.
func LabelPropagation(ctx context.Context, g *interaction.Graph, opts LabelPropagationOptions) (*CommunityResult, error) {
	n := g.NodeCount()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	adjacency := undirectedNeighbors(g, opts.WeightedVotes)

	labels := make([]int, n)
	order := make([]int, n)
	for i := range labels {
		labels[i] = i
		order[i] = i
	}

	result := &CommunityResult{}
	votes := make(map[int]float64)

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		changed := false
		for _, v := range order {
			if len(adjacency[v]) == 0 {
				continue
			}

			clear(votes)
			best := 0.0
			for _, nb := range adjacency[v] {
				votes[labels[nb.index]] += nb.weight
				if votes[labels[nb.index]] > best {
					best = votes[labels[nb.index]]
				}
			}

			if votes[labels[v]] == best {
				continue
			}

			chosen := -1
			for label, w := range votes {
				if w == best && (chosen == -1 || label < chosen) {
					chosen = label
				}
			}
			labels[v] = chosen
			changed = true
		}

		result.Iterations = iter
		if !changed {
			result.Converged = true
			break
		}
	}

	result.Labels, result.Communities = renumber(labels)
	return result, nil
}

// undirectedNeighbors merges both edge directions; neighbors come out in node order
func undirectedNeighbors(g *interaction.Graph, weighted bool) [][]neighbor {
	n := g.NodeCount()
	merged := make([]map[int]float64, n)
	for i := range merged {
		merged[i] = make(map[int]float64)
	}

	for _, e := range g.Edges() {
		s, okS := g.Index(e.Source)
		t, okT := g.Index(e.Target)
		if !okS || !okT || s == t {
			continue
		}
		if weighted {
			merged[s][t] += float64(e.Weight)
			merged[t][s] += float64(e.Weight)
		} else {
			merged[s][t] = 1
			merged[t][s] = 1
		}
	}

	adjacency := make([][]neighbor, n)
	for i, m := range merged {
		list := make([]neighbor, 0, len(m))
		for j, w := range m {
			list = append(list, neighbor{index: j, weight: w})
		}
		sort.Slice(list, func(a, b int) bool { return list[a].index < list[b].index })
		adjacency[i] = list
	}
	return adjacency
}

// renumber maps raw labels to 1..k by first appearance in node order
func renumber(raw []int) ([]int, int) {
	ids := make(map[int]int)
	out := make([]int, len(raw))
	for i, label := range raw {
		id, ok := ids[label]
		if !ok {
			id = len(ids) + 1
			ids[label] = id
		}
		out[i] = id
	}
	return out, len(ids)
}
