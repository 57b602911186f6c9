package metrics

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/replygraph/replygraph/internal/interaction"
)

// Modularity scores a partition (labels in node order) on the undirected
// projection of the reply graph. A graph without edges scores 0.
func Modularity(g *interaction.Graph, labels []int) float64 {
	if g.EdgeCount() == 0 || len(labels) != g.NodeCount() {
		return 0
	}

	ug := simple.NewUndirectedGraph()
	for i := range g.Nodes() {
		ug.AddNode(simple.Node(int64(i)))
	}
	for _, e := range g.Edges() {
		s, okS := g.Index(e.Source)
		t, okT := g.Index(e.Target)
		if !okS || !okT || s == t {
			continue
		}
		if !ug.HasEdgeBetween(int64(s), int64(t)) {
			ug.SetEdge(simple.Edge{F: simple.Node(int64(s)), T: simple.Node(int64(t))})
		}
	}

	groups := make(map[int][]graph.Node)
	var order []int
	for i, label := range labels {
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], simple.Node(int64(i)))
	}

	communities := make([][]graph.Node, 0, len(order))
	for _, label := range order {
		communities = append(communities, groups[label])
	}

	return community.Q(ug, communities, 1.0)
}
