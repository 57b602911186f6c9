package metrics

import "github.com/replygraph/replygraph/internal/interaction"

// Degrees recomputes in/out degree from the edge list. Degree counts
// distinct edges; reply weight is ignored.
func Degrees(g *interaction.Graph) {
	for _, n := range g.Nodes() {
		n.InDegree = 0
		n.OutDegree = 0
	}
	for _, e := range g.Edges() {
		if src, ok := g.Node(e.Source); ok {
			src.OutDegree++
		}
		if dst, ok := g.Node(e.Target); ok {
			dst.InDegree++
		}
	}
}
