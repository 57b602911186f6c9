package interaction

import (
	"time"
)

// Node is a commenting user of a project
type Node struct {
	Name            string  `json:"name"`
	InDegree        int     `json:"in_degree"`
	OutDegree       int     `json:"out_degree"`
	ImportanceScore float64 `json:"importance_score"`
	CommunityID     int     `json:"community_id"`
}

// Edge aggregates every reply from Source to Target
type Edge struct {
	Source          string     `json:"source"`
	Target          string     `json:"target"`
	Weight          int        `json:"weight"`
	CommentIDs      []string   `json:"contributing_comment_ids"`
	LastInteraction *time.Time `json:"last_interaction_time,omitempty"`
}

// BuildStats counts what the builder saw and dropped
type BuildStats struct {
	Rows             int `json:"rows"`
	Replies          int `json:"replies"`
	SelfRepliesDrop  int `json:"self_replies_dropped"`
	DanglingDrop     int `json:"dangling_parents_dropped"`
	DuplicateIDsSeen int `json:"duplicate_comment_ids"`
}

// Graph is the directed reply graph of one project. Nodes keep first-seen
// order so every walk over the graph is reproducible.
type Graph struct {
	ProjectID string

	nodes     []*Node
	nodeIndex map[string]int
	edges     []*Edge
	edgeIndex map[edgeKey]int
	stats     BuildStats
}

type edgeKey struct {
	source, target string
}

// NewGraph creates an empty graph for a project
func NewGraph(projectID string) *Graph {
	return &Graph{
		ProjectID: projectID,
		nodeIndex: make(map[string]int),
		edgeIndex: make(map[edgeKey]int),
	}
}

// AddNode returns the node for name, creating it on first sight
func (g *Graph) AddNode(name string) *Node {
	if i, ok := g.nodeIndex[name]; ok {
		return g.nodes[i]
	}
	n := &Node{Name: name}
	g.nodeIndex[name] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return n
}

// AddReply folds one reply into the (source, target) edge. Self-loops are ignored.
func (g *Graph) AddReply(source, target, commentID string, at *time.Time) bool {
	if source == target {
		return false
	}
	g.AddNode(source)
	g.AddNode(target)

	key := edgeKey{source, target}
	i, ok := g.edgeIndex[key]
	if !ok {
		i = len(g.edges)
		g.edgeIndex[key] = i
		g.edges = append(g.edges, &Edge{Source: source, Target: target})
		g.nodes[g.nodeIndex[source]].OutDegree++
		g.nodes[g.nodeIndex[target]].InDegree++
	}

	e := g.edges[i]
	e.Weight++
	e.CommentIDs = append(e.CommentIDs, commentID)
	if at != nil && (e.LastInteraction == nil || at.After(*e.LastInteraction)) {
		ts := *at
		e.LastInteraction = &ts
	}
	return true
}

// Node looks up a node by name
func (g *Graph) Node(name string) (*Node, bool) {
	i, ok := g.nodeIndex[name]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Edge looks up the edge from source to target
func (g *Graph) Edge(source, target string) (*Edge, bool) {
	i, ok := g.edgeIndex[edgeKey{source, target}]
	if !ok {
		return nil, false
	}
	return g.edges[i], true
}

// Index returns the position of a node in Nodes()
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.nodeIndex[name]
	return i, ok
}

// Nodes returns the nodes in first-seen order
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Edges returns the edges in creation order
func (g *Graph) Edges() []*Edge {
	return g.edges
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Stats returns build statistics
func (g *Graph) Stats() BuildStats {
	return g.stats
}
