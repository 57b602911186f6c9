package interaction

import (
	"github.com/replygraph/replygraph/internal/models"
)

// Build collapses the comment rows of a project into a reply graph.
//
// Every author becomes a node. A row whose parent resolves to a comment of the
// same load adds a reply from the row's author to the parent's author. Replies
// to oneself and parents outside the load are dropped without error.
func Build(projectID string, rows []models.Comment) *Graph {
	g := NewGraph(projectID)
	g.stats.Rows = len(rows)

	authorOf := make(map[string]string, len(rows))
	for _, row := range rows {
		if _, dup := authorOf[row.CommentID]; dup {
			g.stats.DuplicateIDsSeen++
			continue
		}
		authorOf[row.CommentID] = row.Author
	}

	for _, row := range rows {
		g.AddNode(row.Author)

		if !row.HasParent() {
			continue
		}
		target, ok := authorOf[row.ParentCommentID]
		if !ok {
			g.stats.DanglingDrop++
			continue
		}
		if !g.AddReply(row.Author, target, row.CommentID, row.Timestamp) {
			g.stats.SelfRepliesDrop++
			continue
		}
		g.stats.Replies++
	}

	return g
}
