package models

import (
	"regexp"
	"strings"
	"time"
)

// DefaultAuthorPlaceholder replaces missing or blank author names
const DefaultAuthorPlaceholder = "unknown user"

// Comment is one cleaned comment row of a project
type Comment struct {
	CommentID       string     `json:"comment_id" db:"cid"`
	ProjectID       string     `json:"project_id" db:"pid"`
	ParentCommentID string     `json:"parent_comment_id" db:"parent_cid"`
	Author          string     `json:"author" db:"username"`
	Text            string     `json:"text" db:"content"`
	Timestamp       *time.Time `json:"timestamp,omitempty" db:"comment_time"`
}

// HasParent reports whether the comment is a reply
func (c Comment) HasParent() bool {
	return c.ParentCommentID != ""
}

// ProjectStatus is the run state shown to other collaborators
type ProjectStatus string

const (
	ProjectStatusInit    ProjectStatus = "init"
	ProjectStatusRunning ProjectStatus = "running"
	ProjectStatusSuccess ProjectStatus = "success"
	ProjectStatusFail    ProjectStatus = "fail"
)

// IsTerminal returns true once a run has finished
func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusSuccess || s == ProjectStatusFail
}

// Project represents a row of the project table
type Project struct {
	ID         string        `json:"pid" db:"pid"`
	Name       string        `json:"project_name" db:"project_name"`
	Status     ProjectStatus `json:"status" db:"status"`
	UpdateTime *time.Time    `json:"update_time,omitempty" db:"update_time"`
}

var controlRuns = regexp.MustCompile(`[\r\n\t]+`)

// NormalizeAuthor cleans a raw author name so that the loader, the graph
// store and the comment lookups agree on one key per user.
func NormalizeAuthor(raw, placeholder string) string {
	if placeholder == "" {
		placeholder = DefaultAuthorPlaceholder
	}
	name := strings.TrimSpace(controlRuns.ReplaceAllString(raw, " "))
	if name == "" {
		return placeholder
	}
	return name
}
