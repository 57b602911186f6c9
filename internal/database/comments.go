package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/replygraph/replygraph/internal/errors"
	"github.com/replygraph/replygraph/internal/models"
)

const (
	// the cast accepts is_abnormal as an integer flag or a Postgres boolean
	loadCommentsQuery = `
		SELECT cid, pid, parent_cid, username, content, comment_time
		FROM comment
		WHERE pid = ? AND CAST(is_abnormal AS INTEGER) = 0 AND content IS NOT NULL AND content <> ''
		ORDER BY comment_time, cid`

	// latest non-empty comment per raw username
	representativeCommentsQuery = `
		SELECT username, content FROM (
			SELECT username, content, comment_time,
				ROW_NUMBER() OVER (PARTITION BY username ORDER BY comment_time DESC) AS rn
			FROM comment
			WHERE pid = ? AND content IS NOT NULL AND content <> ''
		) ranked
		WHERE rn = 1
		ORDER BY comment_time DESC`

	latestCommentByAuthorQuery = `
		SELECT content
		FROM comment
		WHERE pid = ? AND (username = ? OR TRIM(username) = ?)
			AND content IS NOT NULL AND content <> ''
		ORDER BY comment_time DESC
		LIMIT 1`
)

type commentRow struct {
	CID         string         `db:"cid"`
	PID         string         `db:"pid"`
	ParentCID   sql.NullString `db:"parent_cid"`
	Username    sql.NullString `db:"username"`
	Content     sql.NullString `db:"content"`
	CommentTime sql.NullTime   `db:"comment_time"`
}

// CommentStore reads comment rows for the graph build and the export enrichment
type CommentStore struct {
	factory     *Factory
	placeholder string
	logger      *logrus.Entry
}

// NewCommentStore creates a comment store. placeholder replaces blank authors.
func NewCommentStore(factory *Factory, placeholder string, logger *logrus.Logger) *CommentStore {
	if placeholder == "" {
		placeholder = models.DefaultAuthorPlaceholder
	}
	return &CommentStore{
		factory:     factory,
		placeholder: placeholder,
		logger:      logger.WithField("component", "comment_loader"),
	}
}

// LoadComments returns the cleaned, non-abnormal, non-empty comments of a project
func (s *CommentStore) LoadComments(ctx context.Context, projectID string) ([]models.Comment, error) {
	db, err := s.factory.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var rows []commentRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(loadCommentsQuery), projectID); err != nil {
		return nil, errors.DatabaseErrorf(err, "load comments for project %s", projectID)
	}

	if len(rows) == 0 {
		return nil, errors.DataUnavailablef("project %s has no qualifying comments", projectID)
	}

	comments := make([]models.Comment, 0, len(rows))
	for _, r := range rows {
		c := models.Comment{
			CommentID:       strings.TrimSpace(r.CID),
			ProjectID:       r.PID,
			ParentCommentID: normalizeParent(r.ParentCID),
			Author:          models.NormalizeAuthor(r.Username.String, s.placeholder),
			Text:            r.Content.String,
		}
		if r.CommentTime.Valid {
			ts := r.CommentTime.Time
			c.Timestamp = &ts
		}
		comments = append(comments, c)
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"rows":       len(comments),
	}).Info("comments loaded")

	return comments, nil
}

// normalizeParent maps NULL, blank and the numeric zero id to "no parent"
func normalizeParent(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	p := strings.TrimSpace(v.String)
	if p == "0" {
		return ""
	}
	return p
}

// RepresentativeComments returns the most recent non-empty comment per
// normalized author of a project
func (s *CommentStore) RepresentativeComments(ctx context.Context, projectID string) (map[string]string, error) {
	db, err := s.factory.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryxContext(ctx, db.Rebind(representativeCommentsQuery), projectID)
	if err != nil {
		return nil, errors.DatabaseErrorf(err, "prefetch representative comments for project %s", projectID)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var username, content sql.NullString
		if err := rows.Scan(&username, &content); err != nil {
			return nil, errors.DatabaseErrorf(err, "scan representative comment")
		}
		key := models.NormalizeAuthor(username.String, s.placeholder)
		// rows arrive newest first; first writer wins
		if _, seen := result[key]; !seen {
			result[key] = content.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseErrorf(err, "iterate representative comments")
	}

	return result, nil
}

// LatestCommentByAuthor looks up the most recent non-empty comment of one
// author. found is false when the author has none.
func (s *CommentStore) LatestCommentByAuthor(ctx context.Context, projectID, author string) (string, bool, error) {
	db, err := s.factory.Open(ctx)
	if err != nil {
		return "", false, err
	}
	defer db.Close()

	var content string
	err = db.GetContext(ctx, &content, db.Rebind(latestCommentByAuthorQuery), projectID, author, author)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.DatabaseErrorf(err, "latest comment for author %q", author)
	}
	return content, true, nil
}
