package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replygraph/replygraph/internal/errors"
	"github.com/replygraph/replygraph/internal/logging"
	"github.com/replygraph/replygraph/internal/models"
)

type seedComment struct {
	cid, pid, parent, username, content string
	at                                  time.Time
	abnormal                            int
	nullUser                            bool
}

// setupTestFactory creates a sqlite file database with the local schema
func setupTestFactory(t *testing.T) *Factory {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "comments.db")
	f := NewFactory(DriverSQLite, dsn, logging.Discard())

	created, err := f.EnsureLocalSchema(context.Background())
	require.NoError(t, err)
	require.True(t, created)
	return f
}

func seed(t *testing.T, f *Factory, rows ...seedComment) {
	t.Helper()
	ctx := context.Background()
	db, err := f.Open(ctx)
	require.NoError(t, err)
	defer db.Close()

	for _, r := range rows {
		var username interface{} = r.username
		if r.nullUser {
			username = nil
		}
		var parent interface{} = r.parent
		if r.parent == "" {
			parent = nil
		}
		_, err := db.ExecContext(ctx,
			`INSERT INTO comment (cid, pid, parent_cid, username, content, comment_time, is_abnormal) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.cid, r.pid, parent, username, r.content, r.at, r.abnormal)
		require.NoError(t, err)
	}
}

func TestLoadComments(t *testing.T) {
	f := setupTestFactory(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seed(t, f,
		seedComment{cid: "1", pid: "p1", username: "alice", content: "root", at: base},
		seedComment{cid: "2", pid: "p1", parent: "1", username: " bob\r\n", content: "reply", at: base.Add(time.Minute)},
		seedComment{cid: "3", pid: "p1", parent: "1", username: "carol", content: "", at: base.Add(2 * time.Minute)},
		seedComment{cid: "4", pid: "p1", parent: "1", username: "dave", content: "spam", at: base.Add(3 * time.Minute), abnormal: 1},
		seedComment{cid: "5", pid: "p1", parent: "2", nullUser: true, content: "who am i", at: base.Add(4 * time.Minute)},
		seedComment{cid: "6", pid: "p2", username: "erin", content: "other project", at: base},
	)

	store := NewCommentStore(f, "", logging.Discard())
	comments, err := store.LoadComments(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, comments, 3)

	assert.Equal(t, "1", comments[0].CommentID)
	assert.Equal(t, "alice", comments[0].Author)
	assert.False(t, comments[0].HasParent())

	assert.Equal(t, "bob", comments[1].Author)
	assert.Equal(t, "1", comments[1].ParentCommentID)
	require.NotNil(t, comments[1].Timestamp)
	assert.True(t, comments[1].Timestamp.Equal(base.Add(time.Minute)))

	assert.Equal(t, models.DefaultAuthorPlaceholder, comments[2].Author)
	assert.Equal(t, "2", comments[2].ParentCommentID)
}


func TestLoadComments_BooleanAbnormalFlag(t *testing.T) {
	f := setupTestFactory(t)
	ctx := context.Background()
	db, err := f.Open(ctx)
	require.NoError(t, err)
	defer db.Close()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, abnormal := range []bool{false, true, false} {
		_, err := db.ExecContext(ctx,
			`INSERT INTO comment (cid, pid, username, content, comment_time, is_abnormal) VALUES (?, 'p1', 'alice', 'text', ?, ?)`,
			fmt.Sprintf("c%d", i), base.Add(time.Duration(i)*time.Minute), abnormal)
		require.NoError(t, err)
	}

	comments, err := NewCommentStore(f, "", logging.Discard()).LoadComments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "c0", comments[0].CommentID)
	assert.Equal(t, "c2", comments[1].CommentID)
}

func TestLoadComments_NoRows(t *testing.T) {
	f := setupTestFactory(t)
	seed(t, f, seedComment{cid: "1", pid: "p1", username: "alice", content: "", at: time.Now()})

	store := NewCommentStore(f, "", logging.Discard())
	_, err := store.LoadComments(context.Background(), "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDataUnavailable)
}

func TestLoadComments_StoreUnavailable(t *testing.T) {
	f := NewFactory(DriverPgx, "postgres://nobody@127.0.0.1:1/none?connect_timeout=1", logging.Discard())
	store := NewCommentStore(f, "", logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := store.LoadComments(ctx, "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStoreUnavailable)
}

func TestNormalizeParent(t *testing.T) {
	f := setupTestFactory(t)
	seed(t, f,
		seedComment{cid: "1", pid: "p1", parent: "0", username: "alice", content: "top", at: time.Now()},
	)

	comments, err := NewCommentStore(f, "", logging.Discard()).LoadComments(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.False(t, comments[0].HasParent())
}

func TestRepresentativeComments(t *testing.T) {
	f := setupTestFactory(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seed(t, f,
		seedComment{cid: "1", pid: "p1", username: "alice", content: "old", at: base},
		seedComment{cid: "2", pid: "p1", username: "alice", content: "new", at: base.Add(time.Hour)},
		seedComment{cid: "3", pid: "p1", username: "bob\t", content: "bob says", at: base},
		seedComment{cid: "4", pid: "p1", username: "carol", content: "", at: base},
		seedComment{cid: "5", pid: "p2", username: "alice", content: "elsewhere", at: base.Add(2 * time.Hour)},
	)

	store := NewCommentStore(f, "", logging.Discard())
	got, err := store.RepresentativeComments(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"alice": "new",
		"bob":   "bob says",
	}, got)
}

func TestLatestCommentByAuthor(t *testing.T) {
	f := setupTestFactory(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seed(t, f,
		seedComment{cid: "1", pid: "p1", username: " dave ", content: "first", at: base},
		seedComment{cid: "2", pid: "p1", username: "dave", content: "second", at: base.Add(time.Minute)},
	)

	store := NewCommentStore(f, "", logging.Discard())
	ctx := context.Background()

	text, found, err := store.LatestCommentByAuthor(ctx, "p1", "dave")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", text)

	_, found, err = store.LatestCommentByAuthor(ctx, "p1", "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStatusStore(t *testing.T) {
	f := setupTestFactory(t)
	ctx := context.Background()

	db, err := f.Open(ctx)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO project (pid, project_name, status) VALUES ('p1', 'launch', 'init')`)
	require.NoError(t, err)
	db.Close()

	store := NewStatusStore(f, logging.Discard())
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	require.NoError(t, store.SetStatus(ctx, "p1", models.ProjectStatusRunning))

	p, err := store.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusRunning, p.Status)
	assert.Equal(t, "launch", p.Name)
	require.NotNil(t, p.UpdateTime)
	assert.True(t, p.UpdateTime.Equal(fixed))

	// unknown project is a no-op
	assert.NoError(t, store.SetStatus(ctx, "missing", models.ProjectStatusFail))

	_, err = store.GetProject(ctx, "missing")
	assert.Error(t, err)
}

func TestEnsureLocalSchema_SkipsServerDrivers(t *testing.T) {
	f := NewFactory(DriverPostgres, "postgres://unused", logging.Discard())
	created, err := f.EnsureLocalSchema(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
}
