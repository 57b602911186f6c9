package graph

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/replygraph/replygraph/internal/errors"
	"github.com/replygraph/replygraph/internal/interaction"
)

// Recorder receives write and export telemetry
type Recorder interface {
	BatchWritten(kind string, rows int)
	CommentLookup(source string)
}

type nopRecorder struct{}

func (nopRecorder) BatchWritten(string, int) {}
func (nopRecorder) CommentLookup(string)     {}

// Batch kinds reported to the Recorder
const (
	BatchKindNodes = "nodes"
	BatchKindEdges = "edges"
)

// WriteResult reports what a project write touched
type WriteResult struct {
	Nodes        int `json:"nodes"`
	Edges        int `json:"edges"`
	EdgesMatched int `json:"edges_matched"`
	Pruned       int `json:"pruned"`
	Reset        int `json:"reset,omitempty"`
	Batches      int `json:"batches"`
}

// WriterOptions configures a Writer
type WriterOptions struct {
	Batch      BatchConfig
	PruneStale bool
	// ResetFirst deletes the project's stored users inside the write
	// transaction, before the upserts
	ResetFirst bool
	Recorder   Recorder
}

// Writer persists project graphs with merge-by-key upserts
type Writer struct {
	dial     Dialer
	batch    BatchConfig
	prune    bool
	reset    bool
	recorder Recorder
	logger   *logrus.Entry
}

// NewWriter creates a graph store writer
func NewWriter(dial Dialer, opts WriterOptions, logger *logrus.Logger) *Writer {
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Writer{
		dial:     dial,
		batch:    opts.Batch.normalized(),
		prune:    opts.PruneStale,
		reset:    opts.ResetFirst,
		recorder: recorder,
		logger:   logger.WithField("component", "graph_writer"),
	}
}

func (w *Writer) open(ctx context.Context) (Session, error) {
	sess, err := w.dial(ctx)
	if err != nil {
		if stderrors.Is(err, errors.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, errors.StoreUnavailable(err, "connect to graph store")
	}
	return sess, nil
}

// EnsureSchema declares the (name, project_id) uniqueness constraint
func (w *Writer) EnsureSchema(ctx context.Context) error {
	sess, err := w.open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	return w.ensureSchema(ctx, sess)
}

// ensureSchema runs in its own transaction; Neo4j refuses schema and data
// changes in the same one
func (w *Writer) ensureSchema(ctx context.Context, sess Session) error {
	err := sess.ExecuteWrite(ctx, OpSchema, func(tx Tx) error {
		_, err := tx.Run(ctx, constraintCypher, nil)
		return err
	})
	if err != nil {
		return errors.DatabaseErrorf(err, "create user constraint")
	}

	w.logger.Debug("user constraint ensured")
	return nil
}

// Write declares the user constraint, then upserts every node and every edge
// of g in one transaction. A failed batch rolls the transaction back and is
// reported as a partial write. With ResetFirst the project's stored users are
// deleted in that same transaction, so a failed write keeps the old graph.
func (w *Writer) Write(ctx context.Context, projectID string, g *interaction.Graph) (*WriteResult, error) {
	start := time.Now()
	result := &WriteResult{}

	sess, err := w.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close(ctx)

	if err := w.ensureSchema(ctx, sess); err != nil {
		return nil, err
	}

	nodeRows := userRows(g)
	edgeRows := interactionRows(g)
	names := make([]string, 0, len(nodeRows))
	for _, n := range g.Nodes() {
		names = append(names, n.Name)
	}

	err = sess.ExecuteWrite(ctx, OpGraphWrite, func(tx Tx) error {
		*result = WriteResult{}

		if w.reset {
			records, err := tx.Run(ctx, resetProjectCypher, map[string]any{"project_id": projectID})
			if err != nil {
				return errors.PartialWrite(err, fmt.Sprintf("reset project %s", projectID))
			}
			result.Reset = firstInt(records, "deleted")
		}

		for _, r := range batchRanges(len(nodeRows), w.batch.NodeBatchSize) {
			records, err := tx.Run(ctx, upsertUsersCypher, map[string]any{
				"project_id": projectID,
				"rows":       nodeRows[r[0]:r[1]],
			})
			if err != nil {
				return errors.PartialWrite(err, fmt.Sprintf("user batch %d-%d of project %s", r[0], r[1], projectID))
			}
			result.Nodes += firstInt(records, "written")
			result.Batches++
			w.recorder.BatchWritten(BatchKindNodes, r[1]-r[0])
		}

		for _, r := range batchRanges(len(edgeRows), w.batch.EdgeBatchSize) {
			records, err := tx.Run(ctx, upsertInteractionsCypher, map[string]any{
				"project_id": projectID,
				"rows":       edgeRows[r[0]:r[1]],
			})
			if err != nil {
				return errors.PartialWrite(err, fmt.Sprintf("interaction batch %d-%d of project %s", r[0], r[1], projectID))
			}
			result.EdgesMatched += firstInt(records, "matched")
			result.Batches++
			w.recorder.BatchWritten(BatchKindEdges, r[1]-r[0])
		}
		result.Edges = len(edgeRows)

		if w.prune {
			records, err := tx.Run(ctx, pruneStaleCypher, map[string]any{
				"project_id": projectID,
				"names":      names,
			})
			if err != nil {
				return errors.PartialWrite(err, fmt.Sprintf("prune stale users of project %s", projectID))
			}
			result.Pruned = firstInt(records, "deleted")
		}
		return nil
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrPartialWrite) {
			return nil, err
		}
		return nil, errors.PartialWrite(err, fmt.Sprintf("write project %s", projectID))
	}

	entry := w.logger.WithFields(logrus.Fields{
		"project_id":    projectID,
		"nodes":         result.Nodes,
		"edges":         result.Edges,
		"edges_matched": result.EdgesMatched,
		"batches":       result.Batches,
		"duration":      time.Since(start),
	})
	if result.Pruned > 0 {
		entry = entry.WithField("pruned", result.Pruned)
	}
	if w.reset {
		entry = entry.WithField("reset", result.Reset)
	}
	if result.EdgesMatched < result.Edges {
		entry.Warn("some interactions had no endpoint in the store and were dropped")
	} else {
		entry.Info("project graph written")
	}

	return result, nil
}

func userRows(g *interaction.Graph) []map[string]any {
	rows := make([]map[string]any, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		rows = append(rows, map[string]any{
			"name":             n.Name,
			"in_degree":        int64(n.InDegree),
			"out_degree":       int64(n.OutDegree),
			"importance_score": n.ImportanceScore,
			"community_id":     int64(n.CommunityID),
		})
	}
	return rows
}

func interactionRows(g *interaction.Graph) []map[string]any {
	rows := make([]map[string]any, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		ids := make([]any, len(e.CommentIDs))
		for i, id := range e.CommentIDs {
			ids[i] = id
		}
		rows = append(rows, map[string]any{
			"source":      e.Source,
			"target":      e.Target,
			"weight":      int64(e.Weight),
			"comment_ids": ids,
			"last_ts":     timeParam(e.LastInteraction),
		})
	}
	return rows
}

func firstInt(records []map[string]any, key string) int {
	if len(records) == 0 {
		return 0
	}
	return recordInt(records[0], key)
}
