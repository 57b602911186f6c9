package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replygraph/replygraph/internal/errors"
	"github.com/replygraph/replygraph/internal/graph"
	"github.com/replygraph/replygraph/internal/interaction"
	"github.com/replygraph/replygraph/internal/logging"
	"github.com/replygraph/replygraph/internal/metrics"
	"github.com/replygraph/replygraph/internal/models"
	"github.com/replygraph/replygraph/internal/runlog"
)

type fakeLoader struct {
	rows []models.Comment
	err  error
}

func (f *fakeLoader) LoadComments(ctx context.Context, projectID string) ([]models.Comment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeStatus struct {
	history []models.ProjectStatus
	err     error
}

func (f *fakeStatus) SetStatus(ctx context.Context, projectID string, status models.ProjectStatus) error {
	f.history = append(f.history, status)
	return f.err
}

type fakeWriter struct {
	written *interaction.Graph
	calls   int
	err     error
}

func (f *fakeWriter) Write(ctx context.Context, projectID string, g *interaction.Graph) (*graph.WriteResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.written = g
	return &graph.WriteResult{Nodes: g.NodeCount(), Edges: g.EdgeCount(), EdgesMatched: g.EdgeCount(), Batches: 2}, nil
}

type fakeJournal struct {
	runs []runlog.Run
}

func (f *fakeJournal) Record(run runlog.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

type fakeTelemetry struct {
	finished []string
	phases   []string
}

func (f *fakeTelemetry) RunFinished(status string, nodes, edges int) {
	f.finished = append(f.finished, status)
}

func (f *fakeTelemetry) ObservePhase(phase string, d time.Duration) {
	f.phases = append(f.phases, phase)
}

type harness struct {
	loader    *fakeLoader
	status    *fakeStatus
	writer    *fakeWriter
	journal   *fakeJournal
	telemetry *fakeTelemetry
	ctrl      *Controller
}

func newHarness(rows []models.Comment) *harness {
	h := &harness{
		loader:    &fakeLoader{rows: rows},
		status:    &fakeStatus{},
		writer:    &fakeWriter{},
		journal:   &fakeJournal{},
		telemetry: &fakeTelemetry{},
	}
	cfg := metrics.DefaultConfig()
	cfg.CommunitySeed = 7
	h.ctrl = NewController(h.loader, h.status, h.writer, Options{
		Metrics:   cfg,
		Journal:   h.journal,
		Telemetry: h.telemetry,
	}, logging.Discard())
	h.ctrl.newRunID = func() string { return "run-1" }
	return h
}

func comment(id, parent, author string) models.Comment {
	return models.Comment{CommentID: id, ProjectID: "p1", ParentCommentID: parent, Author: author, Text: "x"}
}

func TestBuildGraphForProject_Success(t *testing.T) {
	h := newHarness([]models.Comment{
		comment("c1", "", "A"),
		comment("c2", "c1", "B"),
		comment("c3", "c1", "A"),
	})

	summary, err := h.ctrl.BuildGraphForProject(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusSuccess, summary.Status)
	assert.Equal(t, "p1", summary.ProjectID)
	assert.Equal(t, 2, summary.NodeCount)
	assert.Equal(t, 1, summary.EdgeCount)
	assert.Equal(t, "run-1", summary.RunID)
	require.Len(t, summary.TopImportance, 2)
	assert.Equal(t, "A", summary.TopImportance[0].Author)
	assert.InDelta(t, 1.0, summary.TopImportance[0].Score+summary.TopImportance[1].Score, 1e-6)
	require.NotNil(t, summary.Write)
	assert.Equal(t, 2, summary.Write.Batches)

	a, ok := h.writer.written.Node("A")
	require.True(t, ok)
	assert.Equal(t, 1, a.InDegree)
	assert.Positive(t, a.CommunityID)

	assert.Equal(t, []models.ProjectStatus{models.ProjectStatusRunning, models.ProjectStatusSuccess}, h.status.history)
	assert.Equal(t, []string{"success"}, h.telemetry.finished)
	assert.Equal(t, []string{PhaseLoad, PhaseBuild, PhaseMetrics, PhaseWrite}, h.telemetry.phases)

	require.Len(t, h.journal.runs, 1)
	run := h.journal.runs[0]
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "success", run.Status)
	assert.Equal(t, 2, run.NodeCount)
	assert.Empty(t, run.Error)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestBuildGraphForProject_NoDataIsFailWithoutError(t *testing.T) {
	h := newHarness(nil)
	h.loader.err = errors.DataUnavailablef("no qualifying comments for project %s", "p1")

	summary, err := h.ctrl.BuildGraphForProject(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusFail, summary.Status)
	assert.Equal(t, 0, summary.NodeCount)
	assert.Empty(t, summary.TopImportance)
	assert.Contains(t, summary.Message, "p1")
	assert.Nil(t, h.writer.written)

	assert.Equal(t, []models.ProjectStatus{models.ProjectStatusRunning, models.ProjectStatusFail}, h.status.history)
	require.Len(t, h.journal.runs, 1)
	assert.Equal(t, "fail", h.journal.runs[0].Status)
	assert.Equal(t, []string{"fail"}, h.telemetry.finished)
}

func TestBuildGraphForProject_WriterErrorIsReturned(t *testing.T) {
	h := newHarness([]models.Comment{comment("c1", "", "A"), comment("c2", "c1", "B")})
	h.writer.err = errors.PartialWrite(stderrors.New("constraint violated"), "edge batch 0-1")

	summary, err := h.ctrl.BuildGraphForProject(context.Background(), "p1")
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, stderrors.Is(err, errors.ErrPartialWrite))

	assert.Equal(t, models.ProjectStatusFail, h.status.history[len(h.status.history)-1])
	require.Len(t, h.journal.runs, 1)
	assert.Equal(t, "fail", h.journal.runs[0].Status)
	assert.Contains(t, h.journal.runs[0].Error, "constraint violated")
}

func TestBuildGraphForProject_StoreUnavailableFromLoader(t *testing.T) {
	h := newHarness(nil)
	h.loader.err = errors.StoreUnavailable(stderrors.New("connection refused"), "open comment source")

	_, err := h.ctrl.BuildGraphForProject(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrStoreUnavailable))
	assert.Equal(t, []models.ProjectStatus{models.ProjectStatusRunning, models.ProjectStatusFail}, h.status.history)
}

func TestBuildGraphForProject_LoadFailureNeverTouchesStore(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"no data", errors.DataUnavailablef("no qualifying comments for project %s", "p1")},
		{"source down", errors.StoreUnavailable(stderrors.New("connection refused"), "open comment source")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			h.loader.err = tt.err

			_, _ = h.ctrl.BuildGraphForProject(context.Background(), "p1")
			assert.Zero(t, h.writer.calls)
		})
	}
}

func TestBuildGraphForProject_StatusFailureDoesNotFailRun(t *testing.T) {
	h := newHarness([]models.Comment{comment("c1", "", "A"), comment("c2", "c1", "B")})
	h.status.err = fmt.Errorf("project table locked")

	summary, err := h.ctrl.BuildGraphForProject(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusSuccess, summary.Status)
}

func TestTopByImportance(t *testing.T) {
	g := interaction.NewGraph("p1")
	scores := map[string]float64{"d": 0.1, "b": 0.3, "a": 0.3, "c": 0.2, "e": 0.1}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		g.AddNode(name).ImportanceScore = scores[name]
	}

	tests := []struct {
		name string
		k    int
		want []string
	}{
		{"top two tie broken by name", 2, []string{"a", "b"}},
		{"all", 0, []string{"a", "b", "c", "d", "e"}},
		{"k larger than graph", 10, []string{"a", "b", "c", "d", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked := TopByImportance(g, tt.k)
			names := make([]string, len(ranked))
			for i, r := range ranked {
				names[i] = r.Author
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
