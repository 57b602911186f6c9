package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/replygraph/replygraph/internal/errors"
	"github.com/replygraph/replygraph/internal/graph"
	"github.com/replygraph/replygraph/internal/interaction"
	"github.com/replygraph/replygraph/internal/metrics"
	"github.com/replygraph/replygraph/internal/models"
	"github.com/replygraph/replygraph/internal/runlog"
)

// DefaultTopK is the length of the summary's importance ranking
const DefaultTopK = 10

// Pipeline phases reported to Telemetry
const (
	PhaseLoad    = "load"
	PhaseBuild   = "build"
	PhaseMetrics = "metrics"
	PhaseWrite   = "write"
)

// CommentLoader returns the qualifying comment rows of a project
type CommentLoader interface {
	LoadComments(ctx context.Context, projectID string) ([]models.Comment, error)
}

// StatusUpdater publishes the project run state
type StatusUpdater interface {
	SetStatus(ctx context.Context, projectID string, status models.ProjectStatus) error
}

// GraphWriter persists a computed project graph
type GraphWriter interface {
	Write(ctx context.Context, projectID string, g *interaction.Graph) (*graph.WriteResult, error)
}

// RunRecorder journals finished runs
type RunRecorder interface {
	Record(run runlog.Run) error
}

// Telemetry receives per-run measurements
type Telemetry interface {
	RunFinished(status string, nodes, edges int)
	ObservePhase(phase string, d time.Duration)
}

// RankedUser is one entry of the importance ranking
type RankedUser struct {
	Author string  `json:"author" yaml:"author"`
	Score  float64 `json:"score" yaml:"score"`
}

// Summary is the outcome of one project build
type Summary struct {
	Status        models.ProjectStatus `json:"status" yaml:"status"`
	ProjectID     string               `json:"project_id" yaml:"project_id"`
	NodeCount     int                  `json:"node_count" yaml:"node_count"`
	EdgeCount     int                  `json:"edge_count" yaml:"edge_count"`
	TopImportance []RankedUser         `json:"top_importance" yaml:"top_importance"`
	Communities   int                  `json:"communities" yaml:"communities"`
	Modularity    float64              `json:"modularity" yaml:"modularity"`
	RunID         string               `json:"run_id" yaml:"run_id"`
	Message       string               `json:"message" yaml:"message"`
	Write         *graph.WriteResult   `json:"write,omitempty" yaml:"write,omitempty"`
}

// Options configures a Controller. Journal and Telemetry are optional.
type Options struct {
	Metrics   metrics.Config
	TopK      int
	Journal   RunRecorder
	Telemetry Telemetry
}

// Controller runs load → build → compute → persist for one project at a time
type Controller struct {
	loader   CommentLoader
	status   StatusUpdater
	writer   GraphWriter
	opts     Options
	logger   *logrus.Entry
	now      func() time.Time
	newRunID func() string
}

// NewController wires the pipeline stages
func NewController(loader CommentLoader, status StatusUpdater, writer GraphWriter, opts Options, logger *logrus.Logger) *Controller {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Controller{
		loader:   loader,
		status:   status,
		writer:   writer,
		opts:     opts,
		logger:   logger.WithField("component", "pipeline"),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// BuildGraphForProject rebuilds the interaction graph of a project.
//
// A project without qualifying comments yields a fail summary and a nil
// error. Any other failure marks the project failed and is returned.
func (c *Controller) BuildGraphForProject(ctx context.Context, projectID string) (*Summary, error) {
	run := runlog.Run{
		RunID:     c.newRunID(),
		ProjectID: projectID,
		StartedAt: c.now(),
	}
	log := c.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"run_id":     run.RunID,
	})

	c.setStatus(ctx, log, projectID, models.ProjectStatusRunning)

	summary, err := c.build(ctx, log, projectID)
	if err != nil {
		if stderrors.Is(err, errors.ErrDataUnavailable) {
			summary = &Summary{
				Status:        models.ProjectStatusFail,
				ProjectID:     projectID,
				TopImportance: []RankedUser{},
				Message:       fmt.Sprintf("no comment data for project %s", projectID),
			}
			log.Warn("no qualifying comments, build skipped")
			err = nil
		} else {
			log.WithError(err).WithField("kind", errors.TypeName(err)).Error("graph build failed")
		}
	}

	status := models.ProjectStatusFail
	if summary != nil {
		status = summary.Status
		summary.RunID = run.RunID
		run.NodeCount = summary.NodeCount
		run.EdgeCount = summary.EdgeCount
	}
	run.Status = string(status)
	if err != nil {
		run.Error = err.Error()
	} else if status == models.ProjectStatusFail {
		run.Error = summary.Message
	}

	// the final status must land even when the caller gave up
	c.setStatus(context.WithoutCancel(ctx), log, projectID, status)
	c.finish(log, run)

	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (c *Controller) build(ctx context.Context, log *logrus.Entry, projectID string) (*Summary, error) {
	var rows []models.Comment
	err := c.phase(PhaseLoad, func() error {
		var err error
		rows, err = c.loader.LoadComments(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}

	var g *interaction.Graph
	_ = c.phase(PhaseBuild, func() error {
		g = interaction.Build(projectID, rows)
		return nil
	})
	stats := g.Stats()
	log.WithFields(logrus.Fields{
		"rows":         stats.Rows,
		"nodes":        g.NodeCount(),
		"edges":        g.EdgeCount(),
		"self_replies": stats.SelfRepliesDrop,
		"dangling":     stats.DanglingDrop,
	}).Info("interaction graph built")

	var computed *metrics.Result
	err = c.phase(PhaseMetrics, func() error {
		var err error
		computed, err = metrics.Compute(ctx, g, c.opts.Metrics, log)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("compute metrics: %w", err)
	}

	var written *graph.WriteResult
	err = c.phase(PhaseWrite, func() error {
		var err error
		written, err = c.writer.Write(ctx, projectID, g)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("persist graph: %w", err)
	}

	return &Summary{
		Status:        models.ProjectStatusSuccess,
		ProjectID:     projectID,
		NodeCount:     g.NodeCount(),
		EdgeCount:     g.EdgeCount(),
		TopImportance: TopByImportance(g, c.opts.TopK),
		Communities:   computed.Communities,
		Modularity:    computed.Modularity,
		Message:       fmt.Sprintf("graph built: %d users, %d interactions", g.NodeCount(), g.EdgeCount()),
		Write:         written,
	}, nil
}

func (c *Controller) phase(name string, fn func() error) error {
	start := c.now()
	err := fn()
	if c.opts.Telemetry != nil {
		c.opts.Telemetry.ObservePhase(name, c.now().Sub(start))
	}
	return err
}

func (c *Controller) setStatus(ctx context.Context, log *logrus.Entry, projectID string, status models.ProjectStatus) {
	if err := c.status.SetStatus(ctx, projectID, status); err != nil {
		log.WithError(err).WithField("status", status).Warn("failed to update project status")
	}
}

func (c *Controller) finish(log *logrus.Entry, run runlog.Run) {
	run.FinishedAt = c.now()
	if c.opts.Telemetry != nil {
		c.opts.Telemetry.RunFinished(run.Status, run.NodeCount, run.EdgeCount)
	}
	if c.opts.Journal != nil {
		if err := c.opts.Journal.Record(run); err != nil {
			log.WithError(err).Warn("failed to journal run")
		}
	}
}

// TopByImportance ranks nodes by importance score, ties by name
func TopByImportance(g *interaction.Graph, k int) []RankedUser {
	ranked := make([]RankedUser, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		ranked = append(ranked, RankedUser{Author: n.Name, Score: n.ImportanceScore})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Author < ranked[j].Author
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
