package graph

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/replygraph/replygraph/internal/errors"
)

const (
	// DefaultExportLimit caps nodes and links when no limit is given
	DefaultExportLimit = 5000

	// DefaultMissingPlaceholder is shown for users without any comment
	DefaultMissingPlaceholder = "(no comment)"
)

// CommentSource resolves representative comment text per author
type CommentSource interface {
	RepresentativeComments(ctx context.Context, projectID string) (map[string]string, error)
	LatestCommentByAuthor(ctx context.Context, projectID, author string) (string, bool, error)
}

// LookupSource tells where a node's comment text came from
type LookupSource string

const (
	LookupBulk     LookupSource = "bulk"
	LookupFallback LookupSource = "fallback"
	LookupMissing  LookupSource = "missing"
)

// CommentLookup is the resolved comment of one user
type CommentLookup struct {
	Text   string
	Source LookupSource
}

// ExportNode is one user in the visualization payload
type ExportNode struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	PageRank      float64      `json:"pagerank"`
	InDegree      int          `json:"in_degree"`
	OutDegree     int          `json:"out_degree"`
	Community     int          `json:"community"`
	Content       string       `json:"content"`
	ContentSource LookupSource `json:"content_source"`
}

// ExportLink is one interaction in the visualization payload
type ExportLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// Export is the bounded nodes/links view of a project
type Export struct {
	ProjectID string       `json:"project_id"`
	Nodes     []ExportNode `json:"nodes"`
	Links     []ExportLink `json:"links"`
}

// ExporterOptions configures an Exporter
type ExporterOptions struct {
	DefaultLimit       int
	FallbackRPS        float64
	MissingPlaceholder string
	Recorder           Recorder
}

// Exporter builds visualization payloads from the graph store
type Exporter struct {
	dial         Dialer
	comments     CommentSource
	limiter      *rate.Limiter
	defaultLimit int
	placeholder  string
	recorder     Recorder
	logger       *logrus.Entry
}

// NewExporter creates an exporter
func NewExporter(dial Dialer, comments CommentSource, opts ExporterOptions, logger *logrus.Logger) *Exporter {
	limit := rate.Inf
	if opts.FallbackRPS > 0 {
		limit = rate.Limit(opts.FallbackRPS)
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultExportLimit
	}
	if opts.MissingPlaceholder == "" {
		opts.MissingPlaceholder = DefaultMissingPlaceholder
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Exporter{
		dial:         dial,
		comments:     comments,
		limiter:      rate.NewLimiter(limit, 1),
		defaultLimit: opts.DefaultLimit,
		placeholder:  opts.MissingPlaceholder,
		recorder:     recorder,
		logger:       logger.WithField("component", "graph_exporter"),
	}
}

// Export returns the top-limit users by importance and the links among them.
// Each user carries its most recent comment: from the bulk prefetch, else a
// per-user fallback query, else the placeholder.
func (e *Exporter) Export(ctx context.Context, projectID string, limit int) (*Export, error) {
	start := time.Now()
	if limit <= 0 {
		limit = e.defaultLimit
	}

	sess, err := e.dial(ctx)
	if err != nil {
		if stderrors.Is(err, errors.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, errors.StoreUnavailable(err, "connect to graph store")
	}
	defer sess.Close(ctx)

	var (
		userRecords []map[string]any
		bulk        map[string]string
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		records, err := sess.Read(groupCtx, OpGraphExport, topUsersCypher, map[string]any{
			"project_id": projectID,
			"limit":      int64(limit),
		})
		if err != nil {
			return errors.DatabaseErrorf(err, "query top users of project %s", projectID)
		}
		userRecords = records
		return nil
	})
	group.Go(func() error {
		comments, err := e.comments.RepresentativeComments(groupCtx, projectID)
		if err != nil {
			return fmt.Errorf("prefetch comments: %w", err)
		}
		bulk = comments
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	export := &Export{
		ProjectID: projectID,
		Nodes:     make([]ExportNode, 0, len(userRecords)),
		Links:     []ExportLink{},
	}
	names := make([]string, 0, len(userRecords))

	for _, rec := range userRecords {
		name := recordString(rec, "name")
		lookup, err := e.lookup(ctx, projectID, name, bulk)
		if err != nil {
			return nil, err
		}
		e.recorder.CommentLookup(string(lookup.Source))

		export.Nodes = append(export.Nodes, ExportNode{
			ID:            name,
			Name:          name,
			PageRank:      recordFloat(rec, "importance_score"),
			InDegree:      recordInt(rec, "in_degree"),
			OutDegree:     recordInt(rec, "out_degree"),
			Community:     recordInt(rec, "community_id"),
			Content:       lookup.Text,
			ContentSource: lookup.Source,
		})
		names = append(names, name)
	}

	if len(names) > 0 {
		linkRecords, err := sess.Read(ctx, OpGraphExport, linksAmongCypher, map[string]any{
			"project_id": projectID,
			"names":      names,
			"limit":      int64(limit),
		})
		if err != nil {
			return nil, errors.DatabaseErrorf(err, "query links of project %s", projectID)
		}
		for _, rec := range linkRecords {
			export.Links = append(export.Links, ExportLink{
				Source: recordString(rec, "source"),
				Target: recordString(rec, "target"),
				Weight: recordInt(rec, "weight"),
			})
		}
	}

	e.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"limit":      limit,
		"nodes":      len(export.Nodes),
		"links":      len(export.Links),
		"duration":   time.Since(start),
	}).Info("graph exported")

	return export, nil
}

// lookup resolves one user's comment. Only context cancellation is an error;
// a failed fallback query counts as missing.
func (e *Exporter) lookup(ctx context.Context, projectID, name string, bulk map[string]string) (CommentLookup, error) {
	if text, ok := bulk[name]; ok && text != "" {
		return CommentLookup{Text: text, Source: LookupBulk}, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return CommentLookup{}, err
	}

	text, found, err := e.comments.LatestCommentByAuthor(ctx, projectID, name)
	if err != nil {
		if ctx.Err() != nil {
			return CommentLookup{}, ctx.Err()
		}
		e.logger.WithError(err).WithField("author", name).Warn("fallback comment lookup failed")
		return CommentLookup{Text: e.placeholder, Source: LookupMissing}, nil
	}
	if !found || text == "" {
		return CommentLookup{Text: e.placeholder, Source: LookupMissing}, nil
	}
	return CommentLookup{Text: text, Source: LookupFallback}, nil
}
