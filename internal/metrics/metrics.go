package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/replygraph/replygraph/internal/errors"
	"github.com/replygraph/replygraph/internal/interaction"
)

const (
	// DefaultDamping is the PageRank damping factor
	DefaultDamping = 0.85

	// DefaultTolerance is the L1 convergence threshold per node
	DefaultTolerance = 1e-9

	// DefaultMaxIterations caps both PageRank and label propagation
	DefaultMaxIterations = 100
)

// Config controls the metrics engine
type Config struct {
	Damping                float64
	Tolerance              float64
	MaxIterations          int
	CommunityMaxIterations int
	CommunitySeed          int64
	WeightedVotes          bool
}

// DefaultConfig returns the standard metric settings
func DefaultConfig() Config {
	return Config{
		Damping:                DefaultDamping,
		Tolerance:              DefaultTolerance,
		MaxIterations:          DefaultMaxIterations,
		CommunityMaxIterations: DefaultMaxIterations,
	}
}

// Result summarizes one metrics pass
type Result struct {
	PageRankIterations  int           `json:"pagerank_iterations"`
	PageRankConverged   bool          `json:"pagerank_converged"`
	CommunityIterations int           `json:"community_iterations"`
	CommunityConverged  bool          `json:"community_converged"`
	Communities         int           `json:"communities"`
	Modularity          float64       `json:"modularity"`
	Duration            time.Duration `json:"duration"`
}

// Compute attaches degree, importance score and community id to every node.
// Nothing is attached unless all metrics succeed.
func Compute(ctx context.Context, g *interaction.Graph, cfg Config, logger *logrus.Entry) (*Result, error) {
	start := time.Now()
	if cfg.Damping <= 0 || cfg.Damping >= 1 {
		return nil, errors.ConfigErrorf("damping must be in (0, 1), got %v", cfg.Damping)
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	pr, err := PageRank(ctx, g, cfg.Damping, cfg.Tolerance, cfg.MaxIterations)
	if err != nil {
		return nil, fmt.Errorf("pagerank: %w", err)
	}

	communities, err := LabelPropagation(ctx, g, LabelPropagationOptions{
		MaxIterations: cfg.CommunityMaxIterations,
		Seed:          cfg.CommunitySeed,
		WeightedVotes: cfg.WeightedVotes,
	})
	if err != nil {
		return nil, fmt.Errorf("label propagation: %w", err)
	}

	Degrees(g)
	for i, n := range g.Nodes() {
		n.ImportanceScore = pr.Scores[i]
		n.CommunityID = communities.Labels[i]
	}

	result := &Result{
		PageRankIterations:  pr.Iterations,
		PageRankConverged:   pr.Converged,
		CommunityIterations: communities.Iterations,
		CommunityConverged:  communities.Converged,
		Communities:         communities.Communities,
		Modularity:          Modularity(g, communities.Labels),
		Duration:            time.Since(start),
	}

	if logger != nil {
		entry := logger.WithFields(logrus.Fields{
			"project_id":  g.ProjectID,
			"nodes":       g.NodeCount(),
			"edges":       g.EdgeCount(),
			"pr_iter":     pr.Iterations,
			"communities": result.Communities,
			"modularity":  result.Modularity,
		})
		if !pr.Converged {
			entry.Warn("pagerank hit the iteration cap before converging")
		} else {
			entry.Debug("metrics computed")
		}
	}

	return result, nil
}
