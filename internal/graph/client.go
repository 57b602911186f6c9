package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/replygraph/replygraph/internal/errors"
)

// Tx runs statements inside an open write transaction
type Tx interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Session is one scoped connection to the graph store
type Session interface {
	// ExecuteWrite runs fn in a single explicit transaction: committed when
	// fn returns nil, rolled back otherwise. It never retries.
	ExecuteWrite(ctx context.Context, operation string, fn func(tx Tx) error) error

	// Read runs a query in an explicit read transaction on a reader. It never
	// retries.
	Read(ctx context.Context, operation, cypher string, params map[string]any) ([]map[string]any, error)

	Close(ctx context.Context) error
}

// Dialer opens a session for one logical operation
type Dialer func(ctx context.Context) (Session, error)

// ClientConfig holds graph store connection settings
type ClientConfig struct {
	URI      string
	User     string
	Password string
	Database string
	MaxPool  int
}

// Client creates sessions against Neo4j
type Client struct {
	config ClientConfig
	logger *logrus.Entry
}

// NewClient creates a Neo4j client. No connection is made until Dial.
func NewClient(config ClientConfig, logger *logrus.Logger) *Client {
	if config.Database == "" {
		config.Database = "neo4j"
	}
	if config.MaxPool <= 0 {
		config.MaxPool = 50
	}
	return &Client{
		config: config,
		logger: logger.WithField("component", "neo4j"),
	}
}

// Dial connects, verifies connectivity and returns a session owning the driver.
// Closing the session closes the driver.
func (c *Client) Dial(ctx context.Context) (Session, error) {
	if c.config.URI == "" || c.config.User == "" || c.config.Password == "" {
		return nil, errors.StoreUnavailable(
			fmt.Errorf("neo4j credentials missing: uri=%s, user=%s", c.config.URI, c.config.User),
			"connect to graph store")
	}

	driver, err := neo4j.NewDriverWithContext(c.config.URI,
		neo4j.BasicAuth(c.config.User, c.config.Password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = c.config.MaxPool
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.MaxConnectionLifetime = 3600 * time.Second
			config.ConnectionLivenessCheckTimeout = 5 * time.Second
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, errors.StoreUnavailable(err, "create neo4j driver")
	}

	verifyCtx, cancel := context.WithTimeout(ctx, GetConfigForOperation(OpHealthCheck).Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, errors.StoreUnavailable(err, fmt.Sprintf("connect to neo4j at %s", c.config.URI))
	}

	c.logger.WithFields(logrus.Fields{
		"uri":           c.config.URI,
		"database":      c.config.Database,
		"max_pool_size": c.config.MaxPool,
	}).Debug("neo4j session opened")

	return &driverSession{
		driver:   driver,
		database: c.config.Database,
		logger:   c.logger,
		monitor:  NewTimeoutMonitor(c.logger),
	}, nil
}

// HealthCheck verifies Neo4j connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	sess, err := c.Dial(ctx)
	if err != nil {
		return err
	}
	return sess.Close(ctx)
}

func sessionConfig(database string, mode neo4j.AccessMode) neo4j.SessionConfig {
	return neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: database,
	}
}

type driverSession struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *logrus.Entry
	monitor  *TimeoutMonitor
}

func (s *driverSession) ExecuteWrite(ctx context.Context, operation string, fn func(tx Tx) error) error {
	txConfig := GetConfigForOperation(operation)

	return s.monitor.MonitorWithContext(ctx, operation, txConfig.Timeout, func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, sessionConfig(s.database, neo4j.AccessModeWrite))
		defer session.Close(ctx)

		tx, err := session.BeginTransaction(ctx, txConfig.AsNeo4jConfig()...)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if err := fn(&driverTx{tx: tx}); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.WithError(rbErr).WithField("operation", operation).Warn("rollback failed")
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

func (s *driverSession) Read(ctx context.Context, operation, cypher string, params map[string]any) ([]map[string]any, error) {
	var records []map[string]any
	txConfig := GetConfigForOperation(operation)

	err := s.monitor.MonitorWithContext(ctx, operation, txConfig.Timeout, func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, sessionConfig(s.database, neo4j.AccessModeRead))
		defer session.Close(ctx)

		// explicit transaction: managed reads would be retried by the driver
		tx, err := session.BeginTransaction(ctx, txConfig.AsNeo4jConfig()...)
		if err != nil {
			return fmt.Errorf("begin read transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		records, err = (&driverTx{tx: tx}).Run(ctx, cypher, params)
		if err != nil {
			return fmt.Errorf("query execution failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (s *driverSession) Close(ctx context.Context) error {
	if err := s.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	return nil
}

type driverTx struct {
	tx neo4j.ExplicitTransaction
}

func (t *driverTx) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	collected, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]map[string]any, 0, len(collected))
	for _, record := range collected {
		records = append(records, record.AsMap())
	}
	return records, nil
}
