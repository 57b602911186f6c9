package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const runsBucket = "runs"

// keyTimeFormat sorts lexicographically in time order
const keyTimeFormat = "2006-01-02T15:04:05.000000000Z"

// Run is the journal entry of one pipeline invocation
type Run struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	ProjectID  string    `json:"project_id" yaml:"project_id"`
	Status     string    `json:"status" yaml:"status"`
	NodeCount  int       `json:"node_count" yaml:"node_count"`
	EdgeCount  int       `json:"edge_count" yaml:"edge_count"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Journal is a local bbolt history of pipeline runs, bucketed per project
type Journal struct {
	db     *bolt.DB
	logger *logrus.Entry
}

// Open opens or creates the journal file
func Open(path string, timeout time.Duration, logger *logrus.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create run journal directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open run journal %s: %w", path, err)
	}

	return &Journal{
		db:     db,
		logger: logger.WithField("component", "runlog"),
	}, nil
}

// Close closes the journal file
func (j *Journal) Close() error {
	return j.db.Close()
}

func runKey(run Run) []byte {
	return []byte(run.StartedAt.UTC().Format(keyTimeFormat) + "/" + run.RunID)
}

// Record stores a run under its project
func (j *Journal) Record(run Run) error {
	if run.ProjectID == "" || run.RunID == "" {
		return fmt.Errorf("run needs project and run id")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	err = j.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		if err != nil {
			return err
		}
		project, err := root.CreateBucketIfNotExists([]byte(run.ProjectID))
		if err != nil {
			return err
		}
		return project.Put(runKey(run), data)
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}

	j.logger.WithFields(logrus.Fields{
		"project_id": run.ProjectID,
		"run_id":     run.RunID,
		"status":     run.Status,
	}).Debug("run recorded")
	return nil
}

// List returns runs newest first. An empty projectID lists every project.
// limit <= 0 returns everything.
func (j *Journal) List(projectID string, limit int) ([]Run, error) {
	var runs []Run

	err := j.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(runsBucket))
		if root == nil {
			return nil
		}

		collect := func(bucket *bolt.Bucket) error {
			c := bucket.Cursor()
			for k, v := c.Last(); k != nil; k, v = c.Prev() {
				var run Run
				if err := json.Unmarshal(v, &run); err != nil {
					return fmt.Errorf("decode run %s: %w", k, err)
				}
				runs = append(runs, run)
				if projectID != "" && limit > 0 && len(runs) >= limit {
					break
				}
			}
			return nil
		}

		if projectID != "" {
			bucket := root.Bucket([]byte(projectID))
			if bucket == nil {
				return nil
			}
			return collect(bucket)
		}

		return root.ForEach(func(name, v []byte) error {
			if v != nil {
				return nil
			}
			return collect(root.Bucket(name))
		})
	})
	if err != nil {
		return nil, err
	}

	if projectID == "" {
		sort.SliceStable(runs, func(a, b int) bool {
			return runs[a].StartedAt.After(runs[b].StartedAt)
		})
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
