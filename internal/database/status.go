package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/replygraph/replygraph/internal/errors"
	"github.com/replygraph/replygraph/internal/models"
)

// StatusStore updates the project status side channel
type StatusStore struct {
	factory *Factory
	logger  *logrus.Entry
	now     func() time.Time
}

// NewStatusStore creates a status store
func NewStatusStore(factory *Factory, logger *logrus.Logger) *StatusStore {
	return &StatusStore{
		factory: factory,
		logger:  logger.WithField("component", "project_status"),
		now:     time.Now,
	}
}

// SetStatus sets the status and update time of a project
func (s *StatusStore) SetStatus(ctx context.Context, projectID string, status models.ProjectStatus) error {
	db, err := s.factory.Open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := db.ExecContext(ctx,
		db.Rebind(`UPDATE project SET status = ?, update_time = ? WHERE pid = ?`),
		string(status), s.now().UTC(), projectID)
	if err != nil {
		return errors.DatabaseErrorf(err, "update status of project %s", projectID)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.WithField("project_id", projectID).Warn("project row not found, status not recorded")
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"status":     status,
	}).Debug("project status updated")
	return nil
}

// GetProject returns the project row
func (s *StatusStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	db, err := s.factory.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var p models.Project
	err = db.GetContext(ctx, &p,
		db.Rebind(`SELECT pid, project_name, status, update_time FROM project WHERE pid = ?`), projectID)
	if err == sql.ErrNoRows {
		return nil, errors.ValidationErrorf("project %s not found", projectID)
	}
	if err != nil {
		return nil, errors.DatabaseErrorf(err, "get project %s", projectID)
	}
	return &p, nil
}
