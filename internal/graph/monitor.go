package graph

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeoutMonitor logs slow and failed store operations
type TimeoutMonitor struct {
	logger       *logrus.Entry
	warningRatio float64 // Warn when execution reaches this % of timeout
}

// NewTimeoutMonitor creates a monitor with default settings
func NewTimeoutMonitor(logger *logrus.Entry) *TimeoutMonitor {
	return &TimeoutMonitor{
		logger:       logger,
		warningRatio: 0.8, // Warn at 80% of timeout
	}
}

// MonitorWithContext runs fn under the operation timeout and logs the outcome
func (tm *TimeoutMonitor) MonitorWithContext(
	ctx context.Context,
	operation string,
	timeout time.Duration,
	fn func(context.Context) error,
) error {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(runCtx)
	duration := time.Since(start)

	fields := logrus.Fields{
		"operation":        operation,
		"duration_seconds": duration.Seconds(),
	}

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			tm.logger.WithFields(fields).WithField("timeout_seconds", timeout.Seconds()).Error("operation timed out")
		} else {
			tm.logger.WithFields(fields).WithError(err).Warn("operation failed")
		}
		return err
	}

	if timeout > 0 && duration >= time.Duration(float64(timeout)*tm.warningRatio) {
		tm.logger.WithFields(fields).
			WithField("percent_used", duration.Seconds()/timeout.Seconds()*100).
			Warn("operation approaching timeout")
	} else {
		tm.logger.WithFields(fields).Debug("operation completed")
	}

	return nil
}
