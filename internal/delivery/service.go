// Package delivery hands a finished session's jobs to downstream consumers:
// the companion backend, an already open results page and the archive.
package delivery

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobsweep/backend/internal/domain"
)

// Target receives a finished session
type Target interface {
	Deliver(ctx context.Context, s *domain.Session, stats domain.JobStatistics) error
}

// TargetFunc adapts a function to Target
type TargetFunc func(ctx context.Context, s *domain.Session, stats domain.JobStatistics) error

// Deliver implements Target
func (f TargetFunc) Deliver(ctx context.Context, s *domain.Session, stats domain.JobStatistics) error {
	return f(ctx, s, stats)
}

type namedTarget struct {
	name string
	Target
}

// Service fans a session out to every registered target. Targets run
// independently and their failures are only logged.
type Service struct {
	targets []namedTarget
	timeout time.Duration
	logger  *zap.Logger
}

// NewService creates a delivery service; timeout bounds each delivery
func NewService(timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{timeout: timeout, logger: logger.Named("delivery")}
}

// Add registers a target under name
func (s *Service) Add(name string, t Target) *Service {
	s.targets = append(s.targets, namedTarget{name: name, Target: t})
	return s
}

// Targets returns the registered target names
func (s *Service) Targets() []string {
	names := make([]string, len(s.targets))
	for i, t := range s.targets {
		names[i] = t.name
	}
	return names
}

// Deliver implements session.Deliverer
func (s *Service) Deliver(ctx context.Context, sess *domain.Session, stats domain.JobStatistics) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var g errgroup.Group
	for _, t := range s.targets {
		t := t
		g.Go(func() error {
			start := time.Now()
			if err := t.Deliver(ctx, sess, stats); err != nil {
				s.logger.Warn("Delivery failed",
					zap.String("target", t.name),
					zap.String("session_id", sess.ID),
					zap.Error(err),
				)
				return nil
			}
			s.logger.Info("Delivered session",
				zap.String("target", t.name),
				zap.String("session_id", sess.ID),
				zap.Int("jobs", len(sess.Jobs)),
				zap.Duration("took", time.Since(start)),
			)
			return nil
		})
	}
	_ = g.Wait()
}
