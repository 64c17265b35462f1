package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lingobridge/backend/internal/domain/payments"
	"go.uber.org/zap"
)

// ErrSchedulerNotRunning is returned when a manual trigger is requested on a
// stopped scheduler
var ErrSchedulerNotRunning = errors.New("scheduler is not running")

// RetentionScheduler periodically purges webhook events whose retention
// window has elapsed. The window itself lives on each stored event; this job
// only sweeps up what is already expired.
type RetentionScheduler struct {
	events    payments.WebhookEventRepository
	logger    *zap.Logger
	config    RetentionSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// RetentionSchedulerConfig holds configuration for the retention scheduler
type RetentionSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// PurgeInterval is how often expired events are swept
	PurgeInterval time.Duration

	// PurgeTimeout is the maximum time for a single sweep
	PurgeTimeout time.Duration
}

// DefaultRetentionSchedulerConfig returns default configuration
func DefaultRetentionSchedulerConfig() RetentionSchedulerConfig {
	return RetentionSchedulerConfig{
		Enabled:       true,
		PurgeInterval: time.Hour,
		PurgeTimeout:  5 * time.Minute,
	}
}

// NewRetentionScheduler creates a new retention scheduler
func NewRetentionScheduler(
	events payments.WebhookEventRepository,
	logger *zap.Logger,
	config RetentionSchedulerConfig,
) *RetentionScheduler {
	if config.PurgeInterval <= 0 {
		config.PurgeInterval = time.Hour
	}
	if config.PurgeTimeout <= 0 {
		config.PurgeTimeout = 5 * time.Minute
	}
	return &RetentionScheduler{
		events: events,
		logger: logger,
		config: config,
	}
}

// Start starts the retention scheduler
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Webhook event retention scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runPurgeLoop(ctx)

	s.logger.Info("Webhook event retention scheduler started",
		zap.Duration("purge_interval", s.config.PurgeInterval),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *RetentionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Webhook event retention scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Webhook event retention scheduler stop timed out")
		return ctx.Err()
	}
}

// runPurgeLoop sweeps expired events on the configured interval
func (s *RetentionScheduler) runPurgeLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Retention purge loop stopping")
			return
		case <-ticker.C:
			s.executePurge(ctx)
		}
	}
}

// executePurge deletes events whose retention window has elapsed
func (s *RetentionScheduler) executePurge(ctx context.Context) {
	purgeCtx, cancel := context.WithTimeout(ctx, s.config.PurgeTimeout)
	defer cancel()

	startTime := time.Now()
	deleted, err := s.events.DeleteExpired(purgeCtx, time.Now().UTC())
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Webhook event retention purge failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	if deleted > 0 {
		s.logger.Info("Webhook event retention purge completed",
			zap.Duration("duration", duration),
			zap.Int64("deleted_count", deleted),
		)
	}
}

// TriggerImmediatePurge triggers an immediate purge run
func (s *RetentionScheduler) TriggerImmediatePurge(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate webhook event retention purge")

	go func() {
		defer s.wg.Done()
		s.executePurge(ctx)
	}()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
