package jobs

import (
	"context"
	"time"

	"coreshare-backend/internal/config"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/service"
)

const jobTimeout = 2 * time.Minute

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
	now      func() time.Time
}

// Services holds all service dependencies needed by jobs. Chat is nil when the runner
// lives outside the API process, since chat sessions are held in memory.
type Services struct {
	Rental  service.RentalService
	Payment service.PaymentService
	Chat    service.ChatService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
		now:      time.Now,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// HasChat reports whether chat session expiry can run in this process
func (jr *JobRunner) HasChat() bool {
	return jr.services.Chat != nil
}

// runWithRecovery wraps job execution with panic recovery and a deadline
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := jr.now()
	logger.Info("Starting job", "job", jobName)
	jobFunc(ctx)
	logger.Info("Job completed", "job", jobName, "duration", jr.now().Sub(start))
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ReconcilePayments()
	jr.ExpireStaleApprovals()
	if jr.HasChat() {
		jr.ExpireChatSessions()
	}
}
