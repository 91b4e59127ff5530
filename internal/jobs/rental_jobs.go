package jobs

import (
	"context"
	"time"

	"coreshare-backend/internal/logger"
)

// ReconcilePayments polls the gateway for payments still pending after the callback
// should have arrived.
func (jr *JobRunner) ReconcilePayments() {
	jr.runWithRecovery("ReconcilePayments", func(ctx context.Context) {
		cfg := jr.config.Rental
		olderThan := time.Duration(cfg.ReconcileAfterSeconds) * time.Second
		resolved, err := jr.services.Payment.ReconcilePending(ctx, olderThan, int32(cfg.ReconcileBatchSize))
		if err != nil {
			logger.Error("Failed to reconcile pending payments", "error", err)
			return
		}
		logger.Info("Reconciled pending payments", "resolved", resolved)
	})
}

// ExpireStaleApprovals cancels rentals that sat in approval or awaiting payment past the
// approval window, returning their GPUs to the pool.
func (jr *JobRunner) ExpireStaleApprovals() {
	jr.runWithRecovery("ExpireStaleApprovals", func(ctx context.Context) {
		expired, err := jr.services.Rental.ExpirePendingApprovals(ctx, jr.config.ApprovalWindow())
		if err != nil {
			logger.Error("Failed to expire stale approvals", "error", err)
			return
		}
		logger.Info("Expired stale approvals", "count", expired)
	})
}

func (jr *JobRunner) ExpireChatSessions() {
	jr.runWithRecovery("ExpireChatSessions", func(ctx context.Context) {
		if jr.services.Chat == nil {
			logger.Warn("Chat service not configured; skipping session expiry")
			return
		}
		removed := jr.services.Chat.ExpireSessions(jr.now())
		logger.Info("Expired chat sessions", "count", removed)
	})
}
