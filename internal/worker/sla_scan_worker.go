package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edutech-ops/chromebook-helpdesk/internal/observability"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository"
	"github.com/edutech-ops/chromebook-helpdesk/internal/service"
)

// Scanner runs one SLA violation scan.
type Scanner interface {
	ScanViolations(ctx context.Context) (*service.ScanResult, error)
}

// SLAScanWorker triggers the violation scan on a fixed interval. The scan lock
// keeps replicas from scanning concurrently.
type SLAScanWorker struct {
	scanner  Scanner
	lock     repository.ScanLock
	interval time.Duration
	lockTTL  time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewSLAScanWorker builds the worker. A nil lock always scans.
func NewSLAScanWorker(scanner Scanner, lock repository.ScanLock, interval, lockTTL time.Duration, metrics *observability.Metrics, logger *zap.Logger) *SLAScanWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAScanWorker{
		scanner:  scanner,
		lock:     lock,
		interval: interval,
		lockTTL:  lockTTL,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. A non-positive interval disables the worker.
func (w *SLAScanWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("sla scan worker disabled")
		return
	}
	w.logger.Info("sla scan worker started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla scan worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single guarded scan and reports whether it ran.
func (w *SLAScanWorker) RunOnce(ctx context.Context) bool {
	if w.lock != nil {
		release, acquired, err := w.lock.Acquire(ctx, w.lockTTL)
		switch {
		case err != nil:
			w.logger.Warn("sla scan lock unavailable, scanning anyway", zap.Error(err))
		case !acquired:
			w.logger.Debug("sla scan skipped, lock held elsewhere")
			return false
		default:
			defer release()
		}
	}

	result, err := w.scanner.ScanViolations(ctx)
	if err != nil {
		w.logger.Error("periodic sla scan failed", zap.Error(err))
		return false
	}
	w.metrics.RecordSLAScan(time.Now(), result.ViolationsFound, result.CriticalIssues)
	return true
}
