package async_indexer

import (
	"context"
	"time"

	"github.com/apologystake/stake-server/pkg/metrics"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

const (
	sweepWorkerStatusEventName = "ApologyIndexerSweepWorkerPollingCheck"
	apologyCountEventName      = "ApologyIndexerApologyCountPollingCheck"
)

func (p *service) metricsGaugeWorker(ctx context.Context) error {
	delay := time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			start := time.Now()

			p.recordSweepWorkerStatusPollingEvent(ctx)
			p.recordApologyCountPollingEvent(ctx)

			delay = time.Second - time.Since(start)
		}
	}
}

func (p *service) recordSweepWorkerStatusPollingEvent(ctx context.Context) {
	p.metricStatusLock.Lock()
	defer p.metricStatusLock.Unlock()

	metrics.RecordEvent(ctx, sweepWorkerStatusEventName, map[string]interface{}{
		"is_active":         p.sweepWorkerStatus,
		"last_sweep_slot":   p.lastSweepSlot,
		"last_sweep_size":   p.lastSweepSize,
		"updates_processed": p.updatesProcessed,
		"updates_failed":    p.updatesFailed,
	})

	p.updatesProcessed = 0
	p.updatesFailed = 0
}

func (p *service) recordApologyCountPollingEvent(ctx context.Context) {
	for _, status := range []apologystake.ApologyStatus{
		apologystake.ApologyStatusActive,
		apologystake.ApologyStatusCompleted,
	} {
		count, err := p.data.GetApologyCountByStatus(ctx, status)
		if err != nil {
			continue
		}

		metrics.RecordEvent(ctx, apologyCountEventName, map[string]interface{}{
			"status": status.String(),
			"count":  count,
		})
	}
}
