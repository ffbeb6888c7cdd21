package scheduler

import (
	"context"
	"time"

	"eventcover_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	defaultSweepInterval  = time.Hour
	defaultBackupInterval = 24 * time.Hour
)

// Periodic enqueues the recurring jobs: the hourly quote expiration sweep and
// the nightly table export. Asynq deduplicates nothing here; both handlers are
// idempotent so an overlapping run is harmless.
type Periodic struct {
	client         *Client
	log            *logger.Logger
	sweepInterval  time.Duration
	backupInterval time.Duration
}

func NewPeriodic(client *Client, log *logger.Logger, sweepInterval, backupInterval time.Duration) *Periodic {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if backupInterval <= 0 {
		backupInterval = defaultBackupInterval
	}

	return &Periodic{
		client:         client,
		log:            log,
		sweepInterval:  sweepInterval,
		backupInterval: backupInterval,
	}
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.client == nil {
		return
	}

	p.enqueueSweep(ctx)

	sweep := time.NewTicker(p.sweepInterval)
	defer sweep.Stop()
	backup := time.NewTicker(p.backupInterval)
	defer backup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			p.enqueueSweep(ctx)
		case <-backup.C:
			p.enqueueBackup(ctx)
		}
	}
}

func (p *Periodic) enqueueSweep(ctx context.Context) {
	task, err := NewExpireStaleQuotesTask(ExpireStaleQuotesPayload{RequestedBy: "scheduler"})
	if err != nil {
		p.log.Warn("failed to build sweep task", "error", err)
		return
	}
	if _, err := p.client.client.EnqueueContext(ctx, task, asynq.Queue(p.client.queue)); err != nil {
		p.log.Warn("failed to enqueue sweep task", "error", err)
	}
}

func (p *Periodic) enqueueBackup(ctx context.Context) {
	task, err := NewNightlyBackupTask(NightlyBackupPayload{})
	if err != nil {
		p.log.Warn("failed to build backup task", "error", err)
		return
	}
	if _, err := p.client.client.EnqueueContext(ctx, task, asynq.Queue(p.client.queue)); err != nil {
		p.log.Warn("failed to enqueue backup task", "error", err)
	}
}
