package scheduler

import (
	"context"
	"fmt"

	"eventcover_backend/platform/config"
	"eventcover_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuoteSweeper expires stale quotes. Implemented by the quotes service.
type QuoteSweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	pool    *pgxpool.Pool
	sweeper QuoteSweeper
	backup  *Backup
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		pool:   pool,
		log:    log,
	}

	mux.HandleFunc(TaskExpireStaleQuotes, w.handleExpireStaleQuotes)
	mux.HandleFunc(TaskNightlyBackup, w.handleNightlyBackup)

	return w, nil
}

// SetQuoteSweeper wires the quote expiration collaborator.
func (w *Worker) SetQuoteSweeper(sweeper QuoteSweeper) {
	w.sweeper = sweeper
}

// SetBackup wires the nightly table export job.
func (w *Worker) SetBackup(b *Backup) {
	w.backup = b
}

func (w *Worker) handleExpireStaleQuotes(ctx context.Context, task *asynq.Task) error {
	if w.sweeper == nil {
		return nil
	}

	payload, err := ParseExpireStaleQuotesPayload(task)
	if err != nil {
		return err
	}

	count, err := w.sweeper.ExpireStale(ctx)
	w.log.JobEvent(TaskExpireStaleQuotes, count, err)
	if err != nil {
		return fmt.Errorf("expire stale quotes: %w", err)
	}
	if count > 0 {
		w.log.Info("expired stale quotes", "count", count, "requestedBy", payload.RequestedBy)
	}
	return nil
}

func (w *Worker) handleNightlyBackup(ctx context.Context, task *asynq.Task) error {
	if w.backup == nil {
		return nil
	}

	payload, err := ParseNightlyBackupPayload(task)
	if err != nil {
		return err
	}

	exported, err := w.backup.Run(ctx, payload.Tables)
	w.log.JobEvent(TaskNightlyBackup, exported, err)
	if err != nil {
		return fmt.Errorf("nightly backup: %w", err)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
