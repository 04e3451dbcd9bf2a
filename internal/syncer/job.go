package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avelichko/clip-keeper/internal/bookmarks"
	"github.com/avelichko/clip-keeper/internal/logger"
)

// Job triggers sync runs on a fixed interval. Overlapping ticks are
// harmless: the orchestrator rejects a trigger while a run is active and
// the job just waits for the next tick.
type Job struct {
	orchestrator *Orchestrator
	bookmarks    *bookmarks.Syncer
	interval     time.Duration
	logger       *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJob builds a periodic sync job. bk may be nil to skip bookmark
// syncing; a non-positive interval defaults to five minutes.
func NewJob(o *Orchestrator, bk *bookmarks.Syncer, interval time.Duration, log *logger.Logger) *Job {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Job{orchestrator: o, bookmarks: bk, interval: interval, logger: log}
}

// Start launches the background loop. Calling Start on a running job is a
// no-op. The first run fires immediately, then on every interval tick.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go j.loop(ctx)
}

// Stop terminates the loop and waits for an in-flight run to return.
func (j *Job) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	j.wg.Wait()
}

func (j *Job) loop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *Job) runOnce(ctx context.Context) {
	report, err := j.orchestrator.Run(ctx)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		j.logger.Debug().Msg("previous sync still running, skipping tick")
	case err != nil:
		j.logger.Error().Err(err).Msg("scheduled sync failed")
	default:
		j.logger.Debug().
			Int("uploaded", report.Uploaded).
			Int("downloaded", report.Downloaded).
			Int("errors", len(report.Errors)).
			Msg("scheduled sync completed")
	}

	if j.bookmarks != nil {
		if _, err := j.bookmarks.SyncLocal(ctx); err != nil {
			j.logger.Warn().Err(err).Msg("bookmark sync failed")
		}
	}
}
