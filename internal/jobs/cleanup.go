package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/screenscape/sync-server-go/internal/metrics"
)

const cleanupTimeout = 30 * time.Second

// Sweeper is implemented by every store.Store.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob removes expired link codes, sessions and user data from stores
// that do not expire keys on their own.
type CleanupJob struct {
	sweeper  Sweeper
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewCleanupJob(sweeper Sweeper, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sweeper:  sweeper,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop waits for an in-flight sweep to finish. Safe to call more than once.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		<-j.stopped
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if _, err := RunOnce(ctx, j.sweeper); err != nil {
		log.Error().Err(err).Msg("failed to cleanup expired entries")
	}
}

// RunOnce performs a single sweep.
func RunOnce(ctx context.Context, sweeper Sweeper) (int64, error) {
	count, err := sweeper.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		metrics.ExpiredEntriesDeleted.Add(float64(count))
		log.Info().Int64("count", count).Msg("cleaned up expired entries")
	}
	return count, nil
}
