package syncstate

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PollJob refetches every registered cache key that has gone stale.
// It runs on a fixed schedule regardless of whether any consumer is
// currently reading, so views reconnecting after idling see recent data.
type PollJob struct {
	cache   *Cache
	onCycle func() // invoked after each completed cycle; may be nil
	log     zerolog.Logger
}

// NewPollJob creates the polling job. onCycle runs after every cycle in
// which at least one key was refreshed (used to recompute derived metrics
// and notify stream subscribers).
func NewPollJob(cache *Cache, onCycle func(), log zerolog.Logger) *PollJob {
	return &PollJob{
		cache:   cache,
		onCycle: onCycle,
		log:     log.With().Str("job", "collection_sync").Logger(),
	}
}

// Run refreshes all stale keys. A failed refresh is logged and skipped;
// the remaining keys still refresh (partial success is fine).
func (j *PollJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	refreshed := 0
	failed := 0
	for _, key := range j.cache.Keys() {
		_, state, _ := j.cache.Peek(key)
		if state == StateFresh || state == StateFetching {
			continue
		}
		if err := j.cache.Refresh(ctx, key); err != nil {
			j.log.Warn().Err(err).Str("key", key).Msg("Refresh failed")
			failed++
			continue
		}
		refreshed++
	}

	if refreshed > 0 || failed > 0 {
		j.log.Debug().
			Int("refreshed", refreshed).
			Int("failed", failed).
			Msg("Sync cycle completed")
	}

	if refreshed > 0 && j.onCycle != nil {
		j.onCycle()
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *PollJob) Name() string {
	return "collection_sync"
}
