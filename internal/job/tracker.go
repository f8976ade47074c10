package job

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tracker keeps the latest snapshot of every job this process has handled
type Tracker struct {
	logger *zap.Logger
	mu     sync.RWMutex
	jobs   map[string]Job
}

// NewTracker creates an empty tracker
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		logger: logger,
		jobs:   make(map[string]Job),
	}
}

// Record stores a copy of j
func (t *Tracker) Record(j *Job) {
	if t == nil || j == nil {
		return
	}
	t.mu.Lock()
	t.jobs[j.ID] = *j
	t.mu.Unlock()

	t.logger.Debug("Job snapshot recorded",
		zap.String("job_id", j.ID),
		zap.String("status", string(j.Status)),
	)
}

// Get returns the last recorded snapshot for id
func (t *Tracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	return j, ok
}

// Prune drops terminal jobs last updated before now-olderThan
func (t *Tracker) Prune(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	t.mu.Lock()
	count := 0
	for id, j := range t.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(t.jobs, id)
			count++
		}
	}
	t.mu.Unlock()

	if count > 0 {
		t.logger.Info("Pruned job snapshots",
			zap.Int("count", count),
			zap.Duration("older_than", olderThan),
		)
	}
	return count
}
