package history

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	Logger        *zap.Logger
}

// RetentionCleaner periodically deletes rows older than the retention period.
type RetentionCleaner struct {
	store         *Store
	retentionDays int
	logger        *zap.Logger
	now           func() time.Time
	done          chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewRetentionCleaner starts a cleaner. It returns nil when retention is
// disabled (zero or negative days).
func NewRetentionCleaner(store *Store, conf RetentionConfig) *RetentionCleaner {
	if conf.RetentionDays <= 0 {
		return nil
	}
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := &RetentionCleaner{
		store:         store,
		retentionDays: conf.RetentionDays,
		logger:        logger,
		now:           time.Now,
		done:          make(chan struct{}),
	}

	// Catch up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()
	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() int64 {
	cutoff := rc.now().Add(-time.Duration(rc.retentionDays) * 24 * time.Hour)
	n, err := rc.store.DeleteBefore(cutoff)
	if err != nil {
		rc.logger.Warn("history: retention cleanup failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		rc.logger.Info("history: retention cleanup", zap.Int64("deleted", n), zap.Int("retention_days", rc.retentionDays))
	}
	return n
}

// Stop signals the cleaner to stop and waits for it to finish. Safe on nil.
func (rc *RetentionCleaner) Stop() {
	if rc == nil {
		return
	}
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
