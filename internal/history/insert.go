package history

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/model"
)

const (
	// DefaultBatchSize is the number of rows that triggers an immediate flush.
	DefaultBatchSize = 500
	// DefaultFlushInterval is the periodic flush cadence.
	DefaultFlushInterval = 250 * time.Millisecond
	// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
	DefaultFlushQueueSize = 64
)

// InsertBuffer batches audit records and flushes them to the store
// asynchronously. Write never blocks on DuckDB IO unless the flush queue is
// full, in which case the batch is flushed inline.
type InsertBuffer struct {
	writer        RecordWriter
	runID         string
	logger        *zap.Logger
	mu            sync.Mutex
	pending       []Row
	flushChan     chan []Row
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	stopOnce      sync.Once
	stopped       atomic.Bool

	// sendMu guards flushChan against sends after close.
	sendMu sync.RWMutex
	closed bool

	written           atomic.Uint64
	failed            atomic.Uint64
	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64 // unix timestamp of last backpressure log
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
	Logger         *zap.Logger
}

// NewInsertBuffer creates a buffer tagging rows with runID.
func NewInsertBuffer(writer RecordWriter, runID string, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := DefaultBatchSize
	flushInterval := DefaultFlushInterval
	flushQueueSize := DefaultFlushQueueSize
	logger := zap.NewNop()
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
		if conf[0].Logger != nil {
			logger = conf[0].Logger
		}
	}

	b := &InsertBuffer{
		writer:        writer,
		runID:         runID,
		logger:        logger,
		pending:       make([]Row, 0, batchSize),
		flushChan:     make(chan []Row, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending() // final drain
			return
		}
	}
}

// logBackpressure emits a throttled warning, at most once per 10 seconds.
func (b *InsertBuffer) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		b.logger.Warn("history: backpressure, flushing inline", zap.Int64("inline_flushes", count))
	}
}

func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]Row, 0, b.maxBatch)
	b.mu.Unlock()

	b.enqueue(batch)
}

func (b *InsertBuffer) enqueue(batch []Row) {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed {
		b.flushBatch(batch)
		return
	}
	select {
	case b.flushChan <- batch:
	default:
		b.logBackpressure()
		b.flushBatch(batch)
	}
}

func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		b.flushBatch(batch)
	}
}

// Write implements model.AuditSink. Records written after Stop are dropped.
func (b *InsertBuffer) Write(rec model.AuditRecord) {
	b.Add(RowFromRecord(b.runID, rec))
}

// Add queues a row for batch insertion.
func (b *InsertBuffer) Add(row Row) {
	if b.stopped.Load() {
		b.failed.Add(1)
		return
	}
	if row.RunID == "" {
		row.RunID = b.runID
	}

	b.mu.Lock()
	b.pending = append(b.pending, row)
	var batch []Row
	if len(b.pending) >= b.maxBatch {
		batch = b.pending
		b.pending = make([]Row, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if batch != nil {
		b.enqueue(batch)
	}
}

// Stop flushes remaining rows and waits for all writes to complete.
func (b *InsertBuffer) Stop() {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.done)
		// tickLoop's final drain must land before flushChan closes.
		b.tickWg.Wait()
		b.sendMu.Lock()
		b.closed = true
		close(b.flushChan)
		b.sendMu.Unlock()
		b.wg.Wait()
		b.logger.Debug("history: insert buffer stopped",
			zap.Uint64("written", b.written.Load()),
			zap.Uint64("failed", b.failed.Load()))
	})
}

// Written returns the number of rows persisted.
func (b *InsertBuffer) Written() uint64 { return b.written.Load() }

// Failed returns the number of rows that could not be persisted.
func (b *InsertBuffer) Failed() uint64 { return b.failed.Load() }

func (b *InsertBuffer) flushBatch(batch []Row) {
	if len(batch) == 0 {
		return
	}
	if err := b.writer.InsertBatch(batch); err != nil {
		b.failed.Add(uint64(len(batch)))
		b.logger.Error("history: flush failed", zap.Int("rows", len(batch)), zap.Error(err))
		return
	}
	b.written.Add(uint64(len(batch)))
}

// InsertBatch appends rows in a single transaction. If the batch fails it is
// retried row by row and rows that still fail are dropped.
func (s *Store) InsertBatch(rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.insertBatchTx(ctx, rows)
	if err == nil {
		return nil
	}

	var failed int
	var lastErr error
	for _, r := range rows {
		if rerr := s.insertBatchTx(ctx, []Row{r}); rerr != nil {
			failed++
			lastErr = rerr
			s.logger.Warn("history: dropping row",
				zap.String("kind", string(r.Kind)),
				zap.String("condition", truncate(r.Condition, 80)),
				zap.Error(rerr))
		}
	}
	if failed == len(rows) {
		return fmt.Errorf("history: insert batch: %w", lastErr)
	}
	if failed > 0 {
		s.logger.Warn("history: batch partially failed", zap.Int("dropped", failed), zap.Int("rows", len(rows)))
	}
	return nil
}

func (s *Store) insertBatchTx(ctx context.Context, rows []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO audit_records
		(recorded_at, run_id, kind, severity, condition, stack_trace, label, module, namespace, class, method, third_party)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		var module, namespace, class, method, thirdParty any
		if r.Module != "" {
			module, class, method, thirdParty = r.Module, r.Class, r.Method, r.ThirdParty
			if r.Namespace != nil {
				namespace = *r.Namespace
			}
		}
		if _, err := stmt.ExecContext(ctx,
			r.RecordedAt, r.RunID, string(r.Kind), r.Severity, r.Condition,
			r.StackTrace, r.Label, module, namespace, class, method, thirdParty,
		); err != nil {
			return fmt.Errorf("row insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
