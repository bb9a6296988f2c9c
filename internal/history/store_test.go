package history

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/throwscope/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func exceptionRecord(condition, module, method string, at time.Time) model.AuditRecord {
	ns := "MuMech"
	return model.AuditRecord{
		Time:      at,
		Kind:      model.RecordException,
		Severity:  model.SeverityException,
		Condition: condition,
		Attribution: &model.Attribution{
			Module: module, Namespace: &ns, Class: "Core", Method: method, ThirdParty: true,
		},
	}
}

func TestInsertBatchAndQueries(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	rows := []Row{
		RowFromRecord("run-1", exceptionRecord("NullReferenceException", "MechJeb2", "Tick", now)),
		RowFromRecord("run-1", exceptionRecord("NullReferenceException", "MechJeb2", "Draw", now)),
		RowFromRecord("run-1", exceptionRecord("IndexOutOfRangeException", "Kopernicus", "Load", now)),
		RowFromRecord("run-1", model.AuditRecord{Time: now, Kind: model.RecordUnmatched, Severity: model.SeverityError, Condition: "texture missing"}),
		RowFromRecord("run-2", model.AuditRecord{Time: now, Kind: model.RecordFault, Condition: "dispatch fault"}),
	}
	require.NoError(t, store.InsertBatch(rows))

	count, err := store.RecordCount(QueryOpts{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	count, err = store.RecordCount(QueryOpts{RunID: "run-2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	msgs, err := store.TopMessages(2, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "NullReferenceException", msgs[0].Condition)
	assert.Equal(t, int64(2), msgs[0].Count)
	assert.Equal(t, model.RecordException, msgs[0].Kind)

	mods, err := store.TopModules(5, QueryOpts{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "MechJeb2", mods[0].Module)
	assert.Equal(t, int64(2), mods[0].Throws)
	assert.Equal(t, int64(2), mods[0].Methods)
	assert.True(t, mods[0].ThirdParty)

	runs, err := store.Runs(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestQuerySince(t *testing.T) {
	store := newTestStore(t)
	old := time.Now().Add(-48 * time.Hour).UTC()
	recent := time.Now().UTC()

	require.NoError(t, store.InsertBatch([]Row{
		RowFromRecord("r", model.AuditRecord{Time: old, Kind: model.RecordUnmatched, Condition: "old"}),
		RowFromRecord("r", model.AuditRecord{Time: recent, Kind: model.RecordUnmatched, Condition: "new"}),
	}))

	count, err := store.RecordCount(QueryOpts{Since: recent.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	deleted, err := store.DeleteBefore(recent.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRowFromRecordWithoutAttribution(t *testing.T) {
	row := RowFromRecord("run", model.AuditRecord{Kind: model.RecordInfo, Severity: model.SeverityLog, Condition: "hello"})
	assert.Empty(t, row.Module)
	assert.Nil(t, row.Namespace)
	assert.Equal(t, "Log", row.Severity)
	assert.False(t, row.RecordedAt.IsZero())
}

func TestInsertBufferFlushesOnStop(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store, "run-stop", InsertBufferConfig{FlushInterval: time.Hour})

	for i := 0; i < 10; i++ {
		buf.Write(model.AuditRecord{Kind: model.RecordUnmatched, Severity: model.SeverityError, Condition: "buffered"})
	}
	buf.Stop()
	buf.Stop()

	count, err := store.RecordCount(QueryOpts{RunID: "run-stop"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)
	assert.Equal(t, uint64(10), buf.Written())
}

func TestInsertBufferBatchThreshold(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store, "run-batch", InsertBufferConfig{BatchSize: 7, FlushInterval: time.Hour})

	for i := 0; i < 30; i++ {
		buf.Write(model.AuditRecord{Kind: model.RecordUnmatched, Condition: "batch"})
	}
	buf.Stop()

	count, err := store.RecordCount(QueryOpts{})
	require.NoError(t, err)
	assert.Equal(t, int64(30), count)
}

func TestInsertBufferConcurrentWrite(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store, "run-conc", InsertBufferConfig{BatchSize: 16})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				buf.Write(model.AuditRecord{Kind: model.RecordUnmatched, Condition: "concurrent"})
			}
		}()
	}
	wg.Wait()
	buf.Stop()

	count, err := store.RecordCount(QueryOpts{})
	require.NoError(t, err)
	assert.Equal(t, int64(200), count)
}

func TestInsertBufferDropsAfterStop(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store, "run")
	buf.Stop()

	buf.Write(model.AuditRecord{Kind: model.RecordInfo, Condition: "late"})
	assert.Equal(t, uint64(1), buf.Failed())
}

type failingWriter struct{}

func (failingWriter) InsertBatch([]Row) error { return errors.New("disk full") }

func TestInsertBufferCountsFailures(t *testing.T) {
	buf := NewInsertBuffer(failingWriter{}, "run", InsertBufferConfig{BatchSize: 2})
	for i := 0; i < 3; i++ {
		buf.Write(model.AuditRecord{Kind: model.RecordInfo})
	}
	buf.Stop()
	assert.Equal(t, uint64(3), buf.Failed())
	assert.Zero(t, buf.Written())
}

func TestRetentionCleaner(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.InsertBatch([]Row{
		RowFromRecord("r", model.AuditRecord{Time: time.Now().Add(-72 * time.Hour), Kind: model.RecordInfo, Condition: "expired"}),
		RowFromRecord("r", model.AuditRecord{Time: time.Now(), Kind: model.RecordInfo, Condition: "kept"}),
	}))

	assert.Nil(t, NewRetentionCleaner(store, RetentionConfig{}))

	rc := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 1})
	require.NotNil(t, rc)
	rc.Stop()
	rc.Stop()

	count, err := store.RecordCount(QueryOpts{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var nilCleaner *RetentionCleaner
	assert.NotPanics(t, nilCleaner.Stop)
}
