package model

import "time"

// AuditSink receives every emitted record. Implementations must not fail the caller.
type AuditSink interface {
	Write(rec AuditRecord)
}

// SnapshotSource is the consumer contract: a periodic read-only pull.
type SnapshotSource interface {
	Snapshot(window time.Duration, topN int) Snapshot
}

// Clock abstracts wall time so window arithmetic is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
