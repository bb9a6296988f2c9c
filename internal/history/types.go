package history

import (
	"time"

	"github.com/tinytelemetry/throwscope/internal/model"
)

// Row is one persisted audit record.
type Row struct {
	RecordedAt time.Time
	RunID      string
	Kind       model.RecordKind
	Severity   string
	Condition  string
	StackTrace string
	Label      string
	// Attribution columns are only set for exception rows.
	Module     string
	Namespace  *string
	Class      string
	Method     string
	ThirdParty bool
}

// RowFromRecord converts an audit record for storage under runID.
func RowFromRecord(runID string, rec model.AuditRecord) Row {
	row := Row{
		RecordedAt: rec.Time,
		RunID:      runID,
		Kind:       rec.Kind,
		Severity:   rec.Severity.String(),
		Condition:  rec.Condition,
		StackTrace: rec.StackTrace,
		Label:      rec.Label,
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = time.Now()
	}
	if a := rec.Attribution; a != nil {
		row.Module = a.Module
		row.Namespace = a.Namespace
		row.Class = a.Class
		row.Method = a.Method
		row.ThirdParty = a.ThirdParty
	}
	return row
}

// QueryOpts narrows history queries.
type QueryOpts struct {
	// RunID restricts results to one run. Empty means all runs.
	RunID string
	// Since restricts results to rows recorded at or after it.
	Since time.Time
}

// MessageCount is one row of TopMessages.
type MessageCount struct {
	Condition string
	Kind      model.RecordKind
	Count     int64
}

// ModuleCount is one row of TopModules.
type ModuleCount struct {
	Module     string
	ThirdParty bool
	Throws     int64
	Methods    int64
}

// RunSummary describes one recorded run.
type RunSummary struct {
	RunID   string
	Started time.Time
	Ended   time.Time
	Records int64
	Throws  int64
}

// RecordWriter persists batches of rows.
type RecordWriter interface {
	InsertBatch(rows []Row) error
}
