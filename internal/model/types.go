package model

import (
	"strings"
	"time"
)

// Severity is the host log level attached to every inbound record.
type Severity int

const (
	SeverityLog Severity = iota
	SeverityWarning
	SeverityError
	SeverityAssert
	SeverityException
)

func (s Severity) String() string {
	switch s {
	case SeverityLog:
		return "Log"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	case SeverityAssert:
		return "Assert"
	case SeverityException:
		return "Exception"
	default:
		return "Unknown"
	}
}

// LogEvent is one record delivered by the producer.
type LogEvent struct {
	Condition  string
	StackTrace string
	Severity   Severity
	Time       time.Time
}

// AttributionKey is the identity of an Attribution. Two attributions with
// the same namespace, class and method are the same key.
type AttributionKey struct {
	Namespace    string
	HasNamespace bool
	Class        string
	Method       string
}

// Attribution names the code location blamed for an exception.
type Attribution struct {
	Module     string
	Namespace  *string // nil when the owning type has no namespace or was not resolved
	Class      string
	Method     string
	ThirdParty bool
}

// Key returns the comparable identity of a.
func (a Attribution) Key() AttributionKey {
	k := AttributionKey{Class: a.Class, Method: a.Method}
	if a.Namespace != nil {
		k.Namespace = *a.Namespace
		k.HasNamespace = true
	}
	return k
}

// QualifiedName renders namespace.class.method, omitting a missing namespace.
func (a Attribution) QualifiedName() string {
	parts := make([]string, 0, 3)
	if a.Namespace != nil && *a.Namespace != "" {
		parts = append(parts, *a.Namespace)
	}
	if a.Class != "" {
		parts = append(parts, a.Class)
	}
	if a.Method != "" {
		parts = append(parts, a.Method)
	}
	return strings.Join(parts, ".")
}

// TypeInfo describes one exported type of a loaded module.
type TypeInfo struct {
	FullName   string
	Namespace  string
	Name       string
	ModuleName string
	ModulePath string
}

// RecordKind classifies an audit record by the pipeline branch that emitted it.
type RecordKind string

const (
	RecordInfo       RecordKind = "info"
	RecordKnownNoise RecordKind = "known-noise"
	RecordCorrelated RecordKind = "correlated"
	RecordSinglePass RecordKind = "single-pass"
	RecordUnmatched  RecordKind = "unmatched"
	RecordException  RecordKind = "exception"
	RecordFault      RecordKind = "fault"
)

// AuditRecord is one logical entry appended to the audit sink.
type AuditRecord struct {
	Time       time.Time
	Kind       RecordKind
	Severity   Severity
	Condition  string
	StackTrace string
	Label      string
	// Attribution is set on exception records once the stack has been blamed.
	Attribution *Attribution
}

// TopEntry is one row of the "top issues" ranking.
type TopEntry struct {
	Rank        int
	Label       string
	Count       uint64
	Placeholder bool
}

// MethodThrows is the throw count of one attributed method.
type MethodThrows struct {
	Attribution Attribution
	Count       uint64
}

// ModuleThrows groups method throw counts under their module.
type ModuleThrows struct {
	Module  string
	Total   uint64
	Methods []MethodThrows
}

// PatternCount is one mined message template with the occurrences of every
// message it covers.
type PatternCount struct {
	Template   string
	Count      uint64
	Percentage float64
}

// Snapshot is the read-only projection pulled by the presentation layer.
type Snapshot struct {
	Taken           time.Time
	Window          time.Duration
	ThrowsPerSecond float64
	TotalThrows     uint64
	TopEntries      []TopEntry
	Modules         []ModuleThrows
	// Patterns is empty unless the producer mines templates.
	Patterns []PatternCount
}
