package audit

import "github.com/tinytelemetry/throwscope/internal/model"

// Tee fans every record out to each sink in order. Nil sinks are skipped.
type Tee []model.AuditSink

// Write implements model.AuditSink.
func (t Tee) Write(rec model.AuditRecord) {
	for _, s := range t {
		if s != nil {
			s.Write(rec)
		}
	}
}
