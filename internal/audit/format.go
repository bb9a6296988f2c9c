package audit

import (
	"strings"

	"github.com/tinytelemetry/throwscope/internal/model"
)

const (
	correlatedMarker = "*TS*\t"
	exceptionTrailer = "TS-EXCEPTION****\n\n\n"
)

// Format renders one audit record as it appears in the audit file.
func Format(rec model.AuditRecord) string {
	var sb strings.Builder
	switch rec.Kind {
	case model.RecordCorrelated, model.RecordSinglePass:
		sb.WriteString(correlatedMarker)
		sb.WriteString(rec.Condition)
		sb.WriteString("\n\n")

	case model.RecordException:
		writeField(&sb, "Condition", rec.Condition)
		writeField(&sb, "StackTrace", rec.StackTrace)
		if rec.Attribution != nil {
			writeField(&sb, "Blame", rec.Attribution.Module+" "+rec.Attribution.QualifiedName())
		}
		sb.WriteString("\n")
		writeField(&sb, "LogType", "**"+rec.Severity.String())
		sb.WriteString(exceptionTrailer)

	case model.RecordFault:
		writeField(&sb, "Fault", rec.Condition)

	default:
		writeField(&sb, "Condition", rec.Condition)
		if rec.StackTrace != "" {
			writeField(&sb, "StackTrace", rec.StackTrace)
		}
		writeField(&sb, "LogType", rec.Severity.String())
		if rec.Kind == model.RecordUnmatched {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func writeField(sb *strings.Builder, name, value string) {
	sb.WriteString(name)
	sb.WriteString(":\t")
	sb.WriteString(strings.TrimRight(value, "\n"))
	sb.WriteString("\n")
}
