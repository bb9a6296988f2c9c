package logparse

import (
	"regexp"
	"strings"

	"github.com/tinytelemetry/throwscope/internal/model"
)

// HeaderRegex matches a bracketed or colon-terminated severity marker that
// opens a new record, e.g. "[Exception] ...", "Warning: ..." or the host's
// own "[WRN 12:00:01.500] ..." form with a timestamp inside the brackets.
var HeaderRegex = regexp.MustCompile(`^(?:\[(?i:(LOG|INFO|INF|DEBUG|DBG|TRACE|WARN|WARNING|WRN|ERROR|ERR|FATAL|CRITICAL|ASSERT|ASRT|EXCEPTION|EXC))(?:\s+[^\]]*)?\]\s?|(?i:(LOG|INFO|WARNING|ERROR|ASSERT|EXCEPTION)):\s)(.*)$`)

// ExceptionRegex matches a bare exception header written at column zero,
// e.g. "NullReferenceException: Object reference not set".
var ExceptionRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*Exception(?::\s.*)?$`)

// FrameRegex matches an unindented managed frame such as "Foo.Bar ()" or
// "UnityEngine.Debug:Log(Object)".
var FrameRegex = regexp.MustCompile("^[A-Za-z_][\\w.$<>`+,\\[\\]]*[.:][\\w<>`$]+\\s*\\(.*\\)")

// IsStackFrame reports whether line continues a stack trace: it is indented,
// starts with "at " or has the shape of a managed frame.
func IsStackFrame(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if line[0] == ' ' || line[0] == '\t' {
		return true
	}
	return strings.HasPrefix(trimmed, "at ") || FrameRegex.MatchString(trimmed)
}

// NormalizeSeverity converts severity spellings to a host severity.
// Unknown values fall back to SeverityLog.
func NormalizeSeverity(severity string) model.Severity {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "LOG", "INFO", "INFORMATION", "INF", "DEBUG", "DBG", "TRACE", "TRC":
		return model.SeverityLog
	case "WARN", "WARNING", "WRN":
		return model.SeverityWarning
	case "ERROR", "ERR", "ERRO", "FATAL", "FTL", "CRITICAL", "CRIT":
		return model.SeverityError
	case "ASSERT", "ASRT":
		return model.SeverityAssert
	case "EXCEPTION", "EXC", "PANIC":
		return model.SeverityException
	default:
		if len(normalized) >= 4 {
			switch normalized[:4] {
			case "WARN":
				return model.SeverityWarning
			case "ERRO", "FATA", "CRIT":
				return model.SeverityError
			case "ASSE":
				return model.SeverityAssert
			case "EXCE":
				return model.SeverityException
			}
		}
		return model.SeverityLog
	}
}

// ParseHeader reports whether line opens a new record and, if so, its
// severity and condition text.
func ParseHeader(line string) (model.Severity, string, bool) {
	if m := HeaderRegex.FindStringSubmatch(line); m != nil {
		level := m[1]
		if level == "" {
			level = m[2]
		}
		return NormalizeSeverity(level), m[3], true
	}
	if ExceptionRegex.MatchString(line) {
		return model.SeverityException, line, true
	}
	return model.SeverityLog, "", false
}
