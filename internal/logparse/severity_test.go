package logparse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinytelemetry/throwscope/internal/model"
)

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected model.Severity
	}{
		// Standard forms
		{"LOG", model.SeverityLog}, {"WARNING", model.SeverityWarning},
		{"ERROR", model.SeverityError}, {"ASSERT", model.SeverityAssert},
		{"EXCEPTION", model.SeverityException},
		// Variants
		{"INFO", model.SeverityLog}, {"DEBUG", model.SeverityLog},
		{"WARN", model.SeverityWarning}, {"ERR", model.SeverityError},
		{"WRN", model.SeverityWarning}, {"EXC", model.SeverityException},
		{"FATAL", model.SeverityError}, {"CRITICAL", model.SeverityError},
		{"PANIC", model.SeverityException},
		// Case insensitive
		{"exception", model.SeverityException}, {"warning", model.SeverityWarning},
		// Prefix matching
		{"WARNING_LEVEL", model.SeverityWarning}, {"EXCEPTIONAL", model.SeverityException},
		// Unknown defaults to Log
		{"", model.SeverityLog}, {"foo", model.SeverityLog},
		// Whitespace
		{"  Error  ", model.SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSeverity(tt.input), "NormalizeSeverity(%q)", tt.input)
		})
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		line      string
		ok        bool
		severity  model.Severity
		condition string
	}{
		{"[Exception] NullReferenceException: boom", true, model.SeverityException, "NullReferenceException: boom"},
		{"[Error] texture missing", true, model.SeverityError, "texture missing"},
		{"[WRN]", true, model.SeverityWarning, ""},
		{"[LOG 12:00:01.000] PartLoader: Compiling Part 'Squad/Parts/mk1pod'", true, model.SeverityLog, "PartLoader: Compiling Part 'Squad/Parts/mk1pod'"},
		{"[WRN 12:00:01.500] [Vessel] no module found", true, model.SeverityWarning, "[Vessel] no module found"},
		{"[ERR 12:00:02.000] Cannot find texture", true, model.SeverityError, "Cannot find texture"},
		{"[EXC 12:00:02.100] NullReferenceException: Object reference not set", true, model.SeverityException, "NullReferenceException: Object reference not set"},
		{"[Logger] not a level", false, model.SeverityLog, ""},
		{"[WRNX 12:00] not a level", false, model.SeverityLog, ""},
		{"[Log] loading part X", true, model.SeverityLog, "loading part X"},
		{"Warning: config node empty", true, model.SeverityWarning, "config node empty"},
		{"NullReferenceException: Object reference not set", true, model.SeverityException, "NullReferenceException: Object reference not set"},
		{"System.IO.IOException", true, model.SeverityException, "System.IO.IOException"},
		{"  at Foo.Bar () [0x00000]", false, model.SeverityLog, ""},
		{"PartLoader.Compile (args)", false, model.SeverityLog, ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			sev, cond, ok := ParseHeader(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.severity, sev)
				assert.Equal(t, tt.condition, cond)
			}
		})
	}
}

func TestIsStackFrame(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"  at Foo.Bar () [0x00000]", true},
		{"\tPartLoader.CompileParts ()", true},
		{"at MuMech.MechJebCore.FixedUpdate ()", true},
		{"Foo.Bar ()", true},
		{"UnityEngine.Debug:Log(Object)", true},
		{"MuMech.Vessel`1.Update (System.Single dt)", true},
		{"just some output", false},
		{"PartLoader: compiling parts", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStackFrame(tt.line))
		})
	}
}
