package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/throwscope/internal/model"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestNewFileSinkRejectsEmptyPath(t *testing.T) {
	_, err := NewFileSink("  ", nil)
	require.Error(t, err)
}

func TestInitTruncatesAndWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale contents\n"), 0o644))

	s, err := NewFileSink(path, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Init("/game/GameData"))

	got := readFile(t, path)
	assert.NotContains(t, got, "stale")
	assert.True(t, strings.HasPrefix(got, "2024-05-01T12:00:00Z\n/game/GameData\nRun:\t"+s.RunID()+"\n"))
	assert.NotEmpty(t, s.RunID())
}

func TestWriteAppendsEachRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	s, err := NewFileSink(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Init(""))

	s.Write(model.AuditRecord{Kind: model.RecordUnmatched, Severity: model.SeverityError, Condition: "first", StackTrace: "A.B ()\n"})
	after1 := readFile(t, path)
	s.Write(model.AuditRecord{Kind: model.RecordSinglePass, Severity: model.SeverityWarning, Condition: "second"})
	after2 := readFile(t, path)

	assert.True(t, strings.HasPrefix(after2, after1), "writes only append")
	assert.Contains(t, after1, "Condition:\tfirst\nStackTrace:\tA.B ()\nLogType:\tError\n")
	assert.Contains(t, after2, "*TS*\tsecond\n")
	assert.Zero(t, s.Dropped())
}

func TestWriteDropsWhenFileCannotBeOpened(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "audit.log")
	s, err := NewFileSink(path, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		s.Write(model.AuditRecord{Kind: model.RecordInfo, Condition: "lost"})
	})
	assert.Equal(t, uint64(1), s.Dropped())
}

func TestFormat(t *testing.T) {
	ns := "MuMech"
	tests := []struct {
		name string
		rec  model.AuditRecord
		want string
	}{
		{
			name: "correlated",
			rec:  model.AuditRecord{Kind: model.RecordCorrelated, Condition: "loading part X--> bad"},
			want: "*TS*\tloading part X--> bad\n\n",
		},
		{
			name: "info without stack",
			rec:  model.AuditRecord{Kind: model.RecordInfo, Severity: model.SeverityLog, Condition: "hello"},
			want: "Condition:\thello\nLogType:\tLog\n",
		},
		{
			name: "exception with blame",
			rec: model.AuditRecord{
				Kind:        model.RecordException,
				Severity:    model.SeverityException,
				Condition:   "NullReferenceException",
				StackTrace:  "MuMech.Core.Tick ()\n",
				Attribution: &model.Attribution{Module: "MechJeb2", Namespace: &ns, Class: "Core", Method: "Tick"},
			},
			want: "Condition:\tNullReferenceException\nStackTrace:\tMuMech.Core.Tick ()\nBlame:\tMechJeb2 MuMech.Core.Tick\n\nLogType:\t**Exception\nTS-EXCEPTION****\n\n\n",
		},
		{
			name: "fault",
			rec:  model.AuditRecord{Kind: model.RecordFault, Condition: "disk full"},
			want: "Fault:\tdisk full\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.rec))
		})
	}
}

type countingSink struct{ n int }

func (c *countingSink) Write(model.AuditRecord) { c.n++ }

func TestTee(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	tee := Tee{a, nil, b}
	tee.Write(model.AuditRecord{})
	tee.Write(model.AuditRecord{})
	assert.Equal(t, 2, a.n)
	assert.Equal(t, 2, b.n)
}
