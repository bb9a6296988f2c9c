package modclass

import (
	"path/filepath"
	"strings"
)

// Canonical buckets a raw module identity can fold into.
const (
	Runtime    = "runtime"
	Platform   = "platform"
	FirstParty = "first-party"
	Unknown    = "unknown"
)

// Default module name tables, lower-case and without file extension.
var (
	DefaultRuntime    = []string{"mscorlib", "system", "system.core", "mono.security"}
	DefaultPlatform   = []string{"unityengine", "unityengine.networking", "unityengine.ui", "unityengine.coremodule"}
	DefaultFirstParty = []string{"assembly-csharp", "assembly-csharp-firstpass", "kspassets"}
)

// Tables configures which raw module names belong to each bucket.
type Tables struct {
	Runtime    []string
	Platform   []string
	FirstParty []string
}

// DefaultTables returns the built-in bucket tables.
func DefaultTables() Tables {
	return Tables{
		Runtime:    append([]string(nil), DefaultRuntime...),
		Platform:   append([]string(nil), DefaultPlatform...),
		FirstParty: append([]string(nil), DefaultFirstParty...),
	}
}

// Classifier maps a module identity to its canonical bucket. It is
// immutable after construction and safe for concurrent use.
type Classifier struct {
	buckets map[string]string
}

// New builds a Classifier. Empty tables fall back to the defaults.
func New(t Tables) *Classifier {
	def := DefaultTables()
	if len(t.Runtime) == 0 {
		t.Runtime = def.Runtime
	}
	if len(t.Platform) == 0 {
		t.Platform = def.Platform
	}
	if len(t.FirstParty) == 0 {
		t.FirstParty = def.FirstParty
	}

	c := &Classifier{buckets: make(map[string]string)}
	add := func(names []string, bucket string) {
		for _, n := range names {
			c.buckets[normalize(n)] = bucket
		}
	}
	add(t.Runtime, Runtime)
	add(t.Platform, Platform)
	add(t.FirstParty, FirstParty)
	return c
}

// Canonical returns the bucket for raw, or raw itself when no table lists it.
func (c *Classifier) Canonical(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return Unknown
	}
	if bucket, ok := c.buckets[normalize(raw)]; ok {
		return bucket
	}
	return raw
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(filepath.Base(name)))
	if ext := filepath.Ext(name); ext == ".dll" || ext == ".exe" {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
