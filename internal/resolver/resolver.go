// Package resolver turns raw stack-trace lines into normalized attributions.
//
// Resolution is total: malformed lines, unknown types and internal faults all
// degrade to a fixed attribution instead of an error. Results are memoized by
// the exact raw line for the lifetime of the Resolver; the cache never evicts
// because the symbol universe of a run is small and fixed.
package resolver

import (
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/modclass"
	"github.com/tinytelemetry/throwscope/internal/model"
	"github.com/tinytelemetry/throwscope/internal/symtab"
)

// IgnoredModule is the module of the sentinel attribution given to host-internal frames.
const IgnoredModule = "ignored"

// DefaultInternalPrefixes identify frames that belong to the host engine itself.
var DefaultInternalPrefixes = []string{"UnityEngine.", "KSPAssets."}

// Unknown is the attribution of a malformed line. It is never third-party so
// that unparseable noise in a trace cannot win blame over a real frame.
func Unknown() model.Attribution {
	return model.Attribution{Module: modclass.Unknown}
}

// Ignored is the sentinel attribution of a host-internal frame.
func Ignored() model.Attribution {
	return model.Attribution{Module: IgnoredModule}
}

// Config holds resolver tunables.
type Config struct {
	// ContentRoot is the plugin content directory. Modules loaded from under it
	// are third-party.
	ContentRoot string
	// RootFolderName is matched as a path segment when ContentRoot is empty.
	RootFolderName string
	// InternalPrefixes are fast-rejected without parsing. Nil uses the defaults.
	InternalPrefixes []string
}

// Resolver resolves stack lines against a symbol table.
type Resolver struct {
	table       symtab.SymbolTable
	classifier  *modclass.Classifier
	contentRoot string
	rootFolder  string
	prefixes    []string
	logger      *zap.Logger

	mux   sync.RWMutex
	cache map[string]model.Attribution
}

// New creates a Resolver. A nil table resolves nothing; a nil classifier uses
// the default module tables.
func New(table symtab.SymbolTable, classifier *modclass.Classifier, cfg Config, logger *zap.Logger) *Resolver {
	if table == nil {
		table = symtab.New()
	}
	if classifier == nil {
		classifier = modclass.New(modclass.Tables{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	prefixes := cfg.InternalPrefixes
	if prefixes == nil {
		prefixes = DefaultInternalPrefixes
	}
	rootFolder := cfg.RootFolderName
	if rootFolder == "" {
		rootFolder = model.DefaultRootFolderName
	}
	contentRoot := ""
	if strings.TrimSpace(cfg.ContentRoot) != "" {
		contentRoot = filepath.Clean(cfg.ContentRoot)
	}
	return &Resolver{
		table:       table,
		classifier:  classifier,
		contentRoot: contentRoot,
		rootFolder:  rootFolder,
		prefixes:    append([]string(nil), prefixes...),
		logger:      logger,
		cache:       make(map[string]model.Attribution),
	}
}

// Resolve returns the attribution of one raw stack line. It never panics and
// always returns the same attribution for the same line.
func (r *Resolver) Resolve(line string) (attr model.Attribution) {
	if cached, ok := r.fetch(line); ok {
		return cached
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("resolver: recovered while parsing stack line",
				zap.String("line", line), zap.Any("panic", rec))
			attr = r.put(line, Unknown())
		}
	}()

	return r.put(line, r.parse(line))
}

// Blame picks the attribution responsible for a stack trace: the first
// third-party frame, or the first frame when none is third-party.
func (r *Resolver) Blame(stackTrace string) model.Attribution {
	var first *model.Attribution
	for _, line := range strings.Split(stackTrace, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		attr := r.Resolve(line)
		if attr.ThirdParty {
			return attr
		}
		if first == nil {
			first = &attr
		}
	}
	if first == nil {
		return Unknown()
	}
	return *first
}

// CacheLen returns the number of memoized lines.
func (r *Resolver) CacheLen() int {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return len(r.cache)
}

func (r *Resolver) parse(line string) model.Attribution {
	frame := strings.TrimSpace(line)
	frame = strings.TrimPrefix(frame, "at ")

	for _, prefix := range r.prefixes {
		if prefix != "" && strings.HasPrefix(frame, prefix) {
			return Ignored()
		}
	}

	owner, method, ok := splitFrame(frame)
	if !ok {
		return Unknown()
	}

	info, found := r.table.FindType(owner)
	if !found {
		return model.Attribution{
			Module:     modclass.Unknown,
			Class:      stripArity(owner),
			Method:     method,
			ThirdParty: true,
		}
	}

	module := info.ModuleName
	if module == "" {
		module = strings.TrimSuffix(filepath.Base(info.ModulePath), filepath.Ext(info.ModulePath))
	}
	thirdParty := r.underContentRoot(info.ModulePath)
	if !thirdParty {
		module = r.classifier.Canonical(module)
	}

	var ns *string
	if info.Namespace != "" {
		v := info.Namespace
		ns = &v
	}
	class := info.Name
	if class == "" {
		class = owner
	}

	return model.Attribution{
		Module:     module,
		Namespace:  ns,
		Class:      stripArity(class),
		Method:     method,
		ThirdParty: thirdParty,
	}
}

// splitFrame splits "Owner.Type.Method (args)" into the owning type name
// and the method name. The owner is cut at the first bracket.
func splitFrame(frame string) (owner, method string, ok bool) {
	end := strings.LastIndex(frame, " (")
	if end < 0 {
		return "", "", false
	}
	qualified := frame[:end]
	dot := strings.LastIndex(qualified, ".")
	if dot <= 0 || dot == len(qualified)-1 {
		return "", "", false
	}
	owner, method = qualified[:dot], qualified[dot+1:]
	if i := strings.IndexByte(owner, '['); i >= 0 {
		owner = owner[:i]
	}
	if owner == "" {
		return "", "", false
	}
	return owner, method, true
}

func stripArity(name string) string {
	if i := strings.IndexByte(name, '`'); i >= 0 {
		return name[:i]
	}
	return name
}

func (r *Resolver) underContentRoot(modulePath string) bool {
	if modulePath == "" {
		return false
	}
	p := strings.ToLower(filepath.Clean(modulePath))
	if r.contentRoot != "" {
		root := strings.ToLower(r.contentRoot)
		return p == root || strings.HasPrefix(p, root+string(filepath.Separator))
	}
	segment := strings.ToLower(r.rootFolder)
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == segment {
			return true
		}
	}
	return false
}

func (r *Resolver) fetch(line string) (model.Attribution, bool) {
	r.mux.RLock()
	attr, ok := r.cache[line]
	r.mux.RUnlock()
	return attr, ok
}

// put stores attr unless line is already cached, and returns the cached value.
func (r *Resolver) put(line string, attr model.Attribution) model.Attribution {
	r.mux.Lock()
	defer r.mux.Unlock()
	if existing, ok := r.cache[line]; ok {
		return existing
	}
	r.cache[line] = attr
	return attr
}
