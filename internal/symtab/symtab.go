// Package symtab models the host's loaded-module introspection as a
// read-only lookup of exported types by fully-qualified name.
package symtab

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/throwscope/internal/model"
)

// SymbolTable finds the type a stack frame refers to.
type SymbolTable interface {
	FindType(fullName string) (model.TypeInfo, bool)
}

// Module is one loaded module and the types it exports.
type Module struct {
	Name  string   `yaml:"name"`
	Path  string   `yaml:"path"`
	Types []string `yaml:"types"`
}

type manifest struct {
	Modules []Module `yaml:"modules"`
}

// Table is an in-memory SymbolTable. Modules are searched in the order they
// were given; the first exact full-name match wins.
type Table struct {
	modules []Module
	index   map[string]model.TypeInfo
}

// New builds a Table from modules in enumeration order.
func New(modules ...Module) *Table {
	t := &Table{
		modules: append([]Module(nil), modules...),
		index:   make(map[string]model.TypeInfo),
	}
	for _, m := range t.modules {
		for _, full := range m.Types {
			full = strings.TrimSpace(full)
			if full == "" {
				continue
			}
			if _, dup := t.index[full]; dup {
				continue
			}
			t.index[full] = typeInfo(m, full)
		}
	}
	return t
}

// FindType returns the first module's definition of fullName.
func (t *Table) FindType(fullName string) (model.TypeInfo, bool) {
	if t == nil {
		return model.TypeInfo{}, false
	}
	info, ok := t.index[fullName]
	return info, ok
}

// Len returns the number of distinct type names.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.index)
}

// Modules returns the modules in enumeration order.
func (t *Table) Modules() []Module {
	if t == nil {
		return nil
	}
	return append([]Module(nil), t.modules...)
}

// LoadManifest reads a YAML module manifest. A missing file yields an empty table.
func LoadManifest(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("symtab: read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("symtab: parse manifest: %w", err)
	}
	return New(m.Modules...), nil
}

func typeInfo(m Module, full string) model.TypeInfo {
	ns, name := "", full
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		ns, name = full[:idx], full[idx+1:]
	}
	modName := m.Name
	if modName == "" {
		modName = strings.TrimSuffix(filepath.Base(m.Path), filepath.Ext(m.Path))
	}
	return model.TypeInfo{
		FullName:   full,
		Namespace:  ns,
		Name:       name,
		ModuleName: modName,
		ModulePath: m.Path,
	}
}
