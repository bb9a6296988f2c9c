package aggregate

import "github.com/tinytelemetry/throwscope/internal/model"

// Entry is one counted message in insertion order.
type Entry struct {
	Label string
	Count uint64
}

// OccurrenceCounter counts normalized messages. Counts only grow and keys
// are never evicted; insertion order is kept for stable ranking.
type OccurrenceCounter struct {
	counts map[string]uint64
	order  []string
}

func newOccurrenceCounter() *OccurrenceCounter {
	return &OccurrenceCounter{counts: make(map[string]uint64)}
}

// Inc adds one occurrence of key and returns the new count.
// Empty keys are not counted.
func (c *OccurrenceCounter) Inc(key string) uint64 {
	if key == "" {
		return 0
	}
	n, ok := c.counts[key]
	if !ok {
		c.order = append(c.order, key)
	}
	n++
	c.counts[key] = n
	return n
}

// Get returns the count of key.
func (c *OccurrenceCounter) Get(key string) uint64 {
	return c.counts[key]
}

// Entries returns all counts in insertion order.
func (c *OccurrenceCounter) Entries() []Entry {
	out := make([]Entry, len(c.order))
	for i, k := range c.order {
		out[i] = Entry{Label: k, Count: c.counts[k]}
	}
	return out
}

// ThrowEntry is one attributed method with its throw count.
type ThrowEntry struct {
	Attribution model.Attribution
	Count       uint64
}

// ModuleEntry groups throw entries under a module, in insertion order.
type ModuleEntry struct {
	Module  string
	Methods []ThrowEntry
}

type moduleBucket struct {
	order  []model.AttributionKey
	attrs  map[model.AttributionKey]model.Attribution
	counts map[model.AttributionKey]uint64
}

// ThrowCounter counts exceptions per module and attribution key.
type ThrowCounter struct {
	modules map[string]*moduleBucket
	order   []string
	total   uint64
}

func newThrowCounter() *ThrowCounter {
	return &ThrowCounter{modules: make(map[string]*moduleBucket)}
}

// Inc counts one throw attributed to a and returns the new count for its key.
// The first attribution seen for a key is the one reported.
func (c *ThrowCounter) Inc(a model.Attribution) uint64 {
	b, ok := c.modules[a.Module]
	if !ok {
		b = &moduleBucket{
			attrs:  make(map[model.AttributionKey]model.Attribution),
			counts: make(map[model.AttributionKey]uint64),
		}
		c.modules[a.Module] = b
		c.order = append(c.order, a.Module)
	}
	key := a.Key()
	if _, seen := b.attrs[key]; !seen {
		b.attrs[key] = a
		b.order = append(b.order, key)
	}
	b.counts[key]++
	c.total++
	return b.counts[key]
}

// Get returns the throw count of a's key under a's module.
func (c *ThrowCounter) Get(a model.Attribution) uint64 {
	b, ok := c.modules[a.Module]
	if !ok {
		return 0
	}
	return b.counts[a.Key()]
}

// Total returns the number of throws counted.
func (c *ThrowCounter) Total() uint64 { return c.total }

// Modules returns every module bucket in insertion order.
func (c *ThrowCounter) Modules() []ModuleEntry {
	out := make([]ModuleEntry, 0, len(c.order))
	for _, name := range c.order {
		b := c.modules[name]
		methods := make([]ThrowEntry, len(b.order))
		for i, k := range b.order {
			methods[i] = ThrowEntry{Attribution: b.attrs[k], Count: b.counts[k]}
		}
		out = append(out, ModuleEntry{Module: name, Methods: methods})
	}
	return out
}
