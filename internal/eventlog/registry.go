package eventlog

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Accessor reads a single named value from an issue.
type Accessor func(*Issue) any

// Registry maps field names used in user configuration to typed issue accessors.
type Registry struct {
	accessors map[string]Accessor
}

// NewRegistry returns a registry preloaded with the standard issue accessors.
func NewRegistry() *Registry {
	r := &Registry{accessors: make(map[string]Accessor)}
	r.Register("key", func(i *Issue) any { return i.Key() })
	r.Register("summary", func(i *Issue) any { return i.Summary() })
	r.Register("type", func(i *Issue) any { return i.Type() })
	r.Register("status", func(i *Issue) any { return i.Status().Name })
	r.Register("status_category", func(i *Issue) any { return i.Status().CategoryKey })
	r.Register("priority", func(i *Issue) any { return i.Priority() })
	r.Register("resolution", func(i *Issue) any { return i.Resolution() })
	r.Register("assignee", func(i *Issue) any { return i.Assignee() })
	r.Register("created", func(i *Issue) any { return i.Created() })
	r.Register("updated", func(i *Issue) any { return i.Updated() })
	r.Register("parent", func(i *Issue) any { return i.ParentKey() })
	r.Register("subtask_count", func(i *Issue) any { return len(i.Subtasks) })
	r.Register("project", func(i *Issue) any { return i.ProjectKey() })
	return r
}

// Register adds or replaces an accessor.
func (r *Registry) Register(name string, fn Accessor) {
	r.accessors[strings.ToLower(name)] = fn
}

// Keys returns the registered names in sorted order.
func (r *Registry) Keys() []string {
	return slices.Sorted(maps.Keys(r.accessors))
}

// Lookup returns the accessor for a name. A miss reports every valid key.
func (r *Registry) Lookup(name string) (Accessor, error) {
	fn, ok := r.accessors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown issue field %q, valid fields are: %s", name, strings.Join(r.Keys(), ", "))
	}
	return fn, nil
}

// Project evaluates the named accessors against an issue.
func (r *Registry) Project(issue *Issue, names []string) (map[string]any, error) {
	result := make(map[string]any, len(names))
	for _, name := range names {
		fn, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		result[name] = fn(issue)
	}
	return result, nil
}
