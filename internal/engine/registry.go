package engine

import (
	"fmt"
	"sync"

	"github.com/holdpoint/holdpoint/pkg/api"
)

// Registry is the catalog of workflow definitions. It is write-once at
// startup and read-many afterwards; registration and lookup are
// goroutine-safe. Engines receive a Registry explicitly rather than
// through ambient globals, so tests get isolation for free.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]api.Definition
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]api.Definition),
	}
}

// Register adds def to the catalog.
func (r *Registry) Register(def api.Definition) error {
	if err := validateDefinition(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[def.Name]; ok {
		return fmt.Errorf("%w: %s", api.ErrDuplicateDefinition, def.Name)
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (api.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return api.Definition{}, fmt.Errorf("%w: %s", api.ErrUnknownWorkflow, name)
	}
	return def, nil
}

// List returns definitions matching all supplied filter criteria, in
// insertion order. A zero filter returns everything.
func (r *Registry) List(filter api.ListFilter) []api.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []api.Definition
	for _, name := range r.order {
		def := r.defs[name]
		if filter.Industry != "" && def.Industry != filter.Industry {
			continue
		}
		if !hasAllTags(def.Tags, filter.Tags) {
			continue
		}
		if filter.Capability != nil && !filter.Capability(def.Capabilities) {
			continue
		}
		out = append(out, def)
	}
	return out
}

// ValidateInitialState checks state against the definition's field
// declarations and returns a normalized copy.
//
// Declared fields absent from state are auto-populated with
// type-appropriate zero values rather than rejected, so callers can omit
// optional context. Only two things fail: a required field with no value,
// and a present field whose runtime type mismatches its declaration.
func (r *Registry) ValidateInitialState(name string, state api.State) (api.State, error) {
	def, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	out := state.Clone()
	for _, field := range def.Fields {
		v, present := out[field.Name]
		if !present || v == nil {
			if field.Required {
				return nil, fmt.Errorf("%w: missing required field %q", api.ErrInvalidState, field.Name)
			}
			out[field.Name] = zeroValue(field.Type)
			continue
		}
		if !typeMatches(field.Type, v) {
			return nil, fmt.Errorf("%w: field %q is not a %s (got %T)",
				api.ErrInvalidState, field.Name, field.Type, v)
		}
	}
	return out, nil
}

func validateDefinition(def api.Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: name is required", api.ErrMalformedDefinition)
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", api.ErrMalformedDefinition, def.Name)
	}

	steps := make(map[string]api.StepDefinition, len(def.Steps))
	for _, s := range def.Steps {
		if s.Name == "" {
			return fmt.Errorf("%w: %s has an unnamed step", api.ErrMalformedDefinition, def.Name)
		}
		if s.Fn == nil {
			return fmt.Errorf("%w: step %q has no function", api.ErrMalformedDefinition, s.Name)
		}
		if _, dup := steps[s.Name]; dup {
			return fmt.Errorf("%w: duplicate step %q", api.ErrMalformedDefinition, s.Name)
		}
		steps[s.Name] = s
	}

	if def.Start != "" {
		if _, ok := steps[def.Start]; !ok {
			return fmt.Errorf("%w: start step %q does not exist", api.ErrMalformedDefinition, def.Start)
		}
	}

	fields := make(map[string]struct{}, len(def.Fields))
	for _, f := range def.Fields {
		fields[f.Name] = struct{}{}
	}

	for _, s := range def.Steps {
		for _, next := range s.Next {
			if next == api.End {
				continue
			}
			if _, ok := steps[next]; !ok {
				return fmt.Errorf("%w: step %q transitions to unknown step %q",
					api.ErrMalformedDefinition, s.Name, next)
			}
		}
		for _, name := range s.Fields {
			if _, ok := fields[name]; !ok {
				return fmt.Errorf("%w: step %q references undeclared field %q",
					api.ErrMalformedDefinition, s.Name, name)
			}
		}
		if s.Gate && !def.Capabilities.Interrupts {
			return fmt.Errorf("%w: step %q is a gate but %s does not declare interrupt support",
				api.ErrMalformedDefinition, s.Name, def.Name)
		}
	}

	return nil
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func zeroValue(t api.FieldType) any {
	switch t {
	case api.FieldString:
		return ""
	case api.FieldNumber:
		return float64(0)
	case api.FieldList:
		return []any{}
	case api.FieldBool:
		return false
	}
	return nil
}

func typeMatches(t api.FieldType, v any) bool {
	switch t {
	case api.FieldString:
		_, ok := v.(string)
		return ok
	case api.FieldNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case api.FieldList:
		switch v.(type) {
		case []any, []string, []float64:
			return true
		}
		return false
	case api.FieldBool:
		_, ok := v.(bool)
		return ok
	}
	// Untyped declaration: anything goes.
	return true
}
