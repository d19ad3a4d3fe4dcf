package tool

import (
	"fmt"
)

// NotFoundError reports a lookup for a tool the registry does not hold. The
// orchestrator treats it as fatal for the run: an unresolved tool request
// leaves the model's expectation unmet and must never be silently dropped.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no tool registered under %q", e.Name)
}

// Declaration is the wire-facing description of a tool handed to the model
// gateway alongside the transcript.
type Declaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Registry maps tool names to handlers. It is constructed once at run setup
// from static configuration and is immutable afterwards, so it is safe to
// share across concurrent runs without locking. The registry performs no
// business logic itself; it is a pure lookup and declaration surface.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry from the given tools. Duplicate names are
// rejected because resolution by name would become ambiguous.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Resolve returns the handler registered under name, or *NotFoundError.
func (r *Registry) Resolve(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return t, nil
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

// Declarations exports the registered tools in registration order for
// inclusion in a model gateway request.
func (r *Registry) Declarations() []Declaration {
	decls := make([]Declaration, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		decls = append(decls, Declaration{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return decls
}
