package tools

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FieldType is the JSON type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
)

// Field describes one named input of a tool.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Default     any
	Required    bool
}

// Schema is an ordered list of fields.
type Schema []Field

// Property is the JSON Schema form of a field.
type Property struct {
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Default     any       `json:"default,omitempty"`
}

// Parameters is the JSON Schema object form of a Schema.
type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Parameters converts the schema to its JSON Schema object.
func (s Schema) Parameters() Parameters {
	p := Parameters{
		Type:       "object",
		Properties: make(map[string]Property, len(s)),
	}
	for _, f := range s {
		p.Properties[f.Name] = Property{
			Type:        f.Type,
			Description: f.Description,
			Default:     f.Default,
		}
		if f.Required {
			p.Required = append(p.Required, f.Name)
		}
	}
	return p
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Tool is a capability exposed to callers with static configuration and
// input schemas.
type Tool struct {
	Name        string
	Description string
	Config      Schema
	Inputs      Schema
}

// Definition is the JSON form of a Tool.
type Definition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Config      Parameters `json:"config"`
	Inputs      Parameters `json:"inputs"`
}

// Definition converts the tool to its JSON form.
func (t Tool) Definition() Definition {
	return Definition{
		Name:        t.Name,
		Description: t.Description,
		Config:      t.Config.Parameters(),
		Inputs:      t.Inputs.Parameters(),
	}
}

// Registry holds tools by name. Construct one per application and pass it
// to whoever needs it.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names must be unique and non-empty.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// MarshalJSON renders the registry as a list of tool definitions.
func (r *Registry) MarshalJSON() ([]byte, error) {
	tools := r.List()
	defs := make([]Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, t.Definition())
	}
	return json.Marshal(defs)
}
