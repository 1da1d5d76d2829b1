// Package tools defines the tool interface and registry agents call into.
package tools

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/jkaninda/huddle/internal/llm"
)

// Tool is a function the model can call.
type Tool interface {
	// Name returns the tool's unique identifier (e.g. "check_emails").
	Name() string

	Description() string

	// InputSchema returns the JSON Schema object sent to the LLM.
	InputSchema() map[string]any

	// Validate checks params before Execute runs.
	Validate(params map[string]any) error

	Execute(ctx context.Context, params map[string]any) (*Result, error)
}

// Result is the outcome of a tool execution. Output is the report the
// model reads; Metadata carries structured fields for API callers.
type Result struct {
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Success  bool           `json:"success"`
}

// MaxOutputBytes caps tool output handed back to the model.
const MaxOutputBytes = 64 << 10

// TruncateOutput caps a string at maxBytes, appending a truncation notice if cut.
func TruncateOutput(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	const suffix = "\n... [output truncated]"
	if maxBytes <= len(suffix) {
		return s[:maxBytes]
	}
	return s[:maxBytes-len(suffix)] + suffix
}

// Registry holds tools keyed by name. Writes happen at startup only.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tools. It panics on duplicate names since that is a wiring bug.
func (r *Registry) Register(ts ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range ts {
		if _, exists := r.tools[t.Name()]; exists {
			panic("duplicate tool registration: " + t.Name())
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
}

// Get returns the tool by name, or nil.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// All returns tools in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Subset returns a registry holding only the named tools.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		t := r.Get(name)
		if t == nil {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		sub.Register(t)
	}
	return sub, nil
}

// ToLLMDefinitions converts the registry into LLM tool definitions.
func ToLLMDefinitions(reg *Registry) []llm.ToolDefinition {
	if reg == nil {
		return nil
	}
	all := reg.All()
	defs := make([]llm.ToolDefinition, len(all))
	for i, t := range all {
		defs[i] = llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}
	return defs
}

// Object builds a JSON Schema object from property schemas.
func Object(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Prop is a typed schema property with a description.
func Prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

// RequireStrings checks that each key is a non-empty string param.
func RequireStrings(params map[string]any, keys ...string) error {
	for _, k := range keys {
		if strings.TrimSpace(String(params, k)) == "" {
			return fmt.Errorf("missing required parameter: %s", k)
		}
	}
	return nil
}

// String returns params[key] as a string. Numbers are formatted, so a
// meeting ID sent as a JSON number still works.
func String(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatFloat(v, 'f', 0, 64)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Int returns params[key] as an int, or def when absent. Strings holding
// digits are accepted since models sometimes quote numbers.
func Int(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		if strings.TrimSpace(n) == "" {
			return def, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("parameter %s must be an integer: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("parameter %s must be an integer", key)
	}
}

// OptionalString returns a pointer to params[key], or nil when it is absent or empty.
func OptionalString(params map[string]any, key string) *string {
	s := strings.TrimSpace(String(params, key))
	if s == "" {
		return nil
	}
	return &s
}
