// Package tool defines the Tool capability the orchestrator dispatches
// against and a thread-safe registry of named tools. Concrete tool
// bodies (filesystem, web search, calendars, and so on) are out of
// scope; this package only owns the dispatch boundary.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/liamdatt/nexus/internal/assistant/types"
)

// MaxNameLength bounds a tool name to prevent pathological registry keys.
const MaxNameLength = 256

// MaxArgsSize bounds the serialized size of a tool call's arguments.
const MaxArgsSize = 1 << 20 // 1MB

// Spec is a tool's self-description presented to the LLM.
type Spec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Result is what a tool returns after executing (or after indicating it
// needs human confirmation before proceeding).
type Result struct {
	OK                   bool
	Content              string
	Artifacts            []map[string]any
	RequiresConfirmation bool
	RiskLevel            types.RiskLevel
	ProposedAction       map[string]any
}

// Tool is the capability the orchestrator dispatches against.
type Tool interface {
	Name() string
	Spec() Spec
	Run(ctx context.Context, args map[string]any) (Result, error)
}

// Registry is a thread-safe name -> Tool lookup with schema-validated
// dispatch.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty registry ready for tool registration.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool, replacing any existing tool under the same name.
// Its input schema is compiled once here so dispatch-time validation
// never pays the compilation cost.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec := t.Spec()
	compiled, err := compileSchema(spec.Name, spec.InputSchema)
	if err != nil {
		return fmt.Errorf("tool: register %s: %w", spec.Name, err)
	}

	r.tools[t.Name()] = t
	r.schemas[t.Name()] = compiled
	return nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(resource)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns every registered tool's spec, for presentation to the
// LLM's context.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

// Execute looks up name and runs it with args. Unknown tools return a
// non-ok Result rather than an error: "unknown tool" is a user-facing
// outcome, not a system fault.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	if len(name) > MaxNameLength {
		return Result{OK: false, Content: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxNameLength)}, nil
	}

	r.mu.RLock()
	t, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return Result{OK: false, Content: fmt.Sprintf("Unknown tool '%s'", name)}, nil
	}

	if schema != nil {
		buf, err := json.Marshal(args)
		if err != nil {
			return Result{OK: false, Content: "tool arguments are not serializable"}, nil
		}
		if len(buf) > MaxArgsSize {
			return Result{OK: false, Content: fmt.Sprintf("tool arguments exceed maximum size of %d bytes", MaxArgsSize)}, nil
		}
		var decoded any
		if err := json.Unmarshal(buf, &decoded); err != nil {
			return Result{OK: false, Content: "tool arguments are not valid JSON"}, nil
		}
		if err := schema.Validate(decoded); err != nil {
			return Result{OK: false, Content: fmt.Sprintf("tool arguments failed validation: %s", err)}, nil
		}
	}

	return t.Run(ctx, args)
}
