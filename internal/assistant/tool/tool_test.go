package tool

import (
	"context"
	"testing"
)

type echoTool struct{}

func (echoTool) Name() string { return "echo" }

func (echoTool) Spec() Spec {
	return Spec{
		Name:        "echo",
		Description: "echoes the given message back",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []any{"message"},
		},
	}
}

func (echoTool) Run(_ context.Context, args map[string]any) (Result, error) {
	return Result{OK: true, Content: args["message"].(string)}, nil
}

type noSchemaTool struct{}

func (noSchemaTool) Name() string { return "noop" }
func (noSchemaTool) Spec() Spec   { return Spec{Name: "noop", Description: "does nothing"} }
func (noSchemaTool) Run(_ context.Context, _ map[string]any) (Result, error) {
	return Result{OK: true, Content: "done"}, nil
}

func TestRegistry_ExecuteKnownTool(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := r.Execute(context.Background(), "echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.OK || res.Content != "hi" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	res, err := r.Execute(context.Background(), "does-not-exist", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK {
		t.Fatalf("expected unknown tool to be non-ok")
	}
}

func TestRegistry_ExecuteSchemaViolation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := r.Execute(context.Background(), "echo", map[string]any{"wrong_field": 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK {
		t.Fatalf("expected schema violation to be non-ok")
	}
}

func TestRegistry_ExecuteNoSchema(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(noSchemaTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := r.Execute(context.Background(), "noop", map[string]any{"anything": true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.OK || res.Content != "done" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRegistry_Specs(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(noSchemaTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	specs := r.Specs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
}
