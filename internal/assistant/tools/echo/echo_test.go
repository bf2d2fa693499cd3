package echo

import (
	"context"
	"testing"
)

func TestTool_Run(t *testing.T) {
	tl := New()
	res, err := tl.Run(context.Background(), map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.OK || res.Content != "echo: hi" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTool_NeverRequiresConfirmation(t *testing.T) {
	tl := New()
	res, _ := tl.Run(context.Background(), map[string]any{"message": "x"})
	if res.RequiresConfirmation {
		t.Fatalf("echo tool must never require confirmation")
	}
}
