package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jverrill/cortex/internal/scratch"
)

func TestScratchWriteThenReadRoundTrips(t *testing.T) {
	space, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writeTool := NewScratchWriteTool(space)
	readTool := NewScratchReadTool(space)

	writeArgs, _ := json.Marshal(map[string]any{"name": "notes.txt", "content": "buy milk"})
	writeResult, err := writeTool.Execute(context.Background(), writeArgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writeResult.Error != "" {
		t.Fatalf("unexpected write error: %s", writeResult.Error)
	}

	readArgs, _ := json.Marshal(map[string]any{"name": "notes.txt"})
	readResult, err := readTool.Execute(context.Background(), readArgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if readResult.Error != "" {
		t.Fatalf("unexpected read error: %s", readResult.Error)
	}
	if readResult.Data["content"] != "buy milk" {
		t.Fatalf("expected round-tripped content, got %+v", readResult.Data)
	}
}

func TestScratchReadMissingFileFails(t *testing.T) {
	space, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	readTool := NewScratchReadTool(space)

	args, _ := json.Marshal(map[string]any{"name": "nope.txt"})
	result, err := readTool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestScratchWriteRequiresName(t *testing.T) {
	space, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writeTool := NewScratchWriteTool(space)

	args, _ := json.Marshal(map[string]any{"content": "no name given"})
	result, err := writeTool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Fatalf("expected an error for missing name")
	}
}

func TestScratchWriteRequiresConfirmation(t *testing.T) {
	writeTool := NewScratchWriteTool(nil)
	if !writeTool.RequiresConfirmation() {
		t.Fatalf("expected scratch_write to require confirmation")
	}
}

func TestScratchListReturnsWrittenFiles(t *testing.T) {
	space, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writeTool := NewScratchWriteTool(space)
	listTool := NewScratchListTool(space)

	writeArgs, _ := json.Marshal(map[string]any{"name": "notes.txt", "content": "buy milk"})
	if _, err := writeTool.Execute(context.Background(), writeArgs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := listTool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected list error: %s", result.Error)
	}
	files, ok := result.Data["files"].([]map[string]any)
	if !ok || len(files) != 1 {
		t.Fatalf("expected exactly one listed file, got %+v", result.Data["files"])
	}
	if files[0]["name"] != "notes.txt" {
		t.Fatalf("expected notes.txt in listing, got %+v", files[0])
	}
}

func TestScratchListEmptySpaceReturnsNoFiles(t *testing.T) {
	space, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	listTool := NewScratchListTool(space)

	result, err := listTool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Data["count"] != 0 {
		t.Fatalf("expected zero files, got %+v", result.Data["count"])
	}
}
