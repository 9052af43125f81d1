package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jverrill/cortex/internal/scratch"
	"github.com/jverrill/cortex/internal/toolkit"
)

// ScratchListTool lists every regular file in the sandboxed scratch
// filesystem with its size, modification time, and age.
type ScratchListTool struct {
	space *scratch.Space
}

// NewScratchListTool builds a ScratchListTool backed by space.
func NewScratchListTool(space *scratch.Space) *ScratchListTool {
	return &ScratchListTool{space: space}
}

func (t *ScratchListTool) Name() string             { return "scratch_list" }
func (t *ScratchListTool) Category() string         { return "files" }
func (t *ScratchListTool) RequiresConfirmation() bool { return false }

func (t *ScratchListTool) Description() string {
	return "List the files currently in the assistant's private scratch space."
}

func (t *ScratchListTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *ScratchListTool) Execute(ctx context.Context, args json.RawMessage) (*toolkit.Result, error) {
	files, err := t.space.List()
	if err != nil {
		return toolkit.Err(err.Error()), nil
	}
	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		out = append(out, map[string]any{
			"name":         f.Name,
			"size":         f.Size,
			"modified_at":  f.ModTime.Format("2006-01-02T15:04:05Z07:00"),
			"age_hours":    f.AgeHrs,
		})
	}
	return toolkit.OK(map[string]any{"files": out, "count": len(out)}), nil
}

// ScratchWriteTool writes a named file to the sandboxed scratch filesystem.
type ScratchWriteTool struct {
	space *scratch.Space
}

// NewScratchWriteTool builds a ScratchWriteTool backed by space.
func NewScratchWriteTool(space *scratch.Space) *ScratchWriteTool {
	return &ScratchWriteTool{space: space}
}

func (t *ScratchWriteTool) Name() string        { return "scratch_write" }
func (t *ScratchWriteTool) Category() string    { return "files" }
func (t *ScratchWriteTool) RequiresConfirmation() bool { return true }

func (t *ScratchWriteTool) Description() string {
	return "Write text content to a named file in the assistant's private scratch space."
}

func (t *ScratchWriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Filename to write"},
			"content": {"type": "string", "description": "Text content to write"}
		},
		"required": ["name", "content"]
	}`)
}

type scratchWriteInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (t *ScratchWriteTool) Execute(ctx context.Context, args json.RawMessage) (*toolkit.Result, error) {
	var in scratchWriteInput
	if err := json.Unmarshal(args, &in); err != nil {
		return toolkit.Err(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if in.Name == "" {
		return toolkit.Err("name is required"), nil
	}
	if err := t.space.Write(in.Name, []byte(in.Content)); err != nil {
		return toolkit.Err(err.Error()), nil
	}
	return toolkit.OK(map[string]any{"name": scratch.SanitizeFilename(in.Name), "bytes_written": len(in.Content)}), nil
}

// ScratchReadTool reads a named file from the sandboxed scratch filesystem.
type ScratchReadTool struct {
	space *scratch.Space
}

// NewScratchReadTool builds a ScratchReadTool backed by space.
func NewScratchReadTool(space *scratch.Space) *ScratchReadTool {
	return &ScratchReadTool{space: space}
}

func (t *ScratchReadTool) Name() string        { return "scratch_read" }
func (t *ScratchReadTool) Category() string    { return "files" }
func (t *ScratchReadTool) RequiresConfirmation() bool { return false }

func (t *ScratchReadTool) Description() string {
	return "Read a named file back from the assistant's private scratch space."
}

func (t *ScratchReadTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Filename to read"}
		},
		"required": ["name"]
	}`)
}

type scratchReadInput struct {
	Name string `json:"name"`
}

func (t *ScratchReadTool) Execute(ctx context.Context, args json.RawMessage) (*toolkit.Result, error) {
	var in scratchReadInput
	if err := json.Unmarshal(args, &in); err != nil {
		return toolkit.Err(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if in.Name == "" {
		return toolkit.Err("name is required"), nil
	}
	data, err := t.space.Read(in.Name)
	if err != nil {
		return toolkit.Err(err.Error()), nil
	}
	return toolkit.OK(map[string]any{"name": scratch.SanitizeFilename(in.Name), "content": string(data)}), nil
}
