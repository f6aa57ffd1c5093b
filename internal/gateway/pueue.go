package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type pueueAddInput struct {
	Command          string   `json:"command" jsonschema:"Command to queue"`
	Args             []string `json:"args,omitempty" jsonschema:"Arguments passed to the command"`
	WorkingDirectory string   `json:"working_directory,omitempty" jsonschema:"Directory the task runs in"`
	Label            string   `json:"label,omitempty" jsonschema:"Label for finding the task later"`
}

type pueueTaskIDsInput struct {
	TaskIDs []string `json:"task_ids,omitempty" jsonschema:"Task ids to act on (default: whole queue)"`
}

type pueueWaitInput struct {
	TaskIDs []string `json:"task_ids" jsonschema:"Task ids to wait for"`
}

type pueueRemoveInput struct {
	TaskIDs []string `json:"task_ids" jsonschema:"Task ids to remove, killing them if running"`
	Confirm bool     `json:"confirm,omitempty" jsonschema:"Must be true to run this destructive operation"`
}

type pueueLogInput struct {
	TaskID int `json:"task_id" jsonschema:"Task whose output to show"`
	Lines  int `json:"lines,omitempty" jsonschema:"Only show the last N lines of output"`
}

func (g *Gateway) registerPueueTools() {
	addTool(g, "pueue_add", g.handlePueueAdd)
	addTool(g, "pueue_status", g.handlePueueStatus)
	addTool(g, "pueue_log", g.handlePueueLog)
	addTool(g, "pueue_wait", g.handlePueueWait)
	addTool(g, "pueue_remove", g.handlePueueRemove)
	addTool(g, "pueue_clean", g.handlePueueClean)
	addTool(g, "pueue_pause", g.handlePueuePause)
	addTool(g, "pueue_start", g.handlePueueStart)
}

func (g *Gateway) handlePueueAdd(ctx context.Context, req *mcp.CallToolRequest, in pueueAddInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"command": in.Command}
	if len(in.Args) > 0 {
		params["args"] = in.Args
	}
	if in.WorkingDirectory != "" {
		params["working_directory"] = in.WorkingDirectory
	}
	if in.Label != "" {
		params["label"] = in.Label
	}
	return g.invoke(ctx, "pueue_add", params, false)
}

func (g *Gateway) handlePueueStatus(ctx context.Context, req *mcp.CallToolRequest, in pueueTaskIDsInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if len(in.TaskIDs) > 0 {
		params["task_ids"] = in.TaskIDs
	}
	return g.invoke(ctx, "pueue_status", params, false)
}

func (g *Gateway) handlePueueLog(ctx context.Context, req *mcp.CallToolRequest, in pueueLogInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"task_id": in.TaskID}
	if in.Lines != 0 {
		params["lines"] = in.Lines
	}
	return g.invoke(ctx, "pueue_log", params, false)
}

func (g *Gateway) handlePueueWait(ctx context.Context, req *mcp.CallToolRequest, in pueueWaitInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "pueue_wait", map[string]any{"task_ids": in.TaskIDs}, false)
}

func (g *Gateway) handlePueueRemove(ctx context.Context, req *mcp.CallToolRequest, in pueueRemoveInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "pueue_remove", map[string]any{"task_ids": in.TaskIDs}, in.Confirm)
}

func (g *Gateway) handlePueueClean(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "pueue_clean", map[string]any{}, false)
}

func (g *Gateway) handlePueuePause(ctx context.Context, req *mcp.CallToolRequest, in pueueTaskIDsInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if len(in.TaskIDs) > 0 {
		params["task_ids"] = in.TaskIDs
	}
	return g.invoke(ctx, "pueue_pause", params, false)
}

func (g *Gateway) handlePueueStart(ctx context.Context, req *mcp.CallToolRequest, in pueueTaskIDsInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if len(in.TaskIDs) > 0 {
		params["task_ids"] = in.TaskIDs
	}
	return g.invoke(ctx, "pueue_start", params, false)
}
