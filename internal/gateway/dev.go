package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type preCommitRunInput struct {
	AllFiles bool     `json:"all_files,omitempty" jsonschema:"Run hooks against every file instead of staged changes"`
	Hooks    []string `json:"hooks,omitempty" jsonschema:"Specific manual-stage hooks to run"`
}

func (g *Gateway) registerDevTools() {
	addTool(g, "pre_commit_run", g.handlePreCommitRun)
	addTool(g, "check_pre_commit_status", g.handleCheckPreCommitStatus)
	addTool(g, "setup_pre_commit", g.handleSetupPreCommit)
}

func (g *Gateway) handlePreCommitRun(ctx context.Context, req *mcp.CallToolRequest, in preCommitRunInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if in.AllFiles {
		params["all_files"] = true
	}
	if len(in.Hooks) > 0 {
		params["hooks"] = in.Hooks
	}
	return g.invoke(ctx, "pre_commit_run", params, false)
}

func (g *Gateway) handleCheckPreCommitStatus(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "check_pre_commit_status", map[string]any{}, false)
}

func (g *Gateway) handleSetupPreCommit(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "setup_pre_commit", map[string]any{}, false)
}
