package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type pexpectStartInput struct {
	Command string   `json:"command" jsonschema:"Interactive command to start under pexpect"`
	Args    []string `json:"args,omitempty" jsonschema:"Arguments passed to the command"`
}

type pexpectSendInput struct {
	SessionID string `json:"session_id" jsonschema:"Session id returned by pexpect_start"`
	Code      string `json:"code" jsonschema:"Control code to run against the session, e.g. child.sendline('ls')"`
}

type pexpectCloseInput struct {
	SessionID string `json:"session_id" jsonschema:"Session to close"`
}

func (g *Gateway) registerPexpectTools() {
	addTool(g, "pexpect_start", g.handlePexpectStart)
	addTool(g, "pexpect_send", g.handlePexpectSend)
	addTool(g, "pexpect_close", g.handlePexpectClose)
}

func (g *Gateway) handlePexpectStart(ctx context.Context, req *mcp.CallToolRequest, in pexpectStartInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"command": in.Command}
	if len(in.Args) > 0 {
		params["args"] = in.Args
	}
	return g.invoke(ctx, "pexpect_start", params, false)
}

// handlePexpectSend forwards session control code on stdin. The code
// reaches the session runner byte-for-byte without touching a shell.
func (g *Gateway) handlePexpectSend(ctx context.Context, req *mcp.CallToolRequest, in pexpectSendInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{
		"session_id": in.SessionID,
		"code":       in.Code,
	}
	return g.invoke(ctx, "pexpect_send", params, false)
}

func (g *Gateway) handlePexpectClose(ctx context.Context, req *mcp.CallToolRequest, in pexpectCloseInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "pexpect_close", map[string]any{"session_id": in.SessionID}, false)
}
