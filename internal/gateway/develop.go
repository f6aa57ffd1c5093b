package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type searchOptionsInput struct {
	Query string `json:"query" jsonschema:"NixOS option path to look up, e.g. services.nginx.enable"`
}

type nixEvalInput struct {
	Expression string `json:"expression" jsonschema:"Nix expression to evaluate, e.g. (import <nixpkgs> {}).hello.version"`
}

type runInShellInput struct {
	Packages []string `json:"packages" jsonschema:"Packages to make available in the shell"`
	Command  string   `json:"command" jsonschema:"Command line to run inside the shell"`
}

type nixLogInput struct {
	StorePath string `json:"store_path" jsonschema:"Store path or installable to fetch the build log for"`
}

type nixRunInput struct {
	Package string   `json:"package" jsonschema:"Installable to run, e.g. nixpkgs#hello"`
	Args    []string `json:"args,omitempty" jsonschema:"Arguments passed to the program"`
}

type nixDevelopInput struct {
	FlakeRef string   `json:"flake_ref,omitempty" jsonschema:"Flake providing the dev shell (default: current flake)"`
	Command  string   `json:"command" jsonschema:"Command to run inside the dev shell"`
	Args     []string `json:"args,omitempty" jsonschema:"Arguments passed to the command"`
}

func (g *Gateway) registerDevelopTools() {
	addTool(g, "search_options", g.handleSearchOptions)
	addTool(g, "nix_eval", g.handleNixEval)
	addTool(g, "run_in_shell", g.handleRunInShell)
	addTool(g, "nix_log", g.handleNixLog)
	addTool(g, "nix_run", g.handleNixRun)
	addTool(g, "nix_develop", g.handleNixDevelop)
}

func (g *Gateway) handleSearchOptions(ctx context.Context, req *mcp.CallToolRequest, in searchOptionsInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "search_options", map[string]any{"query": in.Query}, false)
}

func (g *Gateway) handleNixEval(ctx context.Context, req *mcp.CallToolRequest, in nixEvalInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "nix_eval", map[string]any{"expression": in.Expression}, false)
}

func (g *Gateway) handleRunInShell(ctx context.Context, req *mcp.CallToolRequest, in runInShellInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "run_in_shell", map[string]any{
		"packages": in.Packages,
		"command":  in.Command,
	}, false)
}

func (g *Gateway) handleNixLog(ctx context.Context, req *mcp.CallToolRequest, in nixLogInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "nix_log", map[string]any{"store_path": in.StorePath}, false)
}

func (g *Gateway) handleNixRun(ctx context.Context, req *mcp.CallToolRequest, in nixRunInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"package": in.Package}
	if len(in.Args) > 0 {
		params["args"] = in.Args
	}
	return g.invoke(ctx, "nix_run", params, false)
}

func (g *Gateway) handleNixDevelop(ctx context.Context, req *mcp.CallToolRequest, in nixDevelopInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"command": in.Command}
	if in.FlakeRef != "" {
		params["flake_ref"] = in.FlakeRef
	}
	if len(in.Args) > 0 {
		params["args"] = in.Args
	}
	return g.invoke(ctx, "nix_develop", params, false)
}
