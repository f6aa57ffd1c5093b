package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type searchPackagesInput struct {
	Query string `json:"query" jsonschema:"Search term for package names and descriptions"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default: 10)"`
}

type packageInput struct {
	Package string `json:"package" jsonschema:"Package name, e.g. ripgrep or python3Packages.requests"`
}

type findCommandInput struct {
	Command string `json:"command" jsonschema:"Command binary to locate, e.g. rg"`
}

type nixLocateInput struct {
	Path  string `json:"path" jsonschema:"File path fragment to search the nixpkgs file index for"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default: 20)"`
}

type commaInput struct {
	Command string   `json:"command" jsonschema:"Command to run through comma without installing it"`
	Args    []string `json:"args,omitempty" jsonschema:"Arguments passed to the command"`
}

func (g *Gateway) registerPackageTools() {
	addTool(g, "search_packages", g.handleSearchPackages)
	addTool(g, "get_package_info", g.handleGetPackageInfo)
	addTool(g, "explain_package", g.handleExplainPackage)
	addTool(g, "find_command", g.handleFindCommand)
	addTool(g, "nix_locate", g.handleNixLocate)
	addTool(g, "comma", g.handleComma)
}

func (g *Gateway) handleSearchPackages(ctx context.Context, req *mcp.CallToolRequest, in searchPackagesInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"query": in.Query}
	if in.Limit != 0 {
		params["limit"] = in.Limit
	}
	return g.invoke(ctx, "search_packages", params, false)
}

func (g *Gateway) handleGetPackageInfo(ctx context.Context, req *mcp.CallToolRequest, in packageInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "get_package_info", map[string]any{"package": in.Package}, false)
}

func (g *Gateway) handleExplainPackage(ctx context.Context, req *mcp.CallToolRequest, in packageInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "explain_package", map[string]any{"package": in.Package}, false)
}

func (g *Gateway) handleFindCommand(ctx context.Context, req *mcp.CallToolRequest, in findCommandInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "find_command", map[string]any{"command": in.Command}, false)
}

func (g *Gateway) handleNixLocate(ctx context.Context, req *mcp.CallToolRequest, in nixLocateInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"path": in.Path}
	if in.Limit != 0 {
		params["limit"] = in.Limit
	}
	return g.invoke(ctx, "nix_locate", params, false)
}

func (g *Gateway) handleComma(ctx context.Context, req *mcp.CallToolRequest, in commaInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"command": in.Command}
	if len(in.Args) > 0 {
		params["args"] = in.Args
	}
	return g.invoke(ctx, "comma", params, false)
}
