package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type clanFlakeInput struct {
	Flake string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
}

type clanFlakeCreateInput struct {
	Directory string `json:"directory" jsonschema:"Directory to create the new clan flake in"`
	Template  string `json:"template,omitempty" jsonschema:"Flake template to instantiate"`
}

type clanVMCreateInput struct {
	Machine string `json:"machine" jsonschema:"Machine definition to boot as a VM"`
	Flake   string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
}

func (g *Gateway) registerClanAnalysisTools() {
	addTool(g, "clan_analyze_secrets", g.handleClanAnalyzeSecrets)
	addTool(g, "clan_analyze_vars", g.handleClanAnalyzeVars)
	addTool(g, "clan_analyze_tags", g.handleClanAnalyzeTags)
	addTool(g, "clan_analyze_roster", g.handleClanAnalyzeRoster)
	addTool(g, "clan_secrets_list", g.handleClanSecretsList)
	addTool(g, "clan_flake_create", g.handleClanFlakeCreate)
	addTool(g, "clan_vm_create", g.handleClanVMCreate)
}

func (g *Gateway) analyzeFlake(ctx context.Context, tool string, in clanFlakeInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, tool, params, false)
}

func (g *Gateway) handleClanAnalyzeSecrets(ctx context.Context, req *mcp.CallToolRequest, in clanFlakeInput) (*mcp.CallToolResult, any, error) {
	return g.analyzeFlake(ctx, "clan_analyze_secrets", in)
}

func (g *Gateway) handleClanAnalyzeVars(ctx context.Context, req *mcp.CallToolRequest, in clanFlakeInput) (*mcp.CallToolResult, any, error) {
	return g.analyzeFlake(ctx, "clan_analyze_vars", in)
}

func (g *Gateway) handleClanAnalyzeTags(ctx context.Context, req *mcp.CallToolRequest, in clanFlakeInput) (*mcp.CallToolResult, any, error) {
	return g.analyzeFlake(ctx, "clan_analyze_tags", in)
}

func (g *Gateway) handleClanAnalyzeRoster(ctx context.Context, req *mcp.CallToolRequest, in clanFlakeInput) (*mcp.CallToolResult, any, error) {
	return g.analyzeFlake(ctx, "clan_analyze_roster", in)
}

func (g *Gateway) handleClanSecretsList(ctx context.Context, req *mcp.CallToolRequest, in clanFlakeInput) (*mcp.CallToolResult, any, error) {
	return g.analyzeFlake(ctx, "clan_secrets_list", in)
}

func (g *Gateway) handleClanFlakeCreate(ctx context.Context, req *mcp.CallToolRequest, in clanFlakeCreateInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"directory": in.Directory}
	if in.Template != "" {
		params["template"] = in.Template
	}
	return g.invoke(ctx, "clan_flake_create", params, false)
}

func (g *Gateway) handleClanVMCreate(ctx context.Context, req *mcp.CallToolRequest, in clanVMCreateInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"machine": in.Machine}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_vm_create", params, false)
}
