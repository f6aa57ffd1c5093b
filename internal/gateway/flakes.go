package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type flakeRefInput struct {
	FlakeRef string `json:"flake_ref,omitempty" jsonschema:"Flake reference (default: current directory)"`
}

type prefetchURLInput struct {
	URL string `json:"url" jsonschema:"https URL to download and hash"`
}

func (g *Gateway) registerFlakeTools() {
	addTool(g, "flake_metadata", g.handleFlakeMetadata)
	addTool(g, "flake_show", g.handleFlakeShow)
	addTool(g, "prefetch_url", g.handlePrefetchURL)
}

func (g *Gateway) handleFlakeMetadata(ctx context.Context, req *mcp.CallToolRequest, in flakeRefInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if in.FlakeRef != "" {
		params["flake_ref"] = in.FlakeRef
	}
	return g.invoke(ctx, "flake_metadata", params, false)
}

func (g *Gateway) handleFlakeShow(ctx context.Context, req *mcp.CallToolRequest, in flakeRefInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if in.FlakeRef != "" {
		params["flake_ref"] = in.FlakeRef
	}
	return g.invoke(ctx, "flake_show", params, false)
}

func (g *Gateway) handlePrefetchURL(ctx context.Context, req *mcp.CallToolRequest, in prefetchURLInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "prefetch_url", map[string]any{"url": in.URL}, false)
}
