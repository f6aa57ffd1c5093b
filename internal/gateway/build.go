package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type nixBuildInput struct {
	Package string `json:"package" jsonschema:"Flake reference or attribute to build, e.g. nixpkgs#hello"`
	DryRun  bool   `json:"dry_run,omitempty" jsonschema:"Show what would be built without building it"`
}

type whyDependsInput struct {
	Package    string `json:"package" jsonschema:"Package whose dependency chain to explain"`
	Dependency string `json:"dependency" jsonschema:"Dependency the package is suspected to pull in"`
}

type diffDerivationsInput struct {
	PackageA string `json:"package_a" jsonschema:"First derivation to compare"`
	PackageB string `json:"package_b" jsonschema:"Second derivation to compare"`
}

type nixosBuildInput struct {
	Machine  string `json:"machine" jsonschema:"NixOS configuration name under nixosConfigurations"`
	FlakeRef string `json:"flake_ref,omitempty" jsonschema:"Flake containing the configuration (default: .)"`
}

func (g *Gateway) registerBuildTools() {
	addTool(g, "nix_build", g.handleNixBuild)
	addTool(g, "why_depends", g.handleWhyDepends)
	addTool(g, "show_derivation", g.handleShowDerivation)
	addTool(g, "get_closure_size", g.handleGetClosureSize)
	addTool(g, "get_build_log", g.handleGetBuildLog)
	addTool(g, "diff_derivations", g.handleDiffDerivations)
	addTool(g, "nixos_build", g.handleNixosBuild)
}

func (g *Gateway) handleNixBuild(ctx context.Context, req *mcp.CallToolRequest, in nixBuildInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"package": in.Package}
	if in.DryRun {
		params["dry_run"] = true
	}
	return g.invoke(ctx, "nix_build", params, false)
}

func (g *Gateway) handleWhyDepends(ctx context.Context, req *mcp.CallToolRequest, in whyDependsInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "why_depends", map[string]any{
		"package":    in.Package,
		"dependency": in.Dependency,
	}, false)
}

func (g *Gateway) handleShowDerivation(ctx context.Context, req *mcp.CallToolRequest, in packageInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "show_derivation", map[string]any{"package": in.Package}, false)
}

func (g *Gateway) handleGetClosureSize(ctx context.Context, req *mcp.CallToolRequest, in packageInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "get_closure_size", map[string]any{"package": in.Package}, false)
}

func (g *Gateway) handleGetBuildLog(ctx context.Context, req *mcp.CallToolRequest, in packageInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "get_build_log", map[string]any{"package": in.Package}, false)
}

func (g *Gateway) handleDiffDerivations(ctx context.Context, req *mcp.CallToolRequest, in diffDerivationsInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "diff_derivations", map[string]any{
		"package_a": in.PackageA,
		"package_b": in.PackageB,
	}, false)
}

func (g *Gateway) handleNixosBuild(ctx context.Context, req *mcp.CallToolRequest, in nixosBuildInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"machine": in.Machine}
	if in.FlakeRef != "" {
		params["flake_ref"] = in.FlakeRef
	}
	return g.invoke(ctx, "nixos_build", params, false)
}
