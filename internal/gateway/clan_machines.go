package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type clanMachineCreateInput struct {
	Name       string `json:"name" jsonschema:"Name for the new machine"`
	Template   string `json:"template,omitempty" jsonschema:"Machine template to instantiate"`
	TargetHost string `json:"target_host,omitempty" jsonschema:"SSH target host for deployment"`
	Flake      string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
}

type clanMachineListInput struct {
	Flake string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
}

type clanMachineUpdateInput struct {
	Machines []string `json:"machines" jsonschema:"Machines to update and redeploy"`
	Flake    string   `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
	Confirm  bool     `json:"confirm,omitempty" jsonschema:"Must be true to run this destructive operation"`
}

type clanMachineDeleteInput struct {
	Name    string `json:"name" jsonschema:"Machine to delete"`
	Flake   string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
	Confirm bool   `json:"confirm,omitempty" jsonschema:"Must be true to run this destructive operation"`
}

type clanMachineInstallInput struct {
	Machine    string `json:"machine" jsonschema:"Machine configuration to install"`
	TargetHost string `json:"target_host" jsonschema:"SSH target host to install onto"`
	Flake      string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
	Confirm    bool   `json:"confirm,omitempty" jsonschema:"Must be true to run this destructive operation"`
}

type clanMachineBuildInput struct {
	Machine string `json:"machine" jsonschema:"Machine configuration to build locally"`
	Flake   string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
}

func (g *Gateway) registerClanMachineTools() {
	addTool(g, "clan_machine_create", g.handleClanMachineCreate)
	addTool(g, "clan_machine_list", g.handleClanMachineList)
	addTool(g, "clan_machine_update", g.handleClanMachineUpdate)
	addTool(g, "clan_machine_delete", g.handleClanMachineDelete)
	addTool(g, "clan_machine_install", g.handleClanMachineInstall)
	addTool(g, "clan_machine_build", g.handleClanMachineBuild)
}

func (g *Gateway) handleClanMachineCreate(ctx context.Context, req *mcp.CallToolRequest, in clanMachineCreateInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"name": in.Name}
	if in.Template != "" {
		params["template"] = in.Template
	}
	if in.TargetHost != "" {
		params["target_host"] = in.TargetHost
	}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_machine_create", params, false)
}

func (g *Gateway) handleClanMachineList(ctx context.Context, req *mcp.CallToolRequest, in clanMachineListInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_machine_list", params, false)
}

func (g *Gateway) handleClanMachineUpdate(ctx context.Context, req *mcp.CallToolRequest, in clanMachineUpdateInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"machines": in.Machines}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_machine_update", params, in.Confirm)
}

func (g *Gateway) handleClanMachineDelete(ctx context.Context, req *mcp.CallToolRequest, in clanMachineDeleteInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"name": in.Name}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_machine_delete", params, in.Confirm)
}

func (g *Gateway) handleClanMachineInstall(ctx context.Context, req *mcp.CallToolRequest, in clanMachineInstallInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{
		"machine":     in.Machine,
		"target_host": in.TargetHost,
	}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_machine_install", params, in.Confirm)
}

func (g *Gateway) handleClanMachineBuild(ctx context.Context, req *mcp.CallToolRequest, in clanMachineBuildInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"machine": in.Machine}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_machine_build", params, false)
}
