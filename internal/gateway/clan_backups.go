package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type clanBackupCreateInput struct {
	Machine  string `json:"machine" jsonschema:"Machine to back up"`
	Provider string `json:"provider,omitempty" jsonschema:"Backup provider to use (default: all configured providers)"`
	Flake    string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
}

type clanBackupListInput struct {
	Machine  string `json:"machine" jsonschema:"Machine whose backups to list"`
	Provider string `json:"provider,omitempty" jsonschema:"Restrict listing to one provider"`
	Flake    string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
}

type clanBackupRestoreInput struct {
	Machine  string `json:"machine" jsonschema:"Machine to restore"`
	Provider string `json:"provider" jsonschema:"Backup provider holding the archive"`
	Name     string `json:"name" jsonschema:"Backup archive name"`
	Service  string `json:"service,omitempty" jsonschema:"Restore only this service"`
	Flake    string `json:"flake,omitempty" jsonschema:"Clan flake directory (default: .)"`
	Confirm  bool   `json:"confirm,omitempty" jsonschema:"Must be true to run this destructive operation"`
}

func (g *Gateway) registerClanBackupTools() {
	addTool(g, "clan_backup_create", g.handleClanBackupCreate)
	addTool(g, "clan_backup_list", g.handleClanBackupList)
	addTool(g, "clan_backup_restore", g.handleClanBackupRestore)
}

func (g *Gateway) handleClanBackupCreate(ctx context.Context, req *mcp.CallToolRequest, in clanBackupCreateInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"machine": in.Machine}
	if in.Provider != "" {
		params["provider"] = in.Provider
	}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_backup_create", params, false)
}

func (g *Gateway) handleClanBackupList(ctx context.Context, req *mcp.CallToolRequest, in clanBackupListInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{"machine": in.Machine}
	if in.Provider != "" {
		params["provider"] = in.Provider
	}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_backup_list", params, false)
}

func (g *Gateway) handleClanBackupRestore(ctx context.Context, req *mcp.CallToolRequest, in clanBackupRestoreInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{
		"machine":  in.Machine,
		"provider": in.Provider,
		"name":     in.Name,
	}
	if in.Service != "" {
		params["service"] = in.Service
	}
	if in.Flake != "" {
		params["flake"] = in.Flake
	}
	return g.invoke(ctx, "clan_backup_restore", params, in.Confirm)
}
