// Package gateway exposes the tool catalog over the Model Context
// Protocol. Handlers are thin: they reshape typed MCP inputs into
// dispatch requests and render command output as text. All policy
// (validation, confirmation, caching, timeouts, audit) lives in the
// dispatcher.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/nixgate/nixgate/internal/command"
	"github.com/nixgate/nixgate/internal/dispatch"
	"github.com/nixgate/nixgate/internal/registry"
	"github.com/nixgate/nixgate/internal/validate"
)

const instructions = `nixgate exposes a curated set of Nix, clan, pueue, and pexpect commands as tools.
Every invocation is validated parameter by parameter, executed directly (never through a shell)
with a per-class timeout, and recorded in a tamper-evident audit trail.

Destructive tools (machine update/install/delete, backup restore, queue removal) only run when
called with confirm=true. Read-only query results may be served from a short-lived cache.`

// Gateway is the MCP server for the tool catalog.
type Gateway struct {
	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	engine     *validate.Engine
	logger     *zap.Logger
	server     *mcp.Server
}

// Config wires a Gateway.
type Config struct {
	Dispatcher *dispatch.Dispatcher
	Registry   *registry.Registry
	Engine     *validate.Engine
	Logger     *zap.Logger
	Version    string
}

// New builds the MCP server and registers every enabled tool family
// plus the prompt library.
func New(cfg Config) *Gateway {
	g := &Gateway{
		dispatcher: cfg.Dispatcher,
		registry:   cfg.Registry,
		engine:     cfg.Engine,
		logger:     cfg.Logger,
	}
	g.server = mcp.NewServer(&mcp.Implementation{
		Name:    "nixgate",
		Title:   "Nix tool gateway",
		Version: cfg.Version,
	}, &mcp.ServerOptions{Instructions: instructions})

	g.registerPackageTools()
	g.registerBuildTools()
	g.registerFlakeTools()
	g.registerDevelopTools()
	g.registerQualityTools()
	g.registerClanMachineTools()
	g.registerClanBackupTools()
	g.registerClanAnalysisTools()
	g.registerDevTools()
	g.registerPueueTools()
	g.registerPexpectTools()
	g.registerPrompts()

	return g
}

// Run serves MCP over stdio until ctx is cancelled or the client
// disconnects.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("serving MCP over stdio", zap.Int("tools", g.registry.Len()))
	return g.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches the server to an arbitrary transport. Used by tests
// with in-memory transports.
func (g *Gateway) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return g.server.Connect(ctx, t, nil)
}

// addTool registers a handler for the named catalog tool. Tools removed
// by overrides are silently skipped, so disabled tools never appear in
// the MCP listing.
func addTool[In any](g *Gateway, name string, handler mcp.ToolHandlerFor[In, any]) {
	d, ok := g.registry.Lookup(name)
	if !ok {
		g.logger.Debug("tool disabled, not registered", zap.String("tool_name", name))
		return
	}
	mcp.AddTool(g.server, &mcp.Tool{
		Name:        d.Name,
		Description: d.Description,
		Annotations: annotationsFor(d),
	}, handler)
}

func boolPtr(b bool) *bool { return &b }

func annotationsFor(d *registry.ToolDescriptor) *mcp.ToolAnnotations {
	switch d.Safety {
	case registry.SafetyReadOnly:
		return &mcp.ToolAnnotations{ReadOnlyHint: true}
	case registry.SafetyDestructive:
		return &mcp.ToolAnnotations{DestructiveHint: boolPtr(true)}
	default:
		return &mcp.ToolAnnotations{DestructiveHint: boolPtr(false), IdempotentHint: true}
	}
}

// invoke funnels a tool call through the dispatcher. Commands that ran
// but exited non-zero are rendered as text so the caller sees stderr;
// everything else surfaces as a tool error.
func (g *Gateway) invoke(ctx context.Context, tool string, params map[string]any, confirm bool) (*mcp.CallToolResult, any, error) {
	res, err := g.dispatcher.Dispatch(ctx, dispatch.Request{Tool: tool, Params: params, Confirm: confirm})
	if err != nil {
		var callErr *dispatch.ExternalCallError
		if errors.As(err, &callErr) && callErr.ExitCode >= 0 {
			return textResult(renderOutput(res.Output)), nil, nil
		}
		return nil, nil, err
	}
	return textResult(renderOutput(res.Output)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// renderOutput combines captured streams into one text block. The
// gateway never interprets tool output; it only labels the streams and
// reports silent completions.
func renderOutput(out command.Output) string {
	var b strings.Builder
	if out.ExitCode != 0 {
		fmt.Fprintf(&b, "Command failed (exit code: %d)\n", out.ExitCode)
	}
	if out.Stdout != "" {
		b.WriteString(out.Stdout)
	}
	if out.Stderr != "" {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		b.WriteString("STDERR:\n")
		b.WriteString(out.Stderr)
	}
	if strings.TrimSpace(b.String()) == "" {
		return fmt.Sprintf("Command completed (exit code: %d)", out.ExitCode)
	}
	return b.String()
}

type emptyInput struct{}
