package gateway

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/nixgate/nixgate/internal/audit"
	"github.com/nixgate/nixgate/internal/cache"
	"github.com/nixgate/nixgate/internal/command"
	"github.com/nixgate/nixgate/internal/dispatch"
	"github.com/nixgate/nixgate/internal/registry"
	"github.com/nixgate/nixgate/internal/validate"
)

type stubRunner struct {
	mu    sync.Mutex
	calls []command.Spec
	out   command.Output
	err   error
}

func (r *stubRunner) Run(ctx context.Context, spec command.Spec, timeout time.Duration) (command.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, spec)
	return r.out, r.err
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *stubRunner) lastCall(t *testing.T) command.Spec {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatal("no command was run")
	}
	return r.calls[len(r.calls)-1]
}

// setupTestSession wires the full catalog behind a stub runner and
// connects a real MCP client over in-memory transports.
func setupTestSession(t *testing.T, runner command.Runner) (*mcp.ClientSession, *Gateway) {
	t.Helper()
	logger := zap.NewNop()
	auditLog := audit.NewLogger(logger)
	engine := validate.NewEngine(auditLog, logger)
	reg := registry.MustCatalog()

	dispatcher, err := dispatch.New(dispatch.Config{
		Registry: reg,
		Engine:   engine,
		Runner:   runner,
		Caches:   cache.NewSet[command.Output](nil),
		Audit:    auditLog,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}

	g := New(Config{
		Dispatcher: dispatcher,
		Registry:   reg,
		Engine:     engine,
		Logger:     logger,
		Version:    "test",
	})

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := g.Connect(ctx, serverTransport)
	if err != nil {
		t.Fatalf("Connect server: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("Connect client: %v", err)
	}

	t.Cleanup(func() {
		_ = clientSession.Close()
		_ = serverSession.Wait()
	})
	return clientSession, g
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestGateway_ToolListing(t *testing.T) {
	session, g := setupTestSession(t, &stubRunner{})

	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	byName := make(map[string]*mcp.Tool, len(res.Tools))
	for _, tool := range res.Tools {
		byName[tool.Name] = tool
	}

	// Every catalog entry is served except the two linters, which hide
	// behind the composite lint_nix tool.
	if want := g.registry.Len() - 1; len(res.Tools) != want {
		t.Fatalf("tools listed = %d, want %d", len(res.Tools), want)
	}
	if _, ok := byName["lint_nix"]; !ok {
		t.Fatal("lint_nix missing from listing")
	}
	if _, ok := byName["lint_statix"]; ok {
		t.Fatal("lint_statix must not be listed directly")
	}

	search, ok := byName["search_packages"]
	if !ok {
		t.Fatal("search_packages missing from listing")
	}
	if search.Annotations == nil || !search.Annotations.ReadOnlyHint {
		t.Fatalf("search_packages annotations = %+v, want read-only hint", search.Annotations)
	}

	install, ok := byName["clan_machine_install"]
	if !ok {
		t.Fatal("clan_machine_install missing from listing")
	}
	if install.Annotations == nil || install.Annotations.DestructiveHint == nil || !*install.Annotations.DestructiveHint {
		t.Fatalf("clan_machine_install annotations = %+v, want destructive hint", install.Annotations)
	}
}

func TestGateway_InvokeRunsCommand(t *testing.T) {
	runner := &stubRunner{out: command.Output{Stdout: `{"nixpkgs.ripgrep":{}}`}}
	session, _ := setupTestSession(t, runner)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_packages",
		Arguments: map[string]any{"query": "ripgrep"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); !strings.Contains(got, "ripgrep") {
		t.Fatalf("result text = %q", got)
	}

	spec := runner.lastCall(t)
	if spec.Path != "nix" {
		t.Fatalf("path = %q, want nix", spec.Path)
	}
	want := []string{"search", "nixpkgs", "ripgrep", "--json"}
	if len(spec.Args) != len(want) {
		t.Fatalf("args = %v, want %v", spec.Args, want)
	}
	for i := range want {
		if spec.Args[i] != want[i] {
			t.Fatalf("args = %v, want %v", spec.Args, want)
		}
	}
}

func TestGateway_DestructiveRequiresConfirm(t *testing.T) {
	runner := &stubRunner{out: command.Output{Stdout: "deleted"}}
	session, _ := setupTestSession(t, runner)
	ctx := context.Background()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "clan_machine_delete",
		Arguments: map[string]any{"name": "web01"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("unconfirmed destructive call must fail")
	}
	if got := resultText(t, res); !strings.Contains(got, "confirmation required") {
		t.Fatalf("error text = %q", got)
	}
	if runner.callCount() != 0 {
		t.Fatal("command must not run without confirmation")
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "clan_machine_delete",
		Arguments: map[string]any{"name": "web01", "confirm": true},
	})
	if err != nil {
		t.Fatalf("confirmed CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("confirmed call failed: %s", resultText(t, res))
	}
	if runner.callCount() != 1 {
		t.Fatalf("runner calls = %d, want 1", runner.callCount())
	}
}

func TestGateway_InjectionRejected(t *testing.T) {
	runner := &stubRunner{}
	session, _ := setupTestSession(t, runner)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "flake_metadata",
		Arguments: map[string]any{"flake_ref": "github:owner/repo;rm -rf /"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("metacharacter in flake_ref must be rejected")
	}
	if runner.callCount() != 0 {
		t.Fatal("command must not run after rejection")
	}
}

func TestGateway_FailedCommandRenderedInBand(t *testing.T) {
	runner := &stubRunner{out: command.Output{Stderr: "error: attribute missing", ExitCode: 1}}
	session, _ := setupTestSession(t, runner)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "nix_build",
		Arguments: map[string]any{"package": "nixpkgs#nonexistent"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	// A command that ran and failed is data for the caller, not a
	// protocol error.
	if res.IsError {
		t.Fatalf("non-zero exit must render in-band, got error: %s", resultText(t, res))
	}
	text := resultText(t, res)
	if !strings.Contains(text, "Command failed (exit code: 1)") {
		t.Fatalf("text = %q", text)
	}
	if !strings.Contains(text, "attribute missing") {
		t.Fatalf("text = %q, want stderr excerpt", text)
	}
}

func TestGateway_StdinToolRoutesCode(t *testing.T) {
	runner := &stubRunner{out: command.Output{Stdout: "{ }\n"}}
	session, _ := setupTestSession(t, runner)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "format_nix",
		Arguments: map[string]any{"code": "{}"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("format_nix failed: %s", resultText(t, res))
	}
	spec := runner.lastCall(t)
	if spec.Path != "nixpkgs-fmt" || spec.Stdin != "{}" {
		t.Fatalf("spec = %+v, want code on stdin", spec)
	}
	if len(spec.Args) != 0 {
		t.Fatalf("args = %v, want none", spec.Args)
	}
}

func TestGateway_Prompts(t *testing.T) {
	session, _ := setupTestSession(t, &stubRunner{})
	ctx := context.Background()

	list, err := session.ListPrompts(ctx, &mcp.ListPromptsParams{})
	if err != nil {
		t.Fatalf("ListPrompts: %v", err)
	}
	want := map[string]bool{
		"generate_flake":        false,
		"setup_dev_environment": false,
		"troubleshoot_build":    false,
		"migrate_to_flakes":     false,
		"optimize_closure":      false,
	}
	for _, p := range list.Prompts {
		if _, ok := want[p.Name]; ok {
			want[p.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("prompt %s not listed", name)
		}
	}

	res, err := session.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      "troubleshoot_build",
		Arguments: map[string]string{"package": "nixpkgs#hello", "error_message": "builder failed"},
	})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(res.Messages))
	}
	tc, ok := res.Messages[0].Content.(*mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want text", res.Messages[0].Content)
	}
	if !strings.Contains(tc.Text, "nixpkgs#hello") || !strings.Contains(tc.Text, "builder failed") {
		t.Fatalf("prompt text = %q", tc.Text)
	}

	// Required arguments are enforced.
	if _, err := session.GetPrompt(ctx, &mcp.GetPromptParams{Name: "troubleshoot_build"}); err == nil {
		t.Fatal("missing required prompt argument must fail")
	}
}

func TestGateway_DisabledToolsNotServed(t *testing.T) {
	descs, err := registry.Overrides{
		Disabled: []string{"comma", "lint_statix", "lint_deadnix"},
	}.Apply(registry.Catalog())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	reg, err := registry.New(descs)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	logger := zap.NewNop()
	auditLog := audit.NewLogger(logger)
	engine := validate.NewEngine(auditLog, logger)
	dispatcher, err := dispatch.New(dispatch.Config{
		Registry: reg,
		Engine:   engine,
		Runner:   &stubRunner{},
		Caches:   cache.NewSet[command.Output](nil),
		Audit:    auditLog,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	g := New(Config{Dispatcher: dispatcher, Registry: reg, Engine: engine, Logger: logger, Version: "test"})

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := g.Connect(ctx, serverTransport)
	if err != nil {
		t.Fatalf("Connect server: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("Connect client: %v", err)
	}
	defer func() {
		_ = session.Close()
		_ = serverSession.Wait()
	}()

	list, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	for _, tool := range list.Tools {
		switch tool.Name {
		case "comma":
			t.Fatal("disabled tool still listed")
		case "lint_nix":
			// With both linters disabled the composite has nothing to
			// fan out to and must disappear as well.
			t.Fatal("lint_nix listed with both linters disabled")
		}
	}

	if _, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "comma",
		Arguments: map[string]any{"command": "htop"},
	}); err == nil {
		t.Fatal("calling a disabled tool must fail at the protocol layer")
	}
}

func TestRenderOutput(t *testing.T) {
	tests := []struct {
		name string
		out  command.Output
		want []string
	}{
		{
			name: "stdout only",
			out:  command.Output{Stdout: "hello\n"},
			want: []string{"hello"},
		},
		{
			name: "stderr labelled",
			out:  command.Output{Stdout: "partial", Stderr: "warning: deprecated"},
			want: []string{"partial", "STDERR:", "warning: deprecated"},
		},
		{
			name: "failure header",
			out:  command.Output{Stderr: "boom", ExitCode: 2},
			want: []string{"Command failed (exit code: 2)", "boom"},
		},
		{
			name: "silent success",
			out:  command.Output{},
			want: []string{"Command completed (exit code: 0)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderOutput(tt.out)
			for _, frag := range tt.want {
				if !strings.Contains(got, frag) {
					t.Fatalf("renderOutput = %q, want fragment %q", got, frag)
				}
			}
		})
	}
}
