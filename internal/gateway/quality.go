package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nixgate/nixgate/internal/dispatch"
	"github.com/nixgate/nixgate/internal/validate"
)

type nixCodeInput struct {
	Code string `json:"code" jsonschema:"Nix source code"`
}

type nixFmtInput struct {
	Paths []string `json:"paths,omitempty" jsonschema:"Files or directories to format (default: whole flake)"`
}

type lintNixInput struct {
	Code   string `json:"code" jsonschema:"Nix source code to lint"`
	Linter string `json:"linter,omitempty" jsonschema:"Which linter to run: statix, deadnix, or all (default: all)"`
}

func (g *Gateway) registerQualityTools() {
	addTool(g, "format_nix", g.handleFormatNix)
	addTool(g, "nix_fmt", g.handleNixFmt)
	addTool(g, "validate_nix", g.handleValidateNix)

	// lint_nix fans out to the statix and deadnix catalog entries, so it
	// is offered whenever at least one of them survived overrides.
	_, statix := g.registry.Lookup("lint_statix")
	_, deadnix := g.registry.Lookup("lint_deadnix")
	if statix || deadnix {
		mcp.AddTool(g.server, &mcp.Tool{
			Name:        "lint_nix",
			Description: "Lint Nix source code with statix and deadnix and report findings",
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
		}, g.handleLintNix)
	}
}

func (g *Gateway) handleFormatNix(ctx context.Context, req *mcp.CallToolRequest, in nixCodeInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "format_nix", map[string]any{"code": in.Code}, false)
}

func (g *Gateway) handleNixFmt(ctx context.Context, req *mcp.CallToolRequest, in nixFmtInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if len(in.Paths) > 0 {
		params["paths"] = in.Paths
	}
	return g.invoke(ctx, "nix_fmt", params, false)
}

func (g *Gateway) handleValidateNix(ctx context.Context, req *mcp.CallToolRequest, in nixCodeInput) (*mcp.CallToolResult, any, error) {
	return g.invoke(ctx, "validate_nix", map[string]any{"code": in.Code}, false)
}

// handleLintNix validates the expression, writes it to a temp file, and
// runs each enabled linter against that file. Linter exit codes signal
// findings, not failures, so non-zero exits render in-band.
func (g *Gateway) handleLintNix(ctx context.Context, req *mcp.CallToolRequest, in lintNixInput) (*mcp.CallToolResult, any, error) {
	switch in.Linter {
	case "", "all", "statix", "deadnix":
	default:
		return nil, nil, fmt.Errorf("lint_nix: unknown linter %q", in.Linter)
	}

	code, err := g.engine.Validate(validate.ClassNixExpression, "lint_nix.code", in.Code)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.CreateTemp("", "nixgate-lint-*.nix")
	if err != nil {
		return nil, nil, fmt.Errorf("lint_nix: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.WriteString(code.String()); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("lint_nix: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, nil, fmt.Errorf("lint_nix: %w", err)
	}

	var sections []string
	for _, l := range []struct {
		label string
		tool  string
	}{
		{"statix", "lint_statix"},
		{"deadnix", "lint_deadnix"},
	} {
		if in.Linter != "" && in.Linter != "all" && in.Linter != l.label {
			continue
		}
		if _, ok := g.registry.Lookup(l.tool); !ok {
			continue
		}
		text, err := g.runLinter(ctx, l.tool, path)
		if err != nil {
			return nil, nil, err
		}
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", l.label, text))
	}
	if len(sections) == 0 {
		return nil, nil, fmt.Errorf("lint_nix: no linters available")
	}
	return textResult(strings.Join(sections, "\n\n")), nil, nil
}

func (g *Gateway) runLinter(ctx context.Context, tool, path string) (string, error) {
	res, err := g.dispatcher.Dispatch(ctx, dispatch.Request{
		Tool:   tool,
		Params: map[string]any{"path": path},
	})
	if err != nil {
		var callErr *dispatch.ExternalCallError
		if errors.As(err, &callErr) && callErr.ExitCode >= 0 {
			return renderOutput(res.Output), nil
		}
		return "", err
	}
	out := renderOutput(res.Output)
	if strings.HasPrefix(out, "Command completed") {
		return "no issues found", nil
	}
	return out, nil
}
