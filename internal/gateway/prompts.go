package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerPrompts adds the prompt library: canned starting points for
// flake authoring, environment setup, build debugging, migration, and
// closure tuning. Prompts only template text; they never run tools.
func (g *Gateway) registerPrompts() {
	g.server.AddPrompt(&mcp.Prompt{
		Name:        "generate_flake",
		Description: "Generate a Nix flake template based on requirements",
		Arguments: []*mcp.PromptArgument{
			{Name: "project_type", Description: "Project type, e.g. rust, python, nodejs, go (default: generic)"},
		},
	}, g.promptGenerateFlake)

	g.server.AddPrompt(&mcp.Prompt{
		Name:        "setup_dev_environment",
		Description: "Guide for setting up a Nix development environment for a specific project type",
		Arguments: []*mcp.PromptArgument{
			{Name: "project_type", Description: "Project type, e.g. rust, python, nodejs, go, c, generic", Required: true},
			{Name: "dependencies", Description: "Additional tools or dependencies, comma separated"},
			{Name: "use_flakes", Description: "Whether to use flakes (default: true)"},
		},
	}, g.promptSetupDevEnvironment)

	g.server.AddPrompt(&mcp.Prompt{
		Name:        "troubleshoot_build",
		Description: "Help troubleshoot Nix build failures with diagnostic guidance",
		Arguments: []*mcp.PromptArgument{
			{Name: "package", Description: "Package or flake reference that fails to build", Required: true},
			{Name: "error_message", Description: "Error message or build log excerpt"},
		},
	}, g.promptTroubleshootBuild)

	g.server.AddPrompt(&mcp.Prompt{
		Name:        "migrate_to_flakes",
		Description: "Guide for migrating existing projects to Nix flakes",
		Arguments: []*mcp.PromptArgument{
			{Name: "current_setup", Description: "Current setup, e.g. using nix-shell, using configuration.nix", Required: true},
			{Name: "project_type", Description: "Project type if applicable"},
		},
	}, g.promptMigrateToFlakes)

	g.server.AddPrompt(&mcp.Prompt{
		Name:        "optimize_closure",
		Description: "Help optimize package closure size with actionable recommendations",
		Arguments: []*mcp.PromptArgument{
			{Name: "package", Description: "Package to optimize", Required: true},
			{Name: "current_size", Description: "Current closure size if known"},
			{Name: "target", Description: "Target size or reduction goal"},
		},
	}, g.promptOptimizeClosure)
}

// promptArg reads one argument with a fallback for absent values.
func promptArg(req *mcp.GetPromptRequest, name, def string) string {
	if req.Params != nil {
		if v, ok := req.Params.Arguments[name]; ok && v != "" {
			return v
		}
	}
	return def
}

func requirePromptArg(req *mcp.GetPromptRequest, prompt, name string) (string, error) {
	v := promptArg(req, name, "")
	if v == "" {
		return "", fmt.Errorf("%s: missing required argument %q", prompt, name)
	}
	return v, nil
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text}},
		},
	}
}

func (g *Gateway) promptGenerateFlake(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectType := promptArg(req, "project_type", "generic")
	text := fmt.Sprintf(
		"Generate a Nix flake.nix file for a %s project. Include appropriate buildInputs, development shell, and package definition.",
		projectType)
	return userPrompt(fmt.Sprintf("Generate a %s flake", projectType), text), nil
}

func (g *Gateway) promptSetupDevEnvironment(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectType, err := requirePromptArg(req, "setup_dev_environment", "project_type")
	if err != nil {
		return nil, err
	}
	deps := promptArg(req, "dependencies", "none specified")
	useFlakes := promptArg(req, "use_flakes", "true")

	text := fmt.Sprintf(
		"I need to set up a Nix development environment for a %s project.\n"+
			"Additional dependencies: %s\n"+
			"Use flakes: %s\n\n"+
			"Please provide:\n"+
			"1. A complete flake.nix (if using flakes) or shell.nix file\n"+
			"2. Explanation of the key components\n"+
			"3. Commands to enter and use the development environment\n"+
			"4. Best practices for this project type with Nix",
		projectType, deps, useFlakes)
	return userPrompt(fmt.Sprintf("Setup %s development environment", projectType), text), nil
}

func (g *Gateway) promptTroubleshootBuild(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	pkg, err := requirePromptArg(req, "troubleshoot_build", "package")
	if err != nil {
		return nil, err
	}
	var errorContext string
	if msg := promptArg(req, "error_message", ""); msg != "" {
		errorContext = "\n\nError message:\n" + msg
	}

	text := fmt.Sprintf(
		"I'm having trouble building: %s%s\n\n"+
			"Please help me:\n"+
			"1. Identify the root cause of the build failure\n"+
			"2. Suggest specific debugging commands to run (like nix log, nix why-depends, etc.)\n"+
			"3. Provide potential solutions or workarounds\n"+
			"4. Explain common patterns that might cause this issue\n"+
			"5. Recommend preventive measures for the future",
		pkg, errorContext)
	return userPrompt(fmt.Sprintf("Troubleshoot build failure for %s", pkg), text), nil
}

func (g *Gateway) promptMigrateToFlakes(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	currentSetup, err := requirePromptArg(req, "migrate_to_flakes", "current_setup")
	if err != nil {
		return nil, err
	}
	var projectContext string
	if p := promptArg(req, "project_type", ""); p != "" {
		projectContext = fmt.Sprintf(" for a %s project", p)
	}

	text := fmt.Sprintf(
		"I want to migrate to Nix flakes%s.\n"+
			"Current setup: %s\n\n"+
			"Please provide:\n"+
			"1. Step-by-step migration plan\n"+
			"2. Example flake.nix based on my current setup\n"+
			"3. How to handle inputs and lock files\n"+
			"4. Common pitfalls to avoid\n"+
			"5. Benefits I'll gain from using flakes\n"+
			"6. Backward compatibility considerations",
		projectContext, currentSetup)
	return userPrompt("Migrate to Nix flakes", text), nil
}

func (g *Gateway) promptOptimizeClosure(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	pkg, err := requirePromptArg(req, "optimize_closure", "package")
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I need to optimize the closure size for: %s", pkg)
	if size := promptArg(req, "current_size", ""); size != "" {
		fmt.Fprintf(&b, "\nCurrent closure size: %s", size)
	}
	if target := promptArg(req, "target", ""); target != "" {
		fmt.Fprintf(&b, "\nTarget: %s", target)
	}
	b.WriteString("\n\n" +
		"Please help me:\n" +
		"1. Analyze dependency tree to identify large dependencies\n" +
		"2. Suggest specific packages or features to remove or replace\n" +
		"3. Provide Nix expressions to create minimal variants\n" +
		"4. Recommend build flags or overrides to reduce size\n" +
		"5. Explain trade-offs between size and functionality\n" +
		"6. Show how to measure and verify improvements")

	return userPrompt(fmt.Sprintf("Optimize closure for %s", pkg), b.String()), nil
}
