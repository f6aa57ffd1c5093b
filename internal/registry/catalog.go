package registry

import (
	"encoding/json"
	"fmt"

	"github.com/nixgate/nixgate/internal/cache"
	"github.com/nixgate/nixgate/internal/command"
	"github.com/nixgate/nixgate/internal/validate"
)

// mustSchema parses a JSON schema document at init time. Going through
// encoding/json keeps the schema's number literals as float64, the same
// representation request arguments decode to.
func mustSchema(doc string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		panic(fmt.Sprintf("mustSchema: %v", err))
	}
	return m
}

// pueuePrefix is the shared argv prefix for pueue tools; pueue itself
// is fetched through the flake registry rather than assumed installed.
func pueuePrefix(rest ...command.Arg) []command.Arg {
	args := []command.Arg{command.Lit("run"), command.Lit("nixpkgs#pueue"), command.Lit("--")}
	return append(args, rest...)
}

// pexpectPrefix is the shared argv prefix for pexpect session tools.
func pexpectPrefix(rest ...command.Arg) []command.Arg {
	args := []command.Arg{command.Lit("run"), command.Lit("nixpkgs#python3Packages.pexpect-cli"), command.Lit("--")}
	return append(args, rest...)
}

// Catalog returns the built-in tool set. Callers pass the result to
// New, usually after applying config or database overrides.
func Catalog() []*ToolDescriptor {
	return []*ToolDescriptor{
		// --- nix/packages -------------------------------------------------

		{
			Name:        "search_packages",
			Family:      "nix/packages",
			Description: "Search nixpkgs for packages matching a query string.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "query", Class: validate.ClassPackageName, Required: true},
				{Name: "limit", Class: validate.ClassIdentifier, Type: TypeInt, Default: "10"},
			},
			Cache: &CachePolicy{Family: cache.FamilySearch, TTL: cache.FamilySearch.TTL(), KeyTemplate: "{query}:{limit}"},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("search"), command.Lit("nixpkgs"), command.Param("query"), command.Lit("--json")},
			},
			ArgsSchema: mustSchema(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "minLength": 1},
					"limit": {"type": "integer", "minimum": 1, "maximum": 100}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "get_package_info",
			Family:      "nix/packages",
			Description: "Evaluate a package attribute and return its metadata as JSON.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "package", Class: validate.ClassFlakeRef, Required: true},
			},
			Cache: &CachePolicy{Family: cache.FamilyPackageInfo, TTL: cache.FamilyPackageInfo.TTL(), KeyTemplate: "{package}"},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("eval"), command.Param("package"), command.Lit("--json")},
			},
		},
		{
			Name:        "explain_package",
			Family:      "nix/packages",
			Description: "Show the meta attribute set of a nixpkgs package (description, license, maintainers).",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "package", Class: validate.ClassPackageName, Required: true},
			},
			Exec: command.Template{
				Exe: "nix",
				Args: []command.Arg{
					command.Lit("eval"), command.Lit("--json"),
					command.Concat(command.Lit("nixpkgs#"), command.Param("package"), command.Lit(".meta")),
				},
			},
		},
		{
			Name:        "find_command",
			Family:      "nix/packages",
			Description: "Find which top-level packages provide a command name.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "command", Class: validate.ClassShellCommand, Required: true},
			},
			Exec: command.Template{
				Exe: "nix-locate",
				Args: []command.Arg{
					command.Lit("--top-level"), command.Lit("--whole-name"),
					command.Concat(command.Lit("/bin/"), command.Param("command")),
				},
			},
		},
		{
			Name:        "nix_locate",
			Family:      "nix/packages",
			Description: "Locate packages that install a given file path.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "path", Class: validate.ClassPath, Required: true},
				{Name: "limit", Class: validate.ClassIdentifier, Type: TypeInt, Default: "20"},
			},
			Cache: &CachePolicy{Family: cache.FamilyLocate, TTL: cache.FamilyLocate.TTL(), KeyTemplate: "{path}:{limit}"},
			Exec: command.Template{
				Exe:  "nix-locate",
				Args: []command.Arg{command.Lit("--whole-name"), command.Param("path")},
			},
		},
		{
			Name:        "comma",
			Family:      "nix/packages",
			Description: "Run a command without installing it, via comma (,).",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutBuild,
			Params: []ParamSpec{
				{Name: "command", Class: validate.ClassShellCommand, Required: true},
				{Name: "args", Class: validate.ClassShellCommand, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe:  ",",
				Args: []command.Arg{command.Param("command"), command.Rest("args")},
			},
		},

		// --- nix/build ----------------------------------------------------

		{
			Name:        "nix_build",
			Family:      "nix/build",
			Description: "Build a flake output or nixpkgs attribute, optionally as a dry run.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutBuild,
			Params: []ParamSpec{
				{Name: "package", Class: validate.ClassFlakeRef, Required: true},
				{Name: "dry_run", Type: TypeBool},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("build"), command.Switch("--dry-run", "dry_run"), command.Param("package"), command.Lit("--json")},
			},
		},
		{
			Name:        "why_depends",
			Family:      "nix/build",
			Description: "Explain why one store path depends on another.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "package", Class: validate.ClassFlakeRef, Required: true},
				{Name: "dependency", Class: validate.ClassFlakeRef, Required: true},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("why-depends"), command.Param("package"), command.Param("dependency")},
			},
		},
		{
			Name:        "show_derivation",
			Family:      "nix/build",
			Description: "Show the derivation of a package as JSON.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "package", Class: validate.ClassFlakeRef, Required: true},
			},
			Cache: &CachePolicy{Family: cache.FamilyDerivation, TTL: cache.FamilyDerivation.TTL(), KeyTemplate: "{package}"},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("derivation"), command.Lit("show"), command.Param("package")},
			},
		},
		{
			Name:        "get_closure_size",
			Family:      "nix/build",
			Description: "Report the closure size of a package's store path.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "package", Class: validate.ClassFlakeRef, Required: true},
			},
			Cache: &CachePolicy{Family: cache.FamilyClosureSize, TTL: cache.FamilyClosureSize.TTL(), KeyTemplate: "{package}"},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("path-info"), command.Lit("-S"), command.Param("package")},
			},
		},
		{
			Name:        "get_build_log",
			Family:      "nix/build",
			Description: "Fetch the build log of a package.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "package", Class: validate.ClassFlakeRef, Required: true},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("log"), command.Param("package")},
			},
		},
		{
			Name:        "diff_derivations",
			Family:      "nix/build",
			Description: "Diff the closures of two packages or store paths.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "package_a", Class: validate.ClassFlakeRef, Required: true},
				{Name: "package_b", Class: validate.ClassFlakeRef, Required: true},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("store"), command.Lit("diff-closures"), command.Param("package_a"), command.Param("package_b")},
			},
		},
		{
			Name:        "nixos_build",
			Family:      "nix/build",
			Description: "Build the system toplevel of a NixOS configuration from a flake.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutBuild,
			Params: []ParamSpec{
				{Name: "machine", Class: validate.ClassMachineName, Required: true},
				{Name: "flake_ref", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe: "nix",
				Args: []command.Arg{
					command.Lit("build"),
					command.Concat(
						command.Param("flake_ref"),
						command.Lit("#nixosConfigurations."),
						command.Param("machine"),
						command.Lit(".config.system.build.toplevel"),
					),
				},
			},
		},

		// --- nix/flakes ---------------------------------------------------

		{
			Name:        "flake_metadata",
			Family:      "nix/flakes",
			Description: "Show flake metadata (inputs, locks, revision) as JSON.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "flake_ref", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("flake"), command.Lit("metadata"), command.Lit("--json"), command.Param("flake_ref")},
			},
		},
		{
			Name:        "flake_show",
			Family:      "nix/flakes",
			Description: "List the outputs a flake provides as JSON.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "flake_ref", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("flake"), command.Lit("show"), command.Param("flake_ref"), command.Lit("--json")},
			},
		},
		{
			Name:        "prefetch_url",
			Family:      "nix/flakes",
			Description: "Download a URL into the store and report its hash.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "url", Class: validate.ClassURL, Required: true},
			},
			Cache: &CachePolicy{Family: cache.FamilyPrefetch, TTL: cache.FamilyPrefetch.TTL(), KeyTemplate: "{url}"},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("store"), command.Lit("prefetch-file"), command.Param("url")},
			},
		},

		// --- nix/develop --------------------------------------------------

		{
			Name:        "search_options",
			Family:      "nix/develop",
			Description: "Search NixOS module options by name.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "query", Class: validate.ClassPackageName, Required: true},
			},
			Exec: command.Template{
				Exe:  "nixos-option",
				Args: []command.Arg{command.Param("query")},
			},
		},
		{
			Name:        "nix_eval",
			Family:      "nix/develop",
			Description: "Evaluate a Nix expression and return the result.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutEval,
			Params: []ParamSpec{
				{Name: "expression", Class: validate.ClassNixExpression, Required: true},
			},
			Cache: &CachePolicy{Family: cache.FamilyEval, TTL: cache.FamilyEval.TTL(), KeyTemplate: "{expression}"},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("eval"), command.Lit("--expr"), command.Param("expression")},
			},
			ArgsSchema: mustSchema(`{
				"type": "object",
				"properties": {
					"expression": {"type": "string", "minLength": 1, "maxLength": 10000}
				},
				"required": ["expression"]
			}`),
		},
		{
			Name:        "run_in_shell",
			Family:      "nix/develop",
			Description: "Run a command inside a transient nix-shell with the given packages.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutDefault,
			Params: []ParamSpec{
				{Name: "packages", Class: validate.ClassPackageName, Required: true, Repeated: true, Type: TypeStringList},
				{Name: "command", Class: validate.ClassShellCommand, Required: true},
			},
			Exec: command.Template{
				Exe:  "nix-shell",
				Args: []command.Arg{command.FlagEach("-p", "packages"), command.Lit("--run"), command.Param("command")},
			},
			ArgsSchema: mustSchema(`{
				"type": "object",
				"properties": {
					"packages": {"type": "array", "items": {"type": "string"}, "minItems": 1},
					"command": {"type": "string", "minLength": 1}
				},
				"required": ["packages", "command"]
			}`),
		},
		{
			Name:        "nix_log",
			Family:      "nix/develop",
			Description: "Show the build log of a store path.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "store_path", Class: validate.ClassStorePath, Required: true},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("log"), command.Param("store_path")},
			},
		},
		{
			Name:        "nix_run",
			Family:      "nix/develop",
			Description: "Run a flake app or package, passing through arguments.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutBuild,
			Params: []ParamSpec{
				{Name: "package", Class: validate.ClassFlakeRef, Required: true},
				{Name: "args", Class: validate.ClassShellCommand, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("run"), command.Param("package"), command.RestDashed("args")},
			},
		},
		{
			Name:        "nix_develop",
			Family:      "nix/develop",
			Description: "Run a command inside a flake's development shell.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutBuild,
			Params: []ParamSpec{
				{Name: "flake_ref", Class: validate.ClassFlakeRef},
				{Name: "command", Class: validate.ClassShellCommand, Required: true},
				{Name: "args", Class: validate.ClassShellCommand, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe: "nix",
				Args: []command.Arg{
					command.Lit("develop"), command.Param("flake_ref"),
					command.Lit("-c"), command.Param("command"), command.Rest("args"),
				},
			},
		},

		// --- nix/quality --------------------------------------------------

		{
			Name:        "format_nix",
			Family:      "nix/quality",
			Description: "Format Nix source code with nixpkgs-fmt.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "code", Class: validate.ClassNixExpression, Required: true},
			},
			Exec: command.Template{
				Exe:        "nixpkgs-fmt",
				StdinParam: "code",
			},
		},
		{
			Name:        "nix_fmt",
			Family:      "nix/quality",
			Description: "Run the flake's configured formatter over the given paths.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "paths", Class: validate.ClassPath, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: []command.Arg{command.Lit("fmt"), command.Rest("paths")},
			},
		},
		{
			Name:        "validate_nix",
			Family:      "nix/quality",
			Description: "Parse Nix code without evaluating it, reporting syntax errors.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "code", Class: validate.ClassNixExpression, Required: true},
			},
			Exec: command.Template{
				Exe:  "nix-instantiate",
				Args: []command.Arg{command.Lit("--parse"), command.Lit("-E"), command.Param("code")},
			},
		},
		{
			Name:        "lint_statix",
			Family:      "nix/quality",
			Description: "Lint a Nix file with statix.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "path", Class: validate.ClassPath, Required: true},
			},
			Exec: command.Template{
				Exe:  "statix",
				Args: []command.Arg{command.Lit("check"), command.Param("path")},
			},
		},
		{
			Name:        "lint_deadnix",
			Family:      "nix/quality",
			Description: "Find dead code in a Nix file with deadnix.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "path", Class: validate.ClassPath, Required: true},
			},
			Exec: command.Template{
				Exe:  "deadnix",
				Args: []command.Arg{command.Param("path")},
			},
		},

		// --- clan/machines ------------------------------------------------

		{
			Name:        "clan_machine_create",
			Family:      "clan/machines",
			Description: "Create a new machine definition in a clan flake.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "name", Class: validate.ClassMachineName, Required: true},
				{Name: "template", Class: validate.ClassIdentifier},
				{Name: "target_host", Class: validate.ClassFlakeRef},
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe: "clan",
				Args: []command.Arg{
					command.Lit("machines"), command.Lit("create"), command.Param("name"),
					command.Flag("-t", "template"),
					command.Lit("--flake"), command.Param("flake"),
					command.Flag("--target-host", "target_host"),
				},
			},
		},
		{
			Name:        "clan_machine_list",
			Family:      "clan/machines",
			Description: "List the machines defined in a clan flake.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe:  "clan",
				Args: []command.Arg{command.Lit("machines"), command.Lit("list"), command.Lit("--flake"), command.Param("flake")},
			},
		},
		{
			Name:        "clan_machine_update",
			Family:      "clan/machines",
			Description: "Deploy updated configurations to one or more machines.",
			Safety:      SafetyDestructive,
			Timeout:     TimeoutBuild,
			Params: []ParamSpec{
				{Name: "machines", Class: validate.ClassMachineName, Required: true, Repeated: true, Type: TypeStringList},
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe: "clan",
				Args: []command.Arg{
					command.Lit("machines"), command.Lit("update"),
					command.Lit("--flake"), command.Param("flake"),
					command.Rest("machines"),
				},
			},
		},
		{
			Name:        "clan_machine_delete",
			Family:      "clan/machines",
			Description: "Delete a machine definition from a clan flake.",
			Safety:      SafetyDestructive,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "name", Class: validate.ClassMachineName, Required: true},
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe: "clan",
				Args: []command.Arg{
					command.Lit("machines"), command.Lit("delete"), command.Param("name"),
					command.Lit("--flake"), command.Param("flake"),
				},
			},
		},
		{
			Name:        "clan_machine_install",
			Family:      "clan/machines",
			Description: "Install a machine onto a target host, wiping the existing system.",
			Safety:      SafetyDestructive,
			Timeout:     TimeoutBuild,
			Params: []ParamSpec{
				{Name: "machine", Class: validate.ClassMachineName, Required: true},
				{Name: "target_host", Class: validate.ClassFlakeRef, Required: true},
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe: "clan",
				Args: []command.Arg{
					command.Lit("machines"), command.Lit("install"),
					command.Param("machine"), command.Param("target_host"),
					command.Lit("--flake"), command.Param("flake"),
				},
			},
			ArgsSchema: mustSchema(`{
				"type": "object",
				"properties": {
					"machine": {"type": "string", "minLength": 1},
					"target_host": {"type": "string", "minLength": 1},
					"flake": {"type": "string"}
				},
				"required": ["machine", "target_host"]
			}`),
		},
		{
			Name:        "clan_machine_build",
			Family:      "clan/machines",
			Description: "Build a machine's system toplevel locally without deploying.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutBuild,
			Params: []ParamSpec{
				{Name: "machine", Class: validate.ClassMachineName, Required: true},
				{Name: "flake", Class: validate.ClassPath, Default: "."},
			},
			Exec: command.Template{
				Exe: "nix",
				Args: []command.Arg{
					command.Lit("build"),
					command.Concat(
						command.Lit(".#nixosConfigurations."),
						command.Param("machine"),
						command.Lit(".config.system.build.toplevel"),
					),
				},
				DirParam: "flake",
			},
		},

		// --- clan/backups -------------------------------------------------

		{
			Name:        "clan_backup_create",
			Family:      "clan/backups",
			Description: "Start a backup of a machine, optionally via a specific provider.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutDefault,
			Params: []ParamSpec{
				{Name: "machine", Class: validate.ClassMachineName, Required: true},
				{Name: "provider", Class: validate.ClassIdentifier},
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe: "clan",
				Args: []command.Arg{
					command.Lit("backups"), command.Lit("create"), command.Param("machine"),
					command.Lit("--flake"), command.Param("flake"),
					command.Flag("--provider", "provider"),
				},
			},
		},
		{
			Name:        "clan_backup_list",
			Family:      "clan/backups",
			Description: "List available backups for a machine.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "machine", Class: validate.ClassMachineName, Required: true},
				{Name: "provider", Class: validate.ClassIdentifier},
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe: "clan",
				Args: []command.Arg{
					command.Lit("backups"), command.Lit("list"), command.Param("machine"),
					command.Lit("--flake"), command.Param("flake"),
					command.Flag("--provider", "provider"),
				},
			},
		},
		{
			Name:        "clan_backup_restore",
			Family:      "clan/backups",
			Description: "Restore a machine from a named backup, overwriting current state.",
			Safety:      SafetyDestructive,
			Timeout:     TimeoutDefault,
			Params: []ParamSpec{
				{Name: "machine", Class: validate.ClassMachineName, Required: true},
				{Name: "provider", Class: validate.ClassIdentifier, Required: true},
				{Name: "name", Class: validate.ClassIdentifier, Required: true},
				{Name: "service", Class: validate.ClassIdentifier},
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe: "clan",
				Args: []command.Arg{
					command.Lit("backups"), command.Lit("restore"),
					command.Param("machine"), command.Param("provider"), command.Param("name"),
					command.Lit("--flake"), command.Param("flake"),
					command.Flag("--service", "service"),
				},
			},
		},

		// --- clan/analysis ------------------------------------------------

		{
			Name:        "clan_analyze_secrets",
			Family:      "clan/analysis",
			Description: "Run the flake's secret ACL analysis app (.#acl).",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "flake", Class: validate.ClassPath, Default: "."},
			},
			Exec: command.Template{
				Exe:      "nix",
				Args:     []command.Arg{command.Lit("run"), command.Lit(".#acl")},
				DirParam: "flake",
			},
		},
		{
			Name:        "clan_analyze_vars",
			Family:      "clan/analysis",
			Description: "Run the flake's vars analysis app (.#vars).",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "flake", Class: validate.ClassPath, Default: "."},
			},
			Exec: command.Template{
				Exe:      "nix",
				Args:     []command.Arg{command.Lit("run"), command.Lit(".#vars")},
				DirParam: "flake",
			},
		},
		{
			Name:        "clan_analyze_tags",
			Family:      "clan/analysis",
			Description: "Run the flake's tag analysis app (.#tags).",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "flake", Class: validate.ClassPath, Default: "."},
			},
			Exec: command.Template{
				Exe:      "nix",
				Args:     []command.Arg{command.Lit("run"), command.Lit(".#tags")},
				DirParam: "flake",
			},
		},
		{
			Name:        "clan_analyze_roster",
			Family:      "clan/analysis",
			Description: "Run the flake's roster analysis app (.#roster).",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "flake", Class: validate.ClassPath, Default: "."},
			},
			Exec: command.Template{
				Exe:      "nix",
				Args:     []command.Arg{command.Lit("run"), command.Lit(".#roster")},
				DirParam: "flake",
			},
		},
		{
			Name:        "clan_secrets_list",
			Family:      "clan/analysis",
			Description: "List the secrets managed in a clan flake.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe:  "clan",
				Args: []command.Arg{command.Lit("secrets"), command.Lit("list"), command.Lit("--flake"), command.Param("flake")},
			},
		},
		{
			Name:        "clan_flake_create",
			Family:      "clan/analysis",
			Description: "Create a new clan flake in a directory, optionally from a template.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "directory", Class: validate.ClassPath, Required: true},
				{Name: "template", Class: validate.ClassIdentifier},
			},
			Exec: command.Template{
				Exe: "clan",
				Args: []command.Arg{
					command.Lit("flakes"), command.Lit("create"), command.Param("directory"),
					command.Flag("--template", "template"),
				},
			},
		},
		{
			Name:        "clan_vm_create",
			Family:      "clan/analysis",
			Description: "Build and start a VM for a machine definition.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutDefault,
			Params: []ParamSpec{
				{Name: "machine", Class: validate.ClassMachineName, Required: true},
				{Name: "flake", Class: validate.ClassFlakeRef, Default: "."},
			},
			Exec: command.Template{
				Exe:  "clan",
				Args: []command.Arg{command.Lit("vms"), command.Lit("create"), command.Param("machine"), command.Lit("--flake"), command.Param("flake")},
			},
		},

		// --- dev ----------------------------------------------------------

		{
			Name:        "pre_commit_run",
			Family:      "dev",
			Description: "Run pre-commit hooks, either all files or specific manual-stage hooks.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutBuild,
			Params: []ParamSpec{
				{Name: "all_files", Type: TypeBool},
				{Name: "hooks", Class: validate.ClassIdentifier, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe: "pre-commit",
				Args: []command.Arg{
					command.Lit("run"),
					command.Switch("--all-files", "all_files"),
					command.PrefixEach("hooks", "--hook-stage", "manual"),
				},
			},
		},
		{
			Name:        "check_pre_commit_status",
			Family:      "dev",
			Description: "Check whether pre-commit is installed and report its version.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Exec: command.Template{
				Exe:  "pre-commit",
				Args: []command.Arg{command.Lit("--version")},
			},
		},
		{
			Name:        "setup_pre_commit",
			Family:      "dev",
			Description: "Install the pre-commit hook into the current repository.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutShell,
			Exec: command.Template{
				Exe:  "pre-commit",
				Args: []command.Arg{command.Lit("install")},
			},
		},

		// --- process/pueue ------------------------------------------------

		{
			Name:        "pueue_add",
			Family:      "process/pueue",
			Description: "Queue a command in pueue, optionally with a working directory and label.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "command", Class: validate.ClassShellCommand, Required: true},
				{Name: "args", Class: validate.ClassShellCommand, Repeated: true, Type: TypeStringList},
				{Name: "working_directory", Class: validate.ClassPath},
				{Name: "label", Class: validate.ClassIdentifier},
			},
			Exec: command.Template{
				Exe: "nix",
				Args: pueuePrefix(
					command.Lit("add"),
					command.Flag("--working-directory", "working_directory"),
					command.Flag("--label", "label"),
					command.Lit("--"),
					command.Param("command"), command.Rest("args"),
				),
			},
		},
		{
			Name:        "pueue_status",
			Family:      "process/pueue",
			Description: "Show the pueue queue status, optionally for specific tasks.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "task_ids", Class: validate.ClassIdentifier, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: pueuePrefix(command.Lit("status"), command.Rest("task_ids")),
			},
		},
		{
			Name:        "pueue_log",
			Family:      "process/pueue",
			Description: "Show the output of a queued task.",
			Safety:      SafetyReadOnly,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "task_id", Class: validate.ClassIdentifier, Required: true, Type: TypeInt},
				{Name: "lines", Class: validate.ClassIdentifier, Type: TypeInt},
			},
			Exec: command.Template{
				Exe: "nix",
				Args: pueuePrefix(
					command.Lit("log"), command.Param("task_id"),
					command.Flag("--lines", "lines"),
				),
			},
		},
		{
			Name:        "pueue_wait",
			Family:      "process/pueue",
			Description: "Block until the given tasks finish.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutDefault,
			Params: []ParamSpec{
				{Name: "task_ids", Class: validate.ClassIdentifier, Required: true, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: pueuePrefix(command.Lit("wait"), command.Rest("task_ids")),
			},
		},
		{
			Name:        "pueue_remove",
			Family:      "process/pueue",
			Description: "Remove tasks from the queue, killing them if running.",
			Safety:      SafetyDestructive,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "task_ids", Class: validate.ClassIdentifier, Required: true, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: pueuePrefix(command.Lit("remove"), command.Rest("task_ids")),
			},
		},
		{
			Name:        "pueue_clean",
			Family:      "process/pueue",
			Description: "Remove finished tasks from the queue.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutQuery,
			Exec: command.Template{
				Exe:  "nix",
				Args: pueuePrefix(command.Lit("clean")),
			},
		},
		{
			Name:        "pueue_pause",
			Family:      "process/pueue",
			Description: "Pause the queue or specific tasks.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "task_ids", Class: validate.ClassIdentifier, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: pueuePrefix(command.Lit("pause"), command.Rest("task_ids")),
			},
		},
		{
			Name:        "pueue_start",
			Family:      "process/pueue",
			Description: "Resume the queue or specific tasks.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "task_ids", Class: validate.ClassIdentifier, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: pueuePrefix(command.Lit("start"), command.Rest("task_ids")),
			},
		},

		// --- process/pexpect ----------------------------------------------

		{
			Name:        "pexpect_start",
			Family:      "process/pexpect",
			Description: "Start an interactive command under pexpect and return a session id.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "command", Class: validate.ClassShellCommand, Required: true},
				{Name: "args", Class: validate.ClassShellCommand, Repeated: true, Type: TypeStringList},
			},
			Exec: command.Template{
				Exe:  "nix",
				Args: pexpectPrefix(command.Lit("--start"), command.Param("command"), command.Rest("args")),
			},
		},
		{
			Name:        "pexpect_send",
			Family:      "process/pexpect",
			Description: "Send control code to a running pexpect session.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutShell,
			Params: []ParamSpec{
				{Name: "session_id", Class: validate.ClassSessionID, Required: true},
				{Name: "code", Class: validate.ClassShellCommand, Required: true},
			},
			Exec: command.Template{
				Exe:        "nix",
				Args:       pexpectPrefix(command.Param("session_id")),
				StdinParam: "code",
			},
		},
		{
			Name:        "pexpect_close",
			Family:      "process/pexpect",
			Description: "Close a pexpect session and terminate its child process.",
			Safety:      SafetyIdempotent,
			Timeout:     TimeoutQuery,
			Params: []ParamSpec{
				{Name: "session_id", Class: validate.ClassSessionID, Required: true},
			},
			Exec: command.Template{
				Exe:   "nix",
				Args:  pexpectPrefix(command.Param("session_id")),
				Stdin: "child.close()",
			},
		},
	}
}

// MustCatalog builds a Registry from the built-in catalog, panicking on
// invariant violations. The catalog is static, so a failure here is a
// bug caught by the registry tests.
func MustCatalog() *Registry {
	r, err := New(Catalog())
	if err != nil {
		panic(err)
	}
	return r
}
