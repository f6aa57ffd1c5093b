// Package registry holds the immutable tool catalog: what each tool is
// called, how dangerous it is, how its parameters are classified, how
// its command line is built, and how its results may be cached.
//
// The registry is constructed once at startup and never mutated
// afterward, so lookups need no locking.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/nixgate/nixgate/internal/cache"
	"github.com/nixgate/nixgate/internal/command"
	"github.com/nixgate/nixgate/internal/validate"
)

// Safety grades a tool's blast radius.
type Safety string

const (
	// SafetyReadOnly tools only observe state.
	SafetyReadOnly Safety = "read_only"
	// SafetyIdempotent tools change local state but repeating them is
	// harmless (builds, formatters, queue submissions).
	SafetyIdempotent Safety = "idempotent"
	// SafetyDestructive tools can destroy remote machines or data and
	// require explicit confirmation on every request.
	SafetyDestructive Safety = "destructive"
)

func (s Safety) Known() bool {
	switch s {
	case SafetyReadOnly, SafetyIdempotent, SafetyDestructive:
		return true
	}
	return false
}

// TimeoutClass buckets tools by how long their external command may
// run. Classes are fixed per descriptor; a YAML or Postgres override
// may move a tool to a different class, never to an arbitrary number.
type TimeoutClass string

const (
	TimeoutQuery   TimeoutClass = "query"
	TimeoutEval    TimeoutClass = "eval"
	TimeoutShell   TimeoutClass = "shell"
	TimeoutDefault TimeoutClass = "default"
	TimeoutBuild   TimeoutClass = "build"
)

// Duration maps the class to its wall-clock budget.
func (t TimeoutClass) Duration() time.Duration {
	switch t {
	case TimeoutQuery:
		return 30 * time.Second
	case TimeoutEval:
		return 30 * time.Second
	case TimeoutShell:
		return 60 * time.Second
	case TimeoutDefault:
		return 120 * time.Second
	case TimeoutBuild:
		return 300 * time.Second
	default:
		return 0
	}
}

func (t TimeoutClass) Known() bool {
	return t.Duration() > 0
}

// ParamType is the JSON shape a parameter arrives as.
type ParamType string

const (
	TypeString     ParamType = "string"
	TypeInt        ParamType = "int"
	TypeBool       ParamType = "bool"
	TypeStringList ParamType = "list"
)

// ParamSpec declares one tool parameter. Every non-boolean parameter
// has a validation class; list parameters validate each element.
// Default, when set, substitutes for an absent optional parameter and
// passes through validation like any caller-supplied value.
type ParamSpec struct {
	Name     string
	Class    validate.Class
	Required bool
	Repeated bool
	Type     ParamType
	Default  string
}

// CachePolicy opts a tool into result caching. KeyTemplate references
// request parameters by name, e.g. "{query}:{limit}".
type CachePolicy struct {
	Family      cache.Family
	TTL         time.Duration
	KeyTemplate string
}

// ToolDescriptor is the complete, immutable definition of one tool.
type ToolDescriptor struct {
	Name        string
	Family      string
	Description string
	Safety      Safety
	Params      []ParamSpec
	Cache       *CachePolicy
	Timeout     TimeoutClass
	Exec        command.Template
	// ArgsSchema optionally declares a JSON schema checked against the
	// raw argument map before class validation runs.
	ArgsSchema map[string]any
}

// RequiresConfirmation reports whether requests must carry the confirm
// flag. True exactly for destructive tools.
func (d *ToolDescriptor) RequiresConfirmation() bool {
	return d.Safety == SafetyDestructive
}

// Param finds a parameter spec by name.
func (d *ToolDescriptor) Param(name string) (*ParamSpec, bool) {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i], true
		}
	}
	return nil, false
}

// SafetyFlags is the safety metadata surface exposed to protocol
// clients and the tools listing.
type SafetyFlags struct {
	ReadOnly    bool
	Idempotent  bool
	Destructive bool
}

// Registry is the frozen tool catalog.
type Registry struct {
	tools map[string]*ToolDescriptor
	names []string
}

var keyTemplateRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// New validates descriptors and freezes them into a Registry. Every
// invariant violated here is a programming or configuration error, so
// New fails loudly rather than skipping entries.
func New(descs []*ToolDescriptor) (*Registry, error) {
	r := &Registry{tools: make(map[string]*ToolDescriptor, len(descs))}

	for _, d := range descs {
		if err := check(d); err != nil {
			return nil, fmt.Errorf("New: tool %q: %w", d.Name, err)
		}
		if _, dup := r.tools[d.Name]; dup {
			return nil, fmt.Errorf("New: duplicate tool %q", d.Name)
		}
		r.tools[d.Name] = d
		r.names = append(r.names, d.Name)
	}

	sort.Strings(r.names)
	return r, nil
}

func check(d *ToolDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("empty name")
	}
	if !d.Safety.Known() {
		return fmt.Errorf("unknown safety %q", d.Safety)
	}
	if !d.Timeout.Known() {
		return fmt.Errorf("unknown timeout class %q", d.Timeout)
	}
	if d.Exec.Exe == "" {
		return fmt.Errorf("exec template has no executable")
	}

	seen := make(map[string]*ParamSpec, len(d.Params))
	for i := range d.Params {
		p := &d.Params[i]
		if p.Name == "" {
			return fmt.Errorf("parameter %d has no name", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = p
		if p.Type == "" {
			p.Type = TypeString
		}
		if p.Type != TypeBool && !p.Class.Known() {
			return fmt.Errorf("parameter %q: unknown class %q", p.Name, p.Class)
		}
		if p.Repeated != (p.Type == TypeStringList) {
			return fmt.Errorf("parameter %q: repeated and list type must agree", p.Name)
		}
		if p.Default != "" && (p.Required || p.Type == TypeBool || p.Type == TypeStringList) {
			return fmt.Errorf("parameter %q: defaults apply to optional scalar parameters only", p.Name)
		}
	}

	// Template parameter references must line up with declarations.
	for _, use := range d.Exec.Uses() {
		p, ok := seen[use.Name]
		if !ok {
			return fmt.Errorf("exec template references undeclared parameter %q", use.Name)
		}
		if use.Bool && p.Type != TypeBool {
			return fmt.Errorf("parameter %q: switch requires bool type", use.Name)
		}
		if use.List && !p.Repeated {
			return fmt.Errorf("parameter %q: list expansion requires repeated parameter", use.Name)
		}
		if !use.Bool && !use.List && (p.Type == TypeBool || p.Type == TypeStringList) {
			return fmt.Errorf("parameter %q: scalar slot fed by non-scalar parameter", use.Name)
		}
	}

	if d.Cache != nil {
		if d.Safety == SafetyDestructive {
			return fmt.Errorf("destructive tools must not cache")
		}
		if !d.Cache.Family.Known() {
			return fmt.Errorf("unknown cache family %q", d.Cache.Family)
		}
		if d.Cache.KeyTemplate == "" {
			return fmt.Errorf("cache policy without key template")
		}
		for _, m := range keyTemplateRe.FindAllStringSubmatch(d.Cache.KeyTemplate, -1) {
			if _, ok := seen[m[1]]; !ok {
				return fmt.Errorf("cache key references undeclared parameter %q", m[1])
			}
		}
	}

	return nil
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (*ToolDescriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// Descriptors returns every descriptor sorted by name.
func (r *Registry) Descriptors() []*ToolDescriptor {
	out := make([]*ToolDescriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.tools[name])
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	return len(r.names)
}

// Flags returns the safety metadata for a tool.
func (r *Registry) Flags(name string) (SafetyFlags, bool) {
	d, ok := r.tools[name]
	if !ok {
		return SafetyFlags{}, false
	}
	return SafetyFlags{
		ReadOnly:    d.Safety == SafetyReadOnly,
		Idempotent:  d.Safety == SafetyIdempotent,
		Destructive: d.Safety == SafetyDestructive,
	}, true
}
