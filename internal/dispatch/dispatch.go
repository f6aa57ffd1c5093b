// Package dispatch runs tool invocations through the gateway pipeline:
// confirmation gate, schema check, per-parameter validation, cache
// probe, command construction, execution, and audit.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/nixgate/nixgate/internal/audit"
	"github.com/nixgate/nixgate/internal/cache"
	"github.com/nixgate/nixgate/internal/command"
	"github.com/nixgate/nixgate/internal/registry"
	"github.com/nixgate/nixgate/internal/validate"
)

// Request is one tool invocation as received from the protocol layer.
// Params holds raw JSON-decoded arguments; Confirm acknowledges a
// destructive operation.
type Request struct {
	Tool    string
	Params  map[string]any
	Confirm bool
}

// Result is a completed invocation. Output is populated even when the
// command exited non-zero (the caller gets an *ExternalCallError in
// that case and can still render stderr).
type Result struct {
	Output    command.Output
	CacheHit  bool
	RequestID string
	Duration  time.Duration
}

// Config wires a Dispatcher.
type Config struct {
	Registry *registry.Registry
	Engine   *validate.Engine
	Runner   command.Runner
	// Caches may be nil; cacheable tools then execute on every call.
	Caches *cache.Set[command.Output]
	Audit  *audit.Logger
	Logger *zap.Logger
}

// Dispatcher owns the invocation pipeline. It is safe for concurrent
// use; nothing is locked across a command execution.
type Dispatcher struct {
	registry *registry.Registry
	engine   *validate.Engine
	runner   command.Runner
	caches   *cache.Set[command.Output]
	audit    *audit.Logger
	logger   *zap.Logger
	schemas  map[string]*jsonschema.Schema
}

// New compiles the argument schemas declared in the registry and
// returns a ready Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	schemas := make(map[string]*jsonschema.Schema)
	for _, d := range cfg.Registry.Descriptors() {
		if d.ArgsSchema == nil {
			continue
		}
		c := jsonschema.NewCompiler()
		res := d.Name + ".json"
		if err := c.AddResource(res, d.ArgsSchema); err != nil {
			return nil, fmt.Errorf("New: schema for %s: %w", d.Name, err)
		}
		sch, err := c.Compile(res)
		if err != nil {
			return nil, fmt.Errorf("New: schema for %s: %w", d.Name, err)
		}
		schemas[d.Name] = sch
	}

	return &Dispatcher{
		registry: cfg.Registry,
		engine:   cfg.Engine,
		runner:   cfg.Runner,
		caches:   cfg.Caches,
		audit:    cfg.Audit,
		logger:   cfg.Logger,
		schemas:  schemas,
	}, nil
}

var keyParamRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Dispatch runs one invocation end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := d.logger.With(
		zap.String("tool_name", req.Tool),
		zap.String("request_id", requestID),
	)

	// 1. Resolve the tool.
	desc, ok := d.registry.Lookup(req.Tool)
	if !ok {
		d.audit.Emit(&audit.Event{
			Security:  audit.SecurityWarning,
			Type:      audit.EventUnknownTool,
			Tool:      req.Tool,
			RequestID: requestID,
			Params:    paramStrings(req.Params),
			Err:       "tool not registered",
		})
		log.Warn("unknown tool requested")
		return Result{RequestID: requestID}, fmt.Errorf("Dispatch %s: %w", req.Tool, ErrUnknownTool)
	}

	// 2. Destructive tools need explicit confirmation before anything
	// else looks at the arguments.
	if desc.RequiresConfirmation() && !req.Confirm {
		d.audit.Emit(&audit.Event{
			Security:  audit.SecurityWarning,
			Type:      audit.EventConfirmationDenied,
			Tool:      desc.Name,
			RequestID: requestID,
			Params:    paramStrings(req.Params),
			Err:       "confirm flag not set",
			Extra:     map[string]string{"safety": string(desc.Safety)},
		})
		log.Warn("destructive tool invoked without confirmation")
		return Result{RequestID: requestID}, fmt.Errorf("Dispatch %s: %w", req.Tool, ErrConfirmationRequired)
	}

	// 3. Structural check against the tool's argument schema, if it
	// declares one.
	if sch := d.schemas[desc.Name]; sch != nil {
		if err := sch.Validate(normalizeArgs(req.Params)); err != nil {
			d.audit.Emit(&audit.Event{
				Security:  audit.SecurityError,
				Type:      audit.EventValidationFailed,
				Tool:      desc.Name,
				RequestID: requestID,
				Params:    paramStrings(req.Params),
				Err:       excerpt(err.Error(), 256),
				Extra:     map[string]string{"rule": "schema"},
			})
			log.Warn("arguments rejected by schema", zap.Error(err))
			return Result{RequestID: requestID}, &SchemaError{Tool: desc.Name, Detail: excerpt(err.Error(), 256)}
		}
	}

	// 4. Validate each declared parameter and bind it to the template.
	params := command.NewParams()
	scalars := make(map[string]string, len(desc.Params))
	for i := range desc.Params {
		ps := &desc.Params[i]
		field := desc.Name + "." + ps.Name

		raw, present := req.Params[ps.Name]
		if !present {
			switch {
			case ps.Default != "":
				v, err := d.engine.Validate(ps.Class, field, ps.Default)
				if err != nil {
					return Result{RequestID: requestID}, fmt.Errorf("Dispatch %s: %w", req.Tool, err)
				}
				params.SetString(ps.Name, v)
				scalars[ps.Name] = v.String()
			case ps.Required:
				// Validating the empty string produces the canonical
				// "may not be empty" rejection and audit event.
				_, err := d.engine.Validate(ps.Class, field, "")
				if err == nil {
					err = fmt.Errorf("%s: required parameter missing", field)
				}
				return Result{RequestID: requestID}, fmt.Errorf("Dispatch %s: %w", req.Tool, err)
			}
			continue
		}

		switch ps.Type {
		case registry.TypeBool:
			b, ok := raw.(bool)
			if !ok {
				return Result{RequestID: requestID}, d.rejectType(log, desc.Name, requestID, ps.Name, "boolean")
			}
			params.SetBool(ps.Name, b)

		case registry.TypeInt:
			n, ok := asInt(raw)
			if !ok {
				return Result{RequestID: requestID}, d.rejectType(log, desc.Name, requestID, ps.Name, "integer")
			}
			v, err := d.engine.Validate(ps.Class, field, strconv.Itoa(n))
			if err != nil {
				return Result{RequestID: requestID}, fmt.Errorf("Dispatch %s: %w", req.Tool, err)
			}
			params.SetString(ps.Name, v)
			scalars[ps.Name] = v.String()

		case registry.TypeStringList:
			items, ok := asStringList(raw)
			if !ok {
				return Result{RequestID: requestID}, d.rejectType(log, desc.Name, requestID, ps.Name, "array of strings")
			}
			if ps.Required && len(items) == 0 {
				_, err := d.engine.Validate(ps.Class, field, "")
				if err == nil {
					err = fmt.Errorf("%s: required parameter missing", field)
				}
				return Result{RequestID: requestID}, fmt.Errorf("Dispatch %s: %w", req.Tool, err)
			}
			vs := make([]validate.Validated, 0, len(items))
			for _, item := range items {
				v, err := d.engine.Validate(ps.Class, field, item)
				if err != nil {
					return Result{RequestID: requestID}, fmt.Errorf("Dispatch %s: %w", req.Tool, err)
				}
				vs = append(vs, v)
			}
			params.SetList(ps.Name, vs)

		default:
			s, ok := raw.(string)
			if !ok {
				return Result{RequestID: requestID}, d.rejectType(log, desc.Name, requestID, ps.Name, "string")
			}
			v, err := d.engine.Validate(ps.Class, field, s)
			if err != nil {
				return Result{RequestID: requestID}, fmt.Errorf("Dispatch %s: %w", req.Tool, err)
			}
			params.SetString(ps.Name, v)
			scalars[ps.Name] = v.String()
		}
	}

	// 5. Cache probe. Only clean exits are ever stored, so a hit can be
	// returned without re-checking. A dispatcher without caches treats
	// every probe as a miss; unavailability never fails an invocation.
	var cacheKey string
	if desc.Cache != nil && d.caches != nil {
		cacheKey = renderKey(desc.Cache.KeyTemplate, scalars)
		if out, ok := d.caches.Get(desc.Cache.Family, cacheKey); ok {
			d.audit.Emit(&audit.Event{
				Type:      audit.EventCacheHit,
				Tool:      desc.Name,
				RequestID: requestID,
				Params:    paramStrings(req.Params),
				Success:   true,
				Duration:  time.Since(start),
				Extra:     map[string]string{"family": string(desc.Cache.Family)},
			})
			log.Debug("cache hit", zap.String("family", string(desc.Cache.Family)))
			return Result{Output: out, CacheHit: true, RequestID: requestID, Duration: time.Since(start)}, nil
		}
		d.audit.Emit(&audit.Event{
			Type:      audit.EventCacheMiss,
			Tool:      desc.Name,
			RequestID: requestID,
			Success:   true,
			Extra:     map[string]string{"family": string(desc.Cache.Family)},
		})
	}

	// 6. Build the command line from validated values only.
	spec, err := desc.Exec.Build(params)
	if err != nil {
		d.audit.Emit(&audit.Event{
			Security:  audit.SecurityError,
			Type:      audit.EventExternalCallFailed,
			Tool:      desc.Name,
			RequestID: requestID,
			Err:       err.Error(),
		})
		return Result{RequestID: requestID}, fmt.Errorf("Dispatch %s: %w", req.Tool, err)
	}

	// 7. Run with the tool's timeout class.
	timeout := desc.Timeout.Duration()
	out, err := d.runner.Run(ctx, spec, timeout)
	elapsed := time.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrCancelled):
			d.audit.Emit(&audit.Event{
				Security:  audit.SecurityWarning,
				Type:      audit.EventCancelled,
				Tool:      desc.Name,
				RequestID: requestID,
				Params:    paramStrings(req.Params),
				Duration:  elapsed,
				Err:       err.Error(),
			})
			log.Warn("invocation cancelled", zap.Duration("duration", elapsed))
		case errors.Is(err, command.ErrTimeout):
			d.audit.Emit(&audit.Event{
				Security:  audit.SecurityError,
				Type:      audit.EventTimeout,
				Tool:      desc.Name,
				RequestID: requestID,
				Params:    paramStrings(req.Params),
				Duration:  elapsed,
				Err:       err.Error(),
				Extra:     map[string]string{"timeout": timeout.String()},
			})
			log.Error("invocation timed out", zap.Duration("timeout", timeout))
		default:
			d.audit.Emit(&audit.Event{
				Security:  audit.SecurityError,
				Type:      audit.EventExternalCallFailed,
				Tool:      desc.Name,
				RequestID: requestID,
				Params:    paramStrings(req.Params),
				Duration:  elapsed,
				Err:       err.Error(),
			})
			log.Error("external command failed to start", zap.Error(err))
			return Result{RequestID: requestID, Duration: elapsed},
				&ExternalCallError{Tool: desc.Name, ExitCode: -1, Stderr: err.Error()}
		}
		return Result{RequestID: requestID, Duration: elapsed}, fmt.Errorf("Dispatch %s: %w", req.Tool, err)
	}

	// 8. Record the outcome. Only clean exits are cached.
	success := out.ExitCode == 0
	if success && desc.Cache != nil && d.caches != nil {
		d.caches.Put(desc.Cache.Family, cacheKey, out)
	}

	ev := &audit.Event{
		Type:      audit.EventToolInvoked,
		Tool:      desc.Name,
		RequestID: requestID,
		Params:    paramStrings(req.Params),
		Success:   success,
		Duration:  elapsed,
	}
	if !success {
		ev.Security = audit.SecurityWarning
		ev.Err = fmt.Sprintf("exit code %d", out.ExitCode)
		ev.Extra = map[string]string{"stderr": excerpt(out.Stderr, 512)}
	}
	d.audit.Emit(ev)
	log.Info("tool invoked",
		zap.Bool("success", success),
		zap.Int("exit_code", out.ExitCode),
		zap.Duration("duration", elapsed),
	)

	res := Result{Output: out, RequestID: requestID, Duration: elapsed}
	if !success {
		return res, &ExternalCallError{Tool: desc.Name, ExitCode: out.ExitCode, Stderr: excerpt(out.Stderr, 512)}
	}
	return res, nil
}

// rejectType records and returns a structural type error for one
// parameter.
func (d *Dispatcher) rejectType(log *zap.Logger, tool, requestID, param, want string) error {
	detail := fmt.Sprintf("parameter %q must be a %s", param, want)
	d.audit.Emit(&audit.Event{
		Security:  audit.SecurityError,
		Type:      audit.EventValidationFailed,
		Tool:      tool,
		RequestID: requestID,
		Err:       detail,
		Extra:     map[string]string{"rule": "type", "field": param},
	})
	log.Warn("argument has wrong type", zap.String("parameter", param), zap.String("want", want))
	return &SchemaError{Tool: tool, Detail: detail}
}

// renderKey substitutes {param} references in a cache key template with
// the bound scalar values, defaults included.
func renderKey(template string, scalars map[string]string) string {
	return keyParamRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		return scalars[name]
	})
}

// asInt accepts the integer shapes a parameter can arrive as: JSON
// numbers decode to float64, Go callers may pass int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// asStringList accepts []string from Go callers and []any of strings
// from decoded JSON.
func asStringList(v any) ([]string, bool) {
	switch items := v.(type) {
	case []string:
		return items, true
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// normalizeArgs rewrites a raw argument map into the shapes the schema
// validator expects: JSON-style float64 numbers and []any lists.
func normalizeArgs(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		return normalizeArgs(t)
	}
	return v
}

// paramStrings renders raw arguments for the audit trail. Values are
// capped; secret redaction happens inside the audit logger.
func paramStrings(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch s := v.(type) {
		case string:
			out[k] = excerpt(s, 256)
		case []string:
			out[k] = excerpt(strings.Join(s, " "), 256)
		default:
			out[k] = excerpt(fmt.Sprint(v), 256)
		}
	}
	return out
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
