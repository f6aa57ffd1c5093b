// Package audit produces the security audit trail for tool invocations.
//
// Every event flows through a single Logger that redacts secret-shaped
// parameter values, extends a tamper-evident hash chain, and fans the
// event out to one or more sinks. Emission never blocks an invocation
// and sink failures never surface to callers.
package audit

import (
	"sort"
	"time"

	"go.uber.org/zap/zapcore"
)

// Security classifies how an event should be triaged.
type Security string

const (
	SecurityInfo     Security = "info"
	SecurityWarning  Security = "warning"
	SecurityError    Security = "error"
	SecurityCritical Security = "critical"
)

// Level maps a security classification onto a zap log level.
// Critical events share the ERROR level; the security_level field
// preserves the distinction on the wire.
func (s Security) Level() zapcore.Level {
	switch s {
	case SecurityWarning:
		return zapcore.WarnLevel
	case SecurityError, SecurityCritical:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// EventType names what happened during an invocation.
type EventType string

const (
	EventToolInvoked        EventType = "ToolInvoked"
	EventValidationFailed   EventType = "ValidationFailed"
	EventDangerousPattern   EventType = "DangerousPattern"
	EventCacheHit           EventType = "CacheHit"
	EventCacheMiss          EventType = "CacheMiss"
	EventTimeout            EventType = "Timeout"
	EventCancelled          EventType = "Cancelled"
	EventConfirmationDenied EventType = "ConfirmationDenied"
	EventUnknownTool        EventType = "UnknownTool"
	EventExternalCallFailed EventType = "ExternalCallFailed"
)

// Event is a single audit record. The Logger fills Timestamp and Chain;
// callers populate the rest. Params values are redacted before any sink
// sees the event.
type Event struct {
	Timestamp time.Time
	Security  Security
	Type      EventType
	Tool      string
	RequestID string
	Params    map[string]string
	Success   bool
	Duration  time.Duration
	Err       string
	Extra     map[string]string
	Chain     string
}

// clone returns a shallow copy with fresh maps so the Logger can
// redact and annotate without mutating the caller's event.
func (e *Event) clone() *Event {
	c := *e
	if e.Params != nil {
		c.Params = make(map[string]string, len(e.Params))
		for k, v := range e.Params {
			c.Params[k] = v
		}
	}
	if e.Extra != nil {
		c.Extra = make(map[string]string, len(e.Extra))
		for k, v := range e.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// MarshalLogObject renders the event body in the wire shape consumed by
// downstream log processors. Field names are a compatibility surface.
func (e *Event) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("event_type", string(e.Type))
	if e.Tool != "" {
		enc.AddString("tool_name", e.Tool)
	}
	if e.RequestID != "" {
		enc.AddString("request_id", e.RequestID)
	}
	if len(e.Params) > 0 {
		if err := enc.AddObject("parameters", stringMap(e.Params)); err != nil {
			return err
		}
	}
	enc.AddBool("success", e.Success)
	enc.AddInt64("duration_ms", e.Duration.Milliseconds())
	if e.Err != "" {
		enc.AddString("error", e.Err)
	}
	if len(e.Extra) > 0 {
		if err := enc.AddObject("details", stringMap(e.Extra)); err != nil {
			return err
		}
	}
	if e.Chain != "" {
		enc.AddString("chain", e.Chain)
	}
	return nil
}

// stringMap marshals a map with sorted keys so encoded events are
// deterministic.
type stringMap map[string]string

func (m stringMap) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		enc.AddString(k, m[k])
	}
	return nil
}
