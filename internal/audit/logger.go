package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Sink receives finalized audit events.
type Sink interface {
	// Write must never block the caller.
	Write(e *Event)
	Close()
}

// Logger finalizes events (timestamp, redaction, hash chain) and fans
// them out to its sinks. Safe for concurrent use; the internal lock
// spans sink writes so every sink observes events in chain order.
type Logger struct {
	mu     sync.Mutex
	prev   [32]byte
	sinks  []Sink
	logger *zap.Logger
}

// NewLogger creates a Logger writing to the given sinks. The chain
// starts from an all-zero digest.
func NewLogger(logger *zap.Logger, sinks ...Sink) *Logger {
	return &Logger{sinks: sinks, logger: logger}
}

// Emit finalizes and records one event. The caller's event is not
// mutated. Never blocks on sink backpressure and never returns an
// error: a lost audit event degrades the trail, not the invocation.
func (l *Logger) Emit(e *Event) {
	ev := e.clone()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.Security == "" {
		ev.Security = SecurityInfo
	}
	ev.Params = redactParams(ev.Params)

	l.mu.Lock()
	defer l.mu.Unlock()
	digest := chainDigest(l.prev, ev)
	ev.Chain = hex.EncodeToString(digest[:])
	l.prev = digest
	for _, s := range l.sinks {
		s.Write(ev)
	}
}

// Close shuts down all sinks, draining buffered events.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sinks {
		s.Close()
	}
	l.sinks = nil
}

// chainPayload is the canonical byte form of an event for chaining.
// encoding/json sorts map keys, so the encoding is deterministic.
type chainPayload struct {
	Timestamp  string            `json:"timestamp"`
	Security   Security          `json:"security_level"`
	Type       EventType         `json:"event_type"`
	Tool       string            `json:"tool_name,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Params     map[string]string `json:"parameters,omitempty"`
	Success    bool              `json:"success"`
	DurationMS int64             `json:"duration_ms"`
	Err        string            `json:"error,omitempty"`
	Extra      map[string]string `json:"details,omitempty"`
}

func chainDigest(prev [32]byte, e *Event) [32]byte {
	// All fields are strings or scalars; Marshal cannot fail here.
	payload, _ := json.Marshal(chainPayload{
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		Security:   e.Security,
		Type:       e.Type,
		Tool:       e.Tool,
		RequestID:  e.RequestID,
		Params:     e.Params,
		Success:    e.Success,
		DurationMS: e.Duration.Milliseconds(),
		Err:        e.Err,
		Extra:      e.Extra,
	})

	buf := make([]byte, 0, len(prev)+len(payload))
	buf = append(buf, prev[:]...)
	buf = append(buf, payload...)
	return blake2b.Sum256(buf)
}

// Verify replays the hash chain over events in emission order and
// reports the first event whose chain digest does not match. Events
// must carry the redacted parameter values they were emitted with.
func Verify(events []*Event) error {
	var prev [32]byte
	for i, e := range events {
		want := chainDigest(prev, e)
		if e.Chain != hex.EncodeToString(want[:]) {
			return fmt.Errorf("Verify: chain broken at event %d (%s)", i, e.Type)
		}
		prev = want
	}
	return nil
}
