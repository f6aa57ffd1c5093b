// Package validate classifies and checks every externally supplied
// parameter before it can reach command construction.
//
// Each parameter belongs to exactly one input class with its own
// grammar, length bound, and blocklist. Rejection is the default
// posture; the single exception is ClassShellCommand, where dangerous
// substrings produce a warning audit event but the value is accepted
// (such commands run as argv elements, never through a shell).
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/nixgate/nixgate/internal/audit"
)

// Class identifies the validation grammar applied to a parameter.
type Class string

const (
	ClassPackageName   Class = "package_name"
	ClassFlakeRef      Class = "flake_ref"
	ClassNixExpression Class = "nix_expression"
	ClassMachineName   Class = "machine_name"
	ClassURL           Class = "url"
	ClassShellCommand  Class = "shell_command"
	ClassPath          Class = "path"
	ClassStorePath     Class = "store_path"
	ClassSessionID     Class = "session_id"
	ClassIdentifier    Class = "identifier"
)

// Known reports whether c is a member of the closed class enumeration.
func (c Class) Known() bool {
	switch c {
	case ClassPackageName, ClassFlakeRef, ClassNixExpression,
		ClassMachineName, ClassURL, ClassShellCommand,
		ClassPath, ClassStorePath, ClassSessionID, ClassIdentifier:
		return true
	}
	return false
}

// Rules name the specific check a value failed.
const (
	RuleEmpty          = "empty"
	RuleTooLong        = "too_long"
	RulePattern        = "pattern"
	RuleTraversal      = "traversal"
	RuleBlockedPattern = "blocked_pattern"
	RuleMetacharacter  = "metacharacter"
	RuleNulByte        = "nul_byte"
	RuleScheme         = "scheme"
	RuleUnencodedSpace = "unencoded_space"
)

// Per-class length bounds, in bytes.
const (
	maxPackageNameLen = 255
	maxFlakeRefLen    = 1000
	maxExpressionLen  = 10000
	maxMachineNameLen = 63
	maxURLLen         = 2048
	maxCommandLen     = 1000
	maxPathLen        = 4096
	maxSessionIDLen   = 64
	maxIdentifierLen  = 128
)

// Error reports why a value was rejected. It satisfies the error
// interface and travels up through the dispatcher to the caller.
type Error struct {
	Field  string
	Class  Class
	Rule   string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid %s %q: %s (%s)", e.Class, e.Field, e.Rule, e.Detail)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Class, e.Field, e.Rule)
}

// Validated wraps a string that passed validation. Command templates
// accept only Validated values, so the type system keeps unchecked
// input away from argv construction.
type Validated struct {
	value string
}

func (v Validated) String() string { return v.value }

var (
	packageNameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
	// Permissive: flake refs legitimately carry ./:@#+ (URLs, branch
	// refs, attribute anchors). Metacharacters are checked separately
	// so the rejection names the offending byte.
	flakeRefRe    = regexp.MustCompile(`^[A-Za-z0-9_.+/:@#-]+$`)
	machineNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	sessionIDRe   = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	identifierRe  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	homeSSHRe     = regexp.MustCompile(`^/home/[^/]+/\.ssh`)
)

// shellMetacharacters indicate command injection when present in a
// value destined for a single argv slot.
const shellMetacharacters = ";|&$`\n\r><(){}[]!*?"

// blockedNixPatterns never appear in a legitimate expression from this
// surface: they reconfigure the build sandbox, the substituter set, or
// escape evaluation entirely.
var blockedNixPatterns = []string{
	"__noChroot",
	"allowSubstitutes = false",
	"trustedUsers",
	"allowed-users",
	"builders",
	"substituters",
	"trusted-substituters",
	"system-features",
	"builtins.exec",
}

// dangerousCommandPatterns are warned about but accepted; shell
// commands are forwarded verbatim as single argv elements to tools
// like nix-shell --run.
var dangerousCommandPatterns = []string{
	"rm -rf",
	"dd if=",
	"mkfs",
	"fdisk",
	"parted",
	":(){ :|:& };:",
}

// sensitivePathPrefixes are rejected outright for path parameters.
var sensitivePathPrefixes = []string{
	"/etc/shadow",
	"/etc/passwd",
	"/root/.ssh",
	"/var/lib/private",
}

var allowedURLSchemes = []string{"http://", "https://", "ftp://"}

// Engine validates parameters and emits audit events for every
// rejection and every dangerous-pattern warning. Stateless and safe
// for concurrent use.
type Engine struct {
	audit  *audit.Logger
	logger *zap.Logger
}

// NewEngine creates a validation engine. Both arguments are required.
func NewEngine(auditLog *audit.Logger, logger *zap.Logger) *Engine {
	return &Engine{audit: auditLog, logger: logger}
}

// Validate checks raw against the class grammar. On success the value
// is returned wrapped; on failure a *Error describes the rejection and
// exactly one ValidationFailed audit event has been emitted. Dangerous
// shell-command patterns emit one DangerousPattern event each but do
// not fail validation.
func (e *Engine) Validate(class Class, field, raw string) (Validated, error) {
	var verr *Error
	var warnings []string

	switch class {
	case ClassPackageName:
		verr = checkPackageName(raw)
	case ClassFlakeRef:
		verr = checkFlakeRef(raw)
	case ClassNixExpression:
		verr = checkNixExpression(raw)
	case ClassMachineName:
		verr = checkMachineName(raw)
	case ClassURL:
		verr = checkURL(raw)
	case ClassShellCommand:
		warnings, verr = checkShellCommand(raw)
	case ClassPath:
		verr = checkPath(raw)
	case ClassStorePath:
		verr = checkStorePath(raw)
	case ClassSessionID:
		verr = checkSessionID(raw)
	case ClassIdentifier:
		verr = checkIdentifier(raw)
	default:
		verr = &Error{Class: class, Rule: RulePattern, Detail: "unknown input class"}
	}

	if verr != nil {
		verr.Field = field
		verr.Class = class
		e.audit.Emit(&audit.Event{
			Type:     audit.EventValidationFailed,
			Security: ruleSecurity(verr.Rule),
			Params:   map[string]string{field: excerpt(raw)},
			Err:      verr.Detail,
			Extra: map[string]string{
				"class": string(class),
				"rule":  verr.Rule,
			},
		})
		return Validated{}, verr
	}

	for _, pattern := range warnings {
		e.logger.Warn("dangerous pattern in shell command",
			zap.String("field", field),
			zap.String("pattern", pattern),
		)
		e.audit.Emit(&audit.Event{
			Type:     audit.EventDangerousPattern,
			Security: audit.SecurityWarning,
			Params:   map[string]string{field: excerpt(raw)},
			Success:  true,
			Extra:    map[string]string{"pattern": pattern},
		})
	}

	return Validated{value: raw}, nil
}

// ruleSecurity grades a rejection: injection-shaped input is critical,
// everything else is an ordinary error.
func ruleSecurity(rule string) audit.Security {
	switch rule {
	case RuleMetacharacter, RuleBlockedPattern, RuleNulByte:
		return audit.SecurityCritical
	default:
		return audit.SecurityError
	}
}

// excerpt bounds parameter values recorded in audit events.
func excerpt(s string) string {
	const max = 128
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func checkPackageName(raw string) *Error {
	if raw == "" {
		return &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxPackageNameLen {
		return &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxPackageNameLen)}
	}
	if strings.ContainsRune(raw, 0) {
		return &Error{Rule: RuleNulByte}
	}
	if strings.Contains(raw, "..") || strings.ContainsAny(raw, `/\`) {
		return &Error{Rule: RuleTraversal, Detail: "path separators not allowed in package names"}
	}
	if !packageNameRe.MatchString(raw) {
		return &Error{Rule: RulePattern, Detail: "allowed: alphanumerics, underscore, dot, hyphen"}
	}
	if strings.HasSuffix(raw, ".") {
		return &Error{Rule: RulePattern, Detail: "trailing dot"}
	}
	return nil
}

func checkFlakeRef(raw string) *Error {
	if raw == "" {
		return &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxFlakeRefLen {
		return &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxFlakeRefLen)}
	}
	if strings.ContainsRune(raw, 0) {
		return &Error{Rule: RuleNulByte}
	}
	if i := strings.IndexAny(raw, shellMetacharacters); i >= 0 {
		return &Error{Rule: RuleMetacharacter, Detail: fmt.Sprintf("shell metacharacter %q", raw[i])}
	}
	if !flakeRefRe.MatchString(raw) {
		return &Error{Rule: RulePattern, Detail: "allowed: alphanumerics and _ - . + / : @ #"}
	}
	return nil
}

func checkNixExpression(raw string) *Error {
	if raw == "" {
		return &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxExpressionLen {
		return &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxExpressionLen)}
	}
	for _, pattern := range blockedNixPatterns {
		if strings.Contains(raw, pattern) {
			return &Error{Rule: RuleBlockedPattern, Detail: fmt.Sprintf("contains %q", pattern)}
		}
	}
	if strings.Contains(raw, "$(") || strings.Contains(raw, "`") {
		return &Error{Rule: RuleMetacharacter, Detail: "shell command substitution"}
	}
	if strings.ContainsRune(raw, 0) {
		return &Error{Rule: RuleNulByte}
	}
	return nil
}

func checkMachineName(raw string) *Error {
	if raw == "" {
		return &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxMachineNameLen {
		return &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxMachineNameLen)}
	}
	if strings.ContainsRune(raw, 0) {
		return &Error{Rule: RuleNulByte}
	}
	if !machineNameRe.MatchString(raw) {
		return &Error{Rule: RulePattern, Detail: "allowed: alphanumerics, underscore, hyphen"}
	}
	if strings.HasPrefix(raw, "-") || strings.HasSuffix(raw, "-") {
		return &Error{Rule: RulePattern, Detail: "leading or trailing hyphen"}
	}
	return nil
}

func checkURL(raw string) *Error {
	if raw == "" {
		return &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxURLLen {
		return &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxURLLen)}
	}
	if strings.ContainsRune(raw, 0) {
		return &Error{Rule: RuleNulByte}
	}
	if strings.ContainsRune(raw, ' ') {
		return &Error{Rule: RuleUnencodedSpace}
	}
	lower := strings.ToLower(raw)
	for _, scheme := range allowedURLSchemes {
		if strings.HasPrefix(lower, scheme) {
			return nil
		}
	}
	return &Error{Rule: RuleScheme, Detail: "allowed schemes: http, https, ftp"}
}

func checkShellCommand(raw string) ([]string, *Error) {
	if raw == "" {
		return nil, &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxCommandLen {
		return nil, &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxCommandLen)}
	}
	if strings.ContainsRune(raw, 0) {
		return nil, &Error{Rule: RuleNulByte}
	}
	var warnings []string
	for _, pattern := range dangerousCommandPatterns {
		if strings.Contains(raw, pattern) {
			warnings = append(warnings, pattern)
		}
	}
	return warnings, nil
}

func checkPath(raw string) *Error {
	if raw == "" {
		return &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxPathLen {
		return &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxPathLen)}
	}
	if strings.ContainsRune(raw, 0) {
		return &Error{Rule: RuleNulByte}
	}
	if strings.Contains(raw, "..") {
		return &Error{Rule: RuleTraversal, Detail: "parent directory reference"}
	}
	for _, prefix := range sensitivePathPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return &Error{Rule: RuleBlockedPattern, Detail: fmt.Sprintf("sensitive path %s", prefix)}
		}
	}
	if homeSSHRe.MatchString(raw) {
		return &Error{Rule: RuleBlockedPattern, Detail: "sensitive path /home/*/.ssh"}
	}
	return nil
}

func checkStorePath(raw string) *Error {
	if raw == "" {
		return &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxPathLen {
		return &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxPathLen)}
	}
	if strings.ContainsRune(raw, 0) {
		return &Error{Rule: RuleNulByte}
	}
	if strings.Contains(raw, "..") {
		return &Error{Rule: RuleTraversal, Detail: "parent directory reference"}
	}
	if !strings.HasPrefix(raw, "/nix/store/") {
		return &Error{Rule: RulePattern, Detail: "must begin with /nix/store/"}
	}
	return nil
}

func checkSessionID(raw string) *Error {
	if raw == "" {
		return &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxSessionIDLen {
		return &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxSessionIDLen)}
	}
	if strings.ContainsRune(raw, 0) {
		return &Error{Rule: RuleNulByte}
	}
	if !sessionIDRe.MatchString(raw) {
		return &Error{Rule: RulePattern, Detail: "allowed: alphanumerics"}
	}
	return nil
}

func checkIdentifier(raw string) *Error {
	if raw == "" {
		return &Error{Rule: RuleEmpty}
	}
	if len(raw) > maxIdentifierLen {
		return &Error{Rule: RuleTooLong, Detail: fmt.Sprintf("%d bytes, max %d", len(raw), maxIdentifierLen)}
	}
	if strings.ContainsRune(raw, 0) {
		return &Error{Rule: RuleNulByte}
	}
	if !identifierRe.MatchString(raw) {
		return &Error{Rule: RulePattern, Detail: "allowed: alphanumerics, underscore, hyphen"}
	}
	return nil
}
