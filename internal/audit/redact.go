package audit

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// Parameter keys whose values are always masked, matched as case-insensitive
// substrings of the key.
var secretKeyFragments = []string{
	"token",
	"password",
	"passwd",
	"secret",
	"api_key",
	"apikey",
	"private",
	"credential",
	"auth",
}

// Value shapes masked regardless of key: AWS access key IDs, bearer
// tokens, JWTs, and long hex strings (digests, raw key material).
var secretValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)^bearer\s+\S+`),
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`^[0-9a-fA-F]{40,}$`),
}

// redactParams masks secret-shaped entries in place and returns the map.
func redactParams(params map[string]string) map[string]string {
	for k, v := range params {
		if secretKey(k) || secretValue(v) {
			params[k] = redactedValue
		}
	}
	return params
}

func secretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range secretKeyFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func secretValue(value string) bool {
	for _, re := range secretValuePatterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
