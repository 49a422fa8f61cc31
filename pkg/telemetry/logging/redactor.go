package logging

import (
	"fmt"
	"regexp"
	"strings"
)

// Redactor scrubs credential material from log fields. The gateway handles
// access tokens, refresh tokens, session cookies, and pre-shared login keys;
// none of them may reach log output in full.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Credential pattern names.
const (
	PatternBearerToken   = "bearer_token"
	PatternSessionCookie = "session_cookie"
	PatternJWT           = "jwt"
	PatternAPIKey        = "api_key"
)

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	specs := []struct {
		name        string
		regex       string
		replacement string
	}{
		// Authorization header values
		{PatternBearerToken, `(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},

		// Serialized session cookie values
		{PatternSessionCookie, `ninja_session=[^;\s]+`, "ninja_session=***"},

		// Raw JWTs appearing outside an Authorization header
		{PatternJWT, `\beyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\b`, "***.***.***"},

		// Platform API keys
		{PatternAPIKey, `\bsk-[a-zA-Z0-9]{8,}\b`, "sk-***"},
	}

	r := &Redactor{}
	for _, s := range specs {
		r.patterns = append(r.patterns, &redactPattern{
			name:        s.name,
			regex:       regexp.MustCompile(s.regex),
			replacement: s.replacement,
		})
	}
	return r
}

// sensitiveKeys are log keys whose values are replaced wholesale.
var sensitiveKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"session_token": true,
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
	"password":      true,
	"auth_key":      true,
}

// RedactArgs applies redaction to alternating key/value log args.
// String values for sensitive keys are replaced entirely; all other string
// values are pattern-scrubbed.
func (r *Redactor) RedactArgs(args ...any) []any {
	out := make([]any, len(args))
	copy(out, args)

	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		if sensitiveKeys[strings.ToLower(key)] {
			out[i+1] = "***"
			continue
		}
		if s, ok := out[i+1].(string); ok {
			out[i+1] = r.RedactString(s)
		}
	}
	return out
}

// RedactString scrubs credential patterns from a single string.
func (r *Redactor) RedactString(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// RedactError scrubs credential patterns from an error's message.
func (r *Redactor) RedactError(err error) error {
	if err == nil {
		return nil
	}
	redacted := r.RedactString(err.Error())
	if redacted == err.Error() {
		return err
	}
	return fmt.Errorf("%s", redacted)
}
