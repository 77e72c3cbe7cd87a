// Package redact scrubs sensitive material from anything the evaluator
// renders outside the store: prompts in reports and logs, and secret
// values embedded in trace content or provider responses.
package redact

import (
	"log/slog"
	"regexp"
)

// RedactedPlaceholder replaces an entire prompt when prompt redaction is
// enabled.
const RedactedPlaceholder = "[REDACTED]"

// Pattern is one regex scrub rule before compilation.
type Pattern struct {
	Name        string
	Pattern     string
	Replacement string
	Description string
}

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatterns is the default secret sweep applied to free-form text.
var builtinPatterns = []Pattern{
	{
		Name:        "api_key",
		Pattern:     `(?i)(api[_-]?key|apikey)["'\s:=]+[\w\-\.]{16,}`,
		Replacement: "$1=***MASKED_API_KEY***",
		Description: "Generic API key assignments",
	},
	{
		Name:        "bearer_token",
		Pattern:     `(?i)bearer\s+[\w\-\.=]{16,}`,
		Replacement: "Bearer ***MASKED_TOKEN***",
		Description: "Authorization bearer tokens",
	},
	{
		Name:        "basic_auth",
		Pattern:     `(?i)basic\s+[A-Za-z0-9+/=]{16,}`,
		Replacement: "Basic ***MASKED_CREDENTIALS***",
		Description: "Authorization basic credentials",
	},
	{
		Name:        "url_credentials",
		Pattern:     `://[^/\s:@]+:[^/\s:@]+@`,
		Replacement: "://***MASKED_CREDENTIALS***@",
		Description: "Credentials embedded in URLs",
	},
}

// Config selects what the Service scrubs.
type Config struct {
	// RedactPrompts replaces every prompt rendering wholesale with
	// RedactedPlaceholder instead of pattern-scrubbing it.
	RedactPrompts bool

	// CustomPatterns are compiled in addition to the built-in sweep.
	CustomPatterns []Pattern
}

// Service applies redaction. Created once at startup; thread-safe and
// stateless aside from compiled patterns.
type Service struct {
	redactPrompts bool
	patterns      []*CompiledPattern
}

// NewService compiles all patterns eagerly. Invalid patterns are logged
// and skipped.
func NewService(cfg Config) *Service {
	s := &Service{redactPrompts: cfg.RedactPrompts}
	for _, p := range builtinPatterns {
		s.compile(p)
	}
	for _, p := range cfg.CustomPatterns {
		s.compile(p)
	}
	return s
}

func (s *Service) compile(p Pattern) {
	compiled, err := regexp.Compile(p.Pattern)
	if err != nil {
		slog.Error("Failed to compile redaction pattern, skipping",
			"pattern", p.Name, "error", err)
		return
	}
	s.patterns = append(s.patterns, &CompiledPattern{
		Name:        p.Name,
		Regex:       compiled,
		Replacement: p.Replacement,
		Description: p.Description,
	})
}

// Prompt returns the renderable form of a prompt: RedactedPlaceholder
// when prompt redaction is enabled, the prompt unchanged otherwise.
func (s *Service) Prompt(prompt string) string {
	if s.redactPrompts {
		return RedactedPlaceholder
	}
	return prompt
}

// Text applies the secret pattern sweep to free-form text such as trace
// step content or a provider response being rendered into a report.
func (s *Service) Text(content string) string {
	if content == "" {
		return content
	}
	masked := content
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}
