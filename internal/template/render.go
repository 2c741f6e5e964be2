// Package template implements flat placeholder substitution for message
// content. It is deliberately not a templating language: no conditionals, no
// loops, no recursion. Two token forms are supported: the canonical
// double-brace {{key}} form and a legacy single-brace {key} form kept for
// backward-compatible personalization variables in message bodies.
package template

import (
	"regexp"
	"strings"
)

// token pattern for double-brace substitution: {{ variable_name }}
var varPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// LegacyVars are the personalization keys honored in the single-brace form.
var LegacyVars = []string{"name", "email", "company", "position", "firstName"}

// Render substitutes every occurrence of each {{key}} token using vars.
// Substitution is literal and non-recursive: substituted values are never
// scanned for further tokens. Tokens whose key is absent from vars are
// replaced with the empty string so that raw tokens never reach a recipient;
// callers are expected to supply complete maps with their own fallbacks.
func Render(s string, vars map[string]string) string {
	if s == "" || !strings.Contains(s, "{{") {
		return s
	}

	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-2])
		return vars[key]
	})
}

// RenderLegacy substitutes the single-brace {key} form for the legacy
// personalization variables only. Keys are regexp-quoted before the match
// pattern is built, since values may come from untrusted configuration.
// Unknown single-brace tokens are left untouched: the form is too ambiguous
// (CSS, JSON) to blank out unrecognized matches.
func RenderLegacy(s string, vars map[string]string) string {
	if s == "" || !strings.Contains(s, "{") {
		return s
	}

	for _, key := range LegacyVars {
		val, ok := vars[key]
		if !ok {
			continue
		}
		pattern := regexp.MustCompile(`\{\s*` + regexp.QuoteMeta(key) + `\s*\}`)
		s = pattern.ReplaceAllLiteralString(s, val)
	}
	return s
}

// RenderAll applies the double-brace pass followed by the legacy pass.
func RenderAll(s string, vars map[string]string) string {
	return RenderLegacy(Render(s, vars), vars)
}
