package compactbook

import (
	"regexp"
	"strings"
)

var (
	// mdBook prepends the gutter line numbers to the text content of a
	// code element when they are enabled, e.g. "123456pragma ..."
	lineNumbersRegex  = regexp.MustCompile(`^\d+`)
	lineCommentRegex  = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRegex = regexp.MustCompile(`(?s)/\*.*?\*/`)
	declarationRegex  = regexp.MustCompile(`(?m)^\s*(export\s+)?(module|contract)\s+`)
)

// Classification is the result of [Classify]
type Classification struct {
	// Normalized source with line numbers and comments removed, and surrounding whitespace trimmed
	Normalized string
	// True if the source is a complete program that can be compiled on its own
	Runnable bool
}

// StripLineNumbers removes a leading run of digits injected by external line numbering.
//
// The result is the text that is sent to the compiler.
func StripLineNumbers(raw string) string {
	return lineNumbersRegex.ReplaceAllString(raw, "")
}

// Classify decides whether raw is a standalone Compact program or an illustrative fragment.
//
// A program is runnable when, ignoring comments, it starts with a pragma or declares a
// module or contract at the start of some line.
//
// The classifier does not lex the source, so a keyword that only appears inside a string
// literal, e.g. `const s = "\nmodule x"`, is treated as a declaration.
func Classify(raw string) Classification {
	normalized := StripLineNumbers(raw)
	normalized = lineCommentRegex.ReplaceAllString(normalized, "")
	normalized = blockCommentRegex.ReplaceAllString(normalized, "")
	normalized = strings.TrimSpace(normalized)

	return Classification{
		Normalized: normalized,
		Runnable:   strings.HasPrefix(normalized, "pragma") || declarationRegex.MatchString(normalized),
	}
}
