// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sanitize strips model-output framing before text reaches users.
//
// Clean is pure and idempotent: running it twice always yields the same
// result as running it once. Only known framing artifacts are removed;
// legitimate content, including fenced code blocks, passes through
// untouched.
package sanitize

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// instructionHeader matches lines like "### Response:" that
	// instruction-tuned models emit as section framing. The trailing
	// colon is required so legitimate markdown headings survive.
	instructionHeader = regexp.MustCompile(`(?m)^#{2,}\s*[\w ]+:\s*$`)

	// rolePrefix matches a leading speaker label on the first line.
	rolePrefix = regexp.MustCompile(`^(?i)(assistant|ai|bot|model)\s*:\s*`)

	// templateTag matches leftover chat-template control tokens.
	templateTag = regexp.MustCompile(`<\|im_start\|>|<\|im_end\|>|<\|assistant\|>|<\|user\|>|<\|system\|>|<\|end\|>|</s>|<s>`)

	// excessBlankLines matches runs of three or more newlines, which
	// collapse to exactly one blank line.
	excessBlankLines = regexp.MustCompile(`\n{3,}`)
)

// Clean removes framing artifacts from raw model output.
//
// # Description
//
// One pass applies, in order:
//
//  1. unwrap a JSON envelope whose single text field is named
//     "response", "answer", or "text"
//  2. drop instruction-format section headers ("### Response:")
//  3. drop a leading role label ("Assistant:")
//  4. strip chat-template control tokens
//  5. collapse runs of 3+ newlines to one blank line
//  6. trim surrounding whitespace
//
// Passes repeat until the text is stable, so an artifact revealed by a
// strip (a header hiding a JSON envelope, a template tag hiding a role
// label) is removed on the next pass. Every changed pass shortens the
// text, so the loop terminates.
//
// An input that is entirely artifacts cleans to the empty string; the
// caller decides what to do with that.
func Clean(raw string) string {
	text := raw
	for {
		stripped := stripOnce(text)
		if stripped == text {
			return text
		}
		text = stripped
	}
}

func stripOnce(raw string) string {
	text := unwrapJSON(raw)
	text = instructionHeader.ReplaceAllString(text, "")
	text = rolePrefix.ReplaceAllString(strings.TrimLeft(text, " \t\n"), "")
	text = templateTag.ReplaceAllString(text, "")
	text = excessBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// unwrapJSON extracts the payload when the whole output is a JSON object
// carrying its text under a conventional key. Anything that does not
// parse as such an object is returned unchanged.
func unwrapJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return raw
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return raw
	}

	for _, key := range []string{"response", "answer", "text"} {
		rawField, ok := envelope[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(rawField, &value); err != nil {
			return raw
		}
		return value
	}
	return raw
}
