// Package extract locates the JSON payload that the inference process embeds
// in its stdout among free-form log lines.
//
// The scan anchors on the first opening brace and walks forward counting
// brace depth until it returns to zero. Braces inside JSON string literals
// are not counted. A balanced candidate that is not valid JSON is skipped
// and the scan resumes after it, so brace-bearing log text ahead of the
// payload does not hide it.
//
// A plain first-brace scan would stop at the first balanced candidate and
// report it as malformed: "progress {50%}" followed by the payload fails
// there and succeeds here. Only when no candidate parses is the first
// malformed one reported.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/aldr4GO/celebtwin/internal/domain"
)

// previewLen bounds how much raw output is echoed back in error details.
const previewLen = 100

// Payload is the raw JSON object recovered from process output.
type Payload []byte

// Find returns the first well-formed JSON object in out.
func Find(out string) (Payload, error) {
	start := strings.IndexByte(out, '{')
	if start < 0 {
		return nil, domain.Detailf(domain.ErrNoPayloadFound, "no JSON object in output: %q", preview(out))
	}

	var firstErr error
	for {
		end, ok := balancedEnd(out, start)
		if !ok {
			if firstErr != nil {
				return nil, firstErr
			}
			return nil, domain.Detailf(domain.ErrUnbalancedPayload,
				"payload starting at byte %d is never closed", start)
		}

		candidate := out[start:end]
		if json.Valid([]byte(candidate)) {
			return Payload(candidate), nil
		}
		if firstErr == nil {
			firstErr = domain.Detailf(domain.ErrMalformedPayload, "invalid JSON: %q", preview(candidate))
		}

		next := strings.IndexByte(out[end:], '{')
		if next < 0 {
			return nil, firstErr
		}
		start = end + next
	}
}

// balancedEnd returns the index just past the brace that closes the one at
// out[start]. ok is false when the depth never returns to zero.
func balancedEnd(out string, start int) (end int, ok bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(out); i++ {
		c := out[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return strings.ToValidUTF8(s[:previewLen], "")
}
