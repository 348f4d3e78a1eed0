package generator

import (
	"encoding/json"
	"strings"

	"github.com/dshills/docsplice/pkg/types"
)

// ReviewParseFailure is the glitch recorded when a review response is not valid JSON
const ReviewParseFailure = "Failed to parse review JSON"

// ExtractDocBlock returns the text from the first "/**" through the next
// "*/", newline-terminated. It reports false when either marker is missing.
func ExtractDocBlock(resp string) (string, bool) {
	start := strings.Index(resp, "/**")
	if start == -1 {
		return "", false
	}
	end := strings.Index(resp[start:], "*/")
	if end == -1 {
		return "", false
	}
	return resp[start:start+end+2] + "\n", true
}

// trimFence removes surrounding whitespace and a ```json ... ``` fence
func trimFence(resp string) string {
	s := strings.TrimSpace(resp)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseInlineComments decodes a JSON array of {line, comment} objects.
// Malformed input yields no comments; malformed or empty entries are dropped.
func ParseInlineComments(resp string) []types.InlineComment {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(trimFence(resp)), &raw); err != nil {
		return nil
	}

	comments := make([]types.InlineComment, 0, len(raw))
	for _, entry := range raw {
		var c types.InlineComment
		if err := json.Unmarshal(entry, &c); err != nil {
			continue
		}
		c.Comment = strings.TrimSpace(c.Comment)
		if c.Comment == "" {
			continue
		}
		comments = append(comments, c)
	}
	return comments
}

// ParseReview decodes a review response for (file, function). The record
// always carries the given identity, whatever the response claims. An
// unparseable response becomes a single ReviewParseFailure glitch.
// DateTime is left for the caller.
func ParseReview(resp, file, function string) types.ReviewRecord {
	record := types.ReviewRecord{
		File:     file,
		Function: function,
		Glitches: []string{},
	}

	var parsed struct {
		Glitches []string `json:"glitches"`
	}
	if err := json.Unmarshal([]byte(trimFence(resp)), &parsed); err != nil {
		record.Glitches = []string{ReviewParseFailure}
		return record
	}

	if parsed.Glitches != nil {
		record.Glitches = parsed.Glitches
	}
	return record
}
