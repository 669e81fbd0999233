package condition

import "strings"

// DefaultReason is used when a reply carries no usable reason line.
const DefaultReason = "No reason provided."

const (
	categoryPrefix = "category:"
	reasonPrefix   = "reason:"
)

// ParsedResponse is the normalized content of one oracle reply.
type ParsedResponse struct {
	Category Category
	Reason   string
}

// DefaultResponse returns the response used for absent or unparseable replies.
func DefaultResponse() ParsedResponse {
	return ParsedResponse{Category: NoRelevantInformation, Reason: DefaultReason}
}

// Parse extracts the category and reason from a reply of the form
//
//	Category: <label>
//	Reason: <text>
//
// Prefixes match case-insensitively at the start of a line. Every line is
// scanned and the last match for each field wins. Parse never fails; missing
// fields keep their defaults.
func Parse(reply string) ParsedResponse {
	resp := DefaultResponse()

	for _, line := range splitLines(strings.TrimSpace(reply)) {
		if value, ok := cutPrefixFold(line, categoryPrefix); ok {
			resp.Category = Normalize(value)
		} else if value, ok := cutPrefixFold(line, reasonPrefix); ok {
			resp.Reason = strings.TrimSpace(value)
		}
	}

	if resp.Reason == "" {
		resp.Reason = DefaultReason
	}
	return resp
}

// cutPrefixFold returns the remainder of line after prefix when line starts
// with prefix, ignoring ASCII case.
func cutPrefixFold(line, prefix string) (string, bool) {
	if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
		return "", false
	}
	return line[len(prefix):], true
}

// splitLines splits text at every line boundary: \n, \r, \r\n, \v, \f,
// the file/group/record separators \x1c-\x1e, NEL, and the Unicode line
// and paragraph separators. Empty lines are dropped.
func splitLines(text string) []string {
	return strings.FieldsFunc(text, isLineBreak)
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
