package ingest

import "strings"

// Validate reports whether a candidate line (accumulated since the last
// newline) qualifies as a well-formed record. All three checks must hold:
//
//  1. it contains the substring `"fields":`
//  2. it begins with `{"timestamp`
//  3. its last two bytes are `}}`
func Validate(line string) bool {
	if !strings.Contains(line, `"fields":`) {
		return false
	}
	if !strings.HasPrefix(line, `{"timestamp`) {
		return false
	}
	if len(line) < 2 || line[len(line)-2:] != "}}" {
		return false
	}
	return true
}
