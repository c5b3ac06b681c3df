package n2k

import "strings"

// Snapshot walks the store in PGN insertion order and serializes every
// non-expired message into a single JSON object:
//
//	{"<prn>": {"description":"<desc>", "<src>[_<key2>]": <raw-record>, ...}, ...}
//
// Messages are embedded verbatim (they are already valid JSON text), so the
// builder never re-marshals a record it has already received.
func (s *Store) Snapshot(at int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteByte('{')
	for i, prn := range s.order {
		entry := s.entries[prn]
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		writeUint(&b, uint(prn))
		b.WriteString(`":{"description":"`)
		b.WriteString(escapeJSON(entry.Description))
		b.WriteByte('"')
		for _, m := range entry.Messages {
			if m.ExpiresAt < at {
				continue
			}
			b.WriteString(`,"`)
			writeUint(&b, uint(m.Src))
			if m.Key2 != "" {
				b.WriteByte('_')
				b.WriteString(m.Key2)
			}
			b.WriteString(`":`)
			b.WriteString(m.Text)
		}
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return b.String()
}

func writeUint(b *strings.Builder, v uint) {
	if v == 0 {
		b.WriteByte('0')
		return
	}
	var digits [20]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	b.Write(digits[i:])
}

// escapeJSON escapes the minimal set of characters that can appear in a
// PGN description (which is itself extracted from already-valid JSON, so
// this is defensive rather than load-bearing).
func escapeJSON(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
