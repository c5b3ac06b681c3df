package n2k

// Update applies the ingestion update rule for one validated record: find
// or create the PgnEntry, overwrite the Message slot with the same primary
// key (src, key2) whether live or expired, else reuse the first expired
// slot, else grow the entry, then store the record text and bump its expiry.
func (s *Store) Update(f ExtractedFields, text string, at int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[f.PRN]
	if !ok {
		entry = &PgnEntry{PRN: f.PRN}
		s.entries[f.PRN] = entry
		s.order = append(s.order, f.PRN)
	}
	if entry.Description == "" && f.Description != "" {
		entry.Description = f.Description
	}

	src := uint8(f.Src)
	idx := -1

	// Same primary key (src, key2) already present: overwrite in place.
	for i := range entry.Messages {
		m := &entry.Messages[i]
		if m.Src == src && m.Key2 == f.Key2 {
			idx = i
			break
		}
	}

	// No primary-key match: reuse the first expired slot, freeing its key2.
	if idx < 0 {
		for i := range entry.Messages {
			if entry.Messages[i].ExpiresAt < at {
				idx = i
				entry.Messages[i].Key2 = ""
				break
			}
		}
	}

	// Nothing to reuse: grow.
	if idx < 0 {
		entry.Messages = append(entry.Messages, Message{})
		idx = len(entry.Messages) - 1
	}

	valid := Validity(f.PRN, f.Key)
	entry.Messages[idx].Src = src
	entry.Messages[idx].Key2 = f.Key2
	entry.Messages[idx].Text = text
	entry.Messages[idx].ExpiresAt = at + int64(valid)
}
