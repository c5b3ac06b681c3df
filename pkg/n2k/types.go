// Package n2k holds the in-memory per-PGN state store for decoded NMEA 2000
// messages: the keying rules, slot reuse, expiration, and snapshot
// serialization described by the aggregator's data model.
package n2k

import "sync"

// PGN validity ranges. Anything outside these is rejected by the ingester.
const (
	MinPGN       = 59391
	MaxPGN       = 131000
	ActisenseBEM = 0x400000
	ActisenseRng = 0x100
)

// Validity windows, in seconds, added to the arrival time to compute a
// message's expiry. Keyed by which secondary-key field (if any) matched.
const (
	timeoutDefault     = 120
	timeoutMessageID   = 3600
	timeoutUserID      = 3600
	timeoutAIS         = 3600    // PGN 126996
	timeoutSonicHub    = 2678400 // PGN 130816, ~31 days
)

// SecondaryKey identifies which of the recognized secondary-key fields (if
// any) distinguished a message's primary key.
type SecondaryKey int

const (
	KeyNone SecondaryKey = iota
	KeyInstance
	KeyReference
	KeyMessageID
	KeyUserID
	KeyProprietaryID
)

// secondaryKeyTokens lists the literal substrings scanned for, in priority
// order, and their timeout classification.
var secondaryKeyTokens = []struct {
	token   string
	key     SecondaryKey
	timeout int
}{
	{`Instance"`, KeyInstance, timeoutDefault},
	{`"Reference"`, KeyReference, timeoutDefault},
	{`"Message ID"`, KeyMessageID, timeoutMessageID},
	{`"User ID"`, KeyUserID, timeoutUserID},
	{`"Proprietary ID"`, KeyProprietaryID, timeoutDefault},
}

// ValidPGN reports whether prn falls within one of the two ranges the store
// accepts: the NMEA-assigned range, or the Actisense manufacturer/BEM range.
func ValidPGN(prn int) bool {
	if prn >= MinPGN && prn <= MaxPGN {
		return true
	}
	return prn >= ActisenseBEM && prn < ActisenseBEM+ActisenseRng
}

// Message is a single observed record for a given (PGN, src, key2).
type Message struct {
	Src       uint8
	Key2      string
	ExpiresAt int64 // unix seconds
	Text      string
}

// PgnEntry holds every live (and reusable) Message slot for one PGN.
type PgnEntry struct {
	PRN         int
	Description string
	Messages    []Message
}

// Store is the mapping from PGN to PgnEntry, plus the insertion-ordered
// list of PGNs so snapshots iterate deterministically.
type Store struct {
	mu      sync.Mutex
	entries map[int]*PgnEntry
	order   []int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[int]*PgnEntry)}
}

// Validity returns the expiry window, in seconds, for a record with the
// given PGN and matched secondary key.
func Validity(prn int, key SecondaryKey) int {
	switch prn {
	case 126996:
		return timeoutAIS
	case 130816:
		return timeoutSonicHub
	}
	for _, tok := range secondaryKeyTokens {
		if tok.key == key {
			return tok.timeout
		}
	}
	return timeoutDefault
}

