// Package netloop implements n2kd's single-threaded, readiness-based event
// loop: one process, one goroutine, dispatching reads and writes across
// stdin, stdout, the two TCP listeners, and every accepted client from a
// fixed-size descriptor table polled with select(2).
package netloop

import "time"

// ClientKind enumerates the roles a descriptor can play in the event loop.
type ClientKind int

const (
	// KindDataInput is stdin: NMEA 2000 JSON records to ingest.
	KindDataInput ClientKind = iota
	// KindDataOutputStream is stdout in pass-through mode: client lines are
	// written straight through to stdout.
	KindDataOutputStream
	// KindDataOutputCopy is stdout in copy mode (-o): client lines are fed
	// back into the ingester instead of being written to stdout.
	KindDataOutputCopy
	// KindDataOutputSink is stdout in sink mode (-r): client lines are
	// silently dropped.
	KindDataOutputSink
	// KindServerJSON is the listening socket for the JSON port.
	KindServerJSON
	// KindServerNMEA0183 is the listening socket for the NMEA0183 port.
	KindServerNMEA0183
	// KindClientJSON is an accepted JSON client awaiting its one-shot
	// snapshot, after which it is closed.
	KindClientJSON
	// KindClientJSONStream is a JSON client that sent "-" to request a live
	// broadcast feed instead of a one-shot snapshot.
	KindClientJSONStream
	// KindClientNMEA0183Stream is an accepted NMEA0183 client. It is
	// intentionally inert: the translator that would service it is out of
	// scope, so it is accepted and then never read from or written to.
	KindClientNMEA0183Stream
)

// updateInterval is how long a KindClientJSON slot waits after being
// accepted before it is sent its snapshot and closed.
const updateInterval = 500 * time.Millisecond

// maxLineLen bounds each client's line-reassembly buffer; once it fills with
// no newline, readClient silently discards the buffered bytes and keeps
// reading into the emptied buffer.
const maxLineLen = 4096

// ClientSlot is one entry in the descriptor table.
type ClientSlot struct {
	Fd        int
	Kind      ClientKind
	Deadline  time.Time
	Buf       [maxLineLen]byte
	Len       int
	SessionID string
}

func (s *ClientSlot) hasReadInterest() bool {
	switch s.Kind {
	case KindDataInput, KindClientJSON, KindClientJSONStream, KindServerJSON, KindServerNMEA0183:
		return true
	default:
		return false
	}
}

func (s *ClientSlot) hasWriteInterest() bool {
	switch s.Kind {
	case KindClientJSON, KindClientJSONStream, KindDataOutputStream, KindDataOutputCopy:
		return true
	default:
		return false
	}
}
