// Package ingest turns a byte stream into validated NMEA 2000 JSON records,
// updates the PGN store, and appends each accepted record to a broadcast
// sink for fan-out to live streaming clients.
package ingest

import "github.com/rexliu/n2kd/pkg/n2k"

// MaxLineLen bounds the reassembly buffer. Lines longer than this silently
// truncate, matching the fixed 4096-byte buffer of the wire protocol.
const MaxLineLen = 4096

// Sink receives one accepted, newline-terminated record's raw text
// (including the trailing newline) for fan-out to streaming clients.
type Sink interface {
	Append(text string)
}

// Reject is called for every line the reassembler drops, with a short
// reason code, for optional diagnostic logging.
type Reject func(line string, reason string)

// Reassembler holds the single static line buffer described by the
// ingestion component, shared by every producer that feeds it (stdin and,
// in copy mode, client lines): bytes accumulate until a newline, at which
// point the accumulated candidate is validated and (if accepted) used to
// update the store and fed to the broadcast sink.
type Reassembler struct {
	store *n2k.Store
	sink  Sink
	onRej Reject
	buf   []byte
}

// New returns a Reassembler that updates store and appends accepted
// records to sink. onReject may be nil.
func New(store *n2k.Store, sink Sink, onReject Reject) *Reassembler {
	return &Reassembler{
		store: store,
		sink:  sink,
		onRej: onReject,
		buf:   make([]byte, 0, MaxLineLen),
	}
}

// Feed consumes one byte of input. On a newline it validates and processes
// the accumulated line, then resets the buffer for the next record.
func (r *Reassembler) Feed(c byte, now int64) {
	if c != '\n' {
		if len(r.buf) < MaxLineLen {
			r.buf = append(r.buf, c)
		}
		return
	}
	r.process(string(r.buf), now)
	r.buf = r.buf[:0]
}

// FeedBytes feeds a byte slice through Feed in order. It is a convenience
// for callers that already have a contiguous chunk (a socket read, a test
// fixture) rather than a byte-by-byte producer.
func (r *Reassembler) FeedBytes(chunk []byte, now int64) {
	for _, c := range chunk {
		r.Feed(c, now)
	}
}

func (r *Reassembler) process(line string, now int64) {
	if !Validate(line) {
		r.reject(line, "malformed")
		return
	}
	fields, ok := n2k.Extract(line)
	if !ok {
		r.reject(line, "missing-or-invalid-src-pgn")
		return
	}
	r.store.Update(fields, line, now)
	if r.sink != nil {
		r.sink.Append(line + "\n")
	}
}

func (r *Reassembler) reject(line, reason string) {
	if r.onRej != nil {
		r.onRej(line, reason)
	}
}
