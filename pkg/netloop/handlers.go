package netloop

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// broadcastBuffer is the pending-broadcast buffer of spec §3: appended to
// during the read phase, drained during the write phase of the same
// iteration, reset to empty length at the end of every iteration. It
// implements ingest.Sink.
type broadcastBuffer struct {
	buf []byte
}

func (b *broadcastBuffer) Append(text string) {
	b.buf = append(b.buf, text...)
}

func (b *broadcastBuffer) Reset() {
	b.buf = b.buf[:0]
}

// readChunkSize is the size of one read(2) call's scratch buffer. It is
// independent of the 4096-byte line-reassembly buffers; a single read may
// deliver more or less than one line.
const readChunkSize = 4096

// handleRead dispatches slot i's ready-for-read descriptor to the handler
// appropriate for its kind, per spec §4.1.
func (srv *Server) handleRead(i int) error {
	slot := &srv.slots[i]
	switch slot.Kind {
	case KindServerJSON:
		srv.acceptLoop(slot.Fd, KindClientJSON)
		return nil
	case KindServerNMEA0183:
		srv.acceptLoop(slot.Fd, KindClientNMEA0183Stream)
		return nil
	case KindDataInput:
		return srv.readStdin(i)
	case KindClientJSON, KindClientJSONStream:
		srv.readClient(i)
		return nil
	default:
		return nil
	}
}

// acceptLoop loop-accepts on listenerFd until EAGAIN, registering each new
// descriptor under kind. A JSON_ONESHOT client gets its 500ms snapshot
// deadline set here. Exceeding the descriptor table silently drops the
// newcomer (spec §4.4) — it is simply closed, not fatal.
func (srv *Server) acceptLoop(listenerFd int, kind ClientKind) {
	for {
		fd, _, err := unix.Accept(listenerFd)
		if err != nil {
			return // EAGAIN or any other accept failure: nothing pending, stop looping
		}
		unix.SetNonblock(fd, true)

		idx, err := srv.add(fd, kind)
		if err != nil {
			unix.Close(fd)
			continue
		}
		if kind == KindClientJSON {
			srv.slots[idx].Deadline = time.Now().Add(updateInterval)
		}
		if srv.onConn != nil {
			srv.onConn(nowSeconds(), fmt.Sprintf("accept slot=%d fd=%d kind=%d session=%s", idx, fd, kind, srv.slots[idx].SessionID))
		}
	}
}

// readStdin reads available bytes from stdin and feeds them through the
// reassembler. A read failure or EOF is fatal: the analyzer feeding stdin
// is a required live producer for the process's entire lifetime (spec §9
// open question; preserved, not "fixed").
func (srv *Server) readStdin(i int) error {
	var buf [readChunkSize]byte
	n, err := unix.Read(srv.slots[i].Fd, buf[:])
	if err != nil || n <= 0 {
		if err == nil {
			err = fmt.Errorf("EOF on stdin")
		}
		return fmt.Errorf("read stdin: %w", err)
	}
	srv.reasm.FeedBytes(buf[:n], nowSeconds())
	return nil
}

// readClient reads into slot i's line-reassembly buffer and processes every
// complete line found, in order. A line ending in "-\n" upgrades the slot to
// JSON_STREAM and discards the rest of its buffer; any other line is forwarded
// to stdout (pass-through) or fed byte-by-byte into the ingester (copy
// mode), per spec §4.4. A short read (0 or error) closes the slot — a
// per-client recoverable condition, never fatal, since this is never the
// stdin descriptor.
func (srv *Server) readClient(i int) {
	slot := &srv.slots[i]
	space := len(slot.Buf) - slot.Len
	if space <= 0 {
		// Buffer already full with no newline seen: discard its contents
		// silently and start reading into an empty buffer.
		slot.Len = 0
		space = len(slot.Buf)
	}
	n, err := unix.Read(slot.Fd, slot.Buf[slot.Len:slot.Len+space])
	if err != nil || n <= 0 {
		srv.closeSlot(i)
		return
	}
	slot.Len += n

	for {
		nl := -1
		for j := 0; j < slot.Len; j++ {
			if slot.Buf[j] == '\n' {
				nl = j
				break
			}
		}
		if nl < 0 {
			return
		}
		line := append([]byte(nil), slot.Buf[:nl+1]...)
		remaining := slot.Len - (nl + 1)
		copy(slot.Buf[:remaining], slot.Buf[nl+1:slot.Len])
		slot.Len = remaining

		if nl > 0 && line[nl-1] == '-' {
			slot.Kind = KindClientJSONStream
			slot.Len = 0
			return
		}

		switch srv.stdoutMode {
		case KindDataOutputStream:
			writeOnce(srv.stdoutFd, line)
		case KindDataOutputCopy:
			srv.reasm.FeedBytes(line, nowSeconds())
		default:
			// DATA_OUTPUT_SINK: drop on the floor.
		}
	}
}
