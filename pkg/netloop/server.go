// Package netloop implements n2kd's single-threaded, readiness-based event
// loop: one process, one goroutine, dispatching reads and writes across
// stdin, stdout, the two TCP listeners, and every accepted client from a
// fixed-size descriptor table polled with select(2).
package netloop

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sys/unix"

	"github.com/rexliu/n2kd/pkg/ingest"
	"github.com/rexliu/n2kd/pkg/n2k"
)

// ConnEvent is emitted on every accept and close, for optional diagnostic
// tracing. detail is a free-form operator-facing string (peer description,
// slot index, client kind); it carries no protocol meaning.
type ConnEvent func(at int64, detail string)

// RejectEvent is emitted for every ingester line drop, mirroring
// ingest.Reject but carrying the loop's wall-clock second.
type RejectEvent func(at int64, line, reason string)

// Options configures a Server. Port and DescriptorCap are the only two
// tunables that vary the event loop's shape; everything else in it follows
// directly from the protocol.
type Options struct {
	Store         *n2k.Store
	Port          int // JSON port; NMEA 0183 listens on Port+1
	StdoutMode    ClientKind
	DescriptorCap int // 0 selects the package default

	OnReject     RejectEvent
	OnConnection ConnEvent
}

// Server owns every descriptor in the process: stdin, stdout, the two
// listening sockets, and every accepted client. It is not safe for
// concurrent use — by design, only Run's goroutine ever touches it.
type Server struct {
	store *n2k.Store
	reasm *ingest.Reassembler
	sink  *broadcastBuffer

	stdoutMode ClientKind
	stdoutFd   int
	onConn     ConnEvent

	slots  []ClientSlot
	active []bool
	idxMax int
	fdMax  int

	jsonListenerFd int
	nmeaListenerFd int

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// defaultDescriptorCap mirrors the historical FD_SETSIZE assumption this
// design is built around (spec §5).
const defaultDescriptorCap = 1024

// New builds a Server bound to the two TCP listeners on opts.Port and
// opts.Port+1, with stdin and stdout registered per spec §3's ClientKind
// enumeration. It does not start serving; call Run.
func New(opts Options) (*Server, error) {
	cap := opts.DescriptorCap
	if cap <= 0 {
		cap = defaultDescriptorCap
	}
	if cap > defaultDescriptorCap {
		// unix.FdSet.Bits is a fixed-size array sized for exactly
		// defaultDescriptorCap descriptors; a cap above it would index
		// fdSet/fdIsSet out of range instead of the graceful "exceeding
		// this closes the offending newcomer" behavior spec §5 requires.
		return nil, fmt.Errorf("descriptor cap %d exceeds FD_SETSIZE-equivalent %d", cap, defaultDescriptorCap)
	}

	srv := &Server{
		store:          opts.Store,
		sink:           &broadcastBuffer{},
		stdoutMode:     opts.StdoutMode,
		stdoutFd:       unix.Stdout,
		onConn:         opts.OnConnection,
		slots:          make([]ClientSlot, cap),
		active:         make([]bool, cap),
		jsonListenerFd: -1,
		nmeaListenerFd: -1,
		entropy:        ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for i := range srv.slots {
		srv.slots[i].Fd = -1
	}
	srv.reasm = ingest.New(opts.Store, srv.sink, func(line, reason string) {
		if opts.OnReject != nil {
			opts.OnReject(nowSeconds(), line, reason)
		}
	})

	if _, err := srv.add(unix.Stdin, KindDataInput); err != nil {
		return nil, fmt.Errorf("register stdin: %w", err)
	}
	if _, err := srv.add(unix.Stdout, opts.StdoutMode); err != nil {
		return nil, fmt.Errorf("register stdout: %w", err)
	}

	jsonFd, err := listenTCP(opts.Port)
	if err != nil {
		return nil, fmt.Errorf("listen json port %d: %w", opts.Port, err)
	}
	if _, err := srv.add(jsonFd, KindServerJSON); err != nil {
		unix.Close(jsonFd)
		return nil, err
	}
	srv.jsonListenerFd = jsonFd

	nmeaFd, err := listenTCP(opts.Port + 1)
	if err != nil {
		unix.Close(jsonFd)
		return nil, fmt.Errorf("listen nmea0183 port %d: %w", opts.Port+1, err)
	}
	if _, err := srv.add(nmeaFd, KindServerNMEA0183); err != nil {
		unix.Close(jsonFd)
		unix.Close(nmeaFd)
		return nil, err
	}
	srv.nmeaListenerFd = nmeaFd

	return srv, nil
}

// listenTCP opens a non-blocking, SO_REUSEADDR TCP listener bound to
// INADDR_ANY:port with a backlog of 10, matching the original daemon's
// tcpServer exactly.
func listenTCP(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 10); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func nowSeconds() int64 { return time.Now().Unix() }

// sessionID mints a process-monotonic ULID for ClientSlot.SessionID,
// purely for debug-log correlation; it is never observable to clients.
func (srv *Server) sessionID() string {
	srv.entropyMu.Lock()
	defer srv.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), srv.entropy).String()
}

// add finds a free slot (reusing the lowest free index, exactly like the
// original setFdUsed) and registers fd under kind. It returns an error only
// when the descriptor table is full, the one recoverable "too many clients"
// condition in spec §5.
func (srv *Server) add(fd int, kind ClientKind) (int, error) {
	idx := -1
	for i := range srv.slots {
		if !srv.active[i] {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, fmt.Errorf("descriptor table full (cap=%d)", len(srv.slots))
	}

	srv.slots[idx] = ClientSlot{Fd: fd, Kind: kind, Len: 0, SessionID: srv.sessionID()}
	srv.active[idx] = true
	if idx > srv.idxMax {
		srv.idxMax = idx
	}
	if fd > srv.fdMax {
		srv.fdMax = fd
	}
	return idx, nil
}

// closeSlot closes the descriptor, frees the slot for reuse, and shrinks
// idxMax/fdMax conservatively by scanning back to the highest live slot —
// the same bookkeeping the original closeStream performs.
func (srv *Server) closeSlot(idx int) {
	if !srv.active[idx] {
		return
	}
	fd := srv.slots[idx].Fd
	unix.Close(fd)
	srv.active[idx] = false
	srv.slots[idx].Fd = -1
	srv.slots[idx].Len = 0

	if srv.onConn != nil {
		srv.onConn(nowSeconds(), fmt.Sprintf("close slot=%d fd=%d kind=%d session=%s", idx, fd, srv.slots[idx].Kind, srv.slots[idx].SessionID))
	}

	if idx == srv.idxMax {
		for srv.idxMax > 0 && !srv.active[srv.idxMax] {
			srv.idxMax--
		}
		srv.fdMax = 0
		for i := 0; i <= srv.idxMax; i++ {
			if srv.active[i] && srv.slots[i].Fd > srv.fdMax {
				srv.fdMax = srv.slots[i].Fd
			}
		}
	}
}

// Run drives the event loop forever. It returns only on a fatal error per
// spec §7: stdin read failure, stdout write failure, or a readiness-wait
// syscall failure. There is no graceful shutdown path (spec §5, §9); the
// caller's process exits on the returned error.
func (srv *Server) Run() error {
	for {
		if err := srv.readPhase(); err != nil {
			return err
		}
		if err := srv.writePhase(); err != nil {
			return err
		}
		srv.sink.Reset()
	}
}

// readPhase waits up to one second for any readable descriptor and
// dispatches each ready one to its kind's read handler.
func (srv *Server) readPhase() error {
	var rset unix.FdSet
	fdZero(&rset)
	for i := 0; i <= srv.idxMax; i++ {
		if srv.active[i] && srv.slots[i].hasReadInterest() {
			fdSet(&rset, srv.slots[i].Fd)
		}
	}

	timeout := unix.Timeval{Sec: 1, Usec: 0}
	n, err := unixSelect(srv.fdMax+1, &rset, nil, nil, &timeout)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("select (read): %w", err)
	}

	for i := 0; i <= srv.idxMax && n > 0; i++ {
		if !srv.active[i] {
			continue
		}
		fd := srv.slots[i].Fd
		if !fdIsSet(&rset, fd) {
			continue
		}
		n--
		if err := srv.handleRead(i); err != nil {
			return err
		}
	}
	return nil
}

// writePhase probes writability with a zero timeout and, per descriptor
// with write interest: closes it if it is unexpectedly unwritable, sends a
// lazily-built snapshot to due JSON_ONESHOT clients, or forwards the
// pending-broadcast buffer to every streaming sink.
func (srv *Server) writePhase() error {
	if srv.idxMax < 0 {
		return nil
	}

	var wset unix.FdSet
	fdZero(&wset)
	for i := 0; i <= srv.idxMax; i++ {
		if srv.active[i] && srv.slots[i].hasWriteInterest() {
			fdSet(&wset, srv.slots[i].Fd)
		}
	}

	_, err := unixSelect(srv.fdMax+1, nil, &wset, nil, &unix.Timeval{Sec: 0, Usec: 0})
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("select (write): %w", err)
	}

	var snapshot string
	haveSnapshot := false
	now := time.Now()

	for i := 0; i <= srv.idxMax; i++ {
		if !srv.active[i] || !srv.slots[i].hasWriteInterest() {
			continue
		}
		fd := srv.slots[i].Fd
		if !fdIsSet(&wset, fd) {
			// Marked for writing but the OS reports it is not writable: a
			// stuck consumer is not worth blocking on (spec §4.1).
			srv.closeSlot(i)
			continue
		}

		switch srv.slots[i].Kind {
		case KindClientJSON:
			if srv.slots[i].Deadline.IsZero() || srv.slots[i].Deadline.After(now) {
				continue
			}
			if !haveSnapshot {
				snapshot = srv.store.Snapshot(now.Unix())
				haveSnapshot = true
			}
			if err := writeOnce(fd, []byte(snapshot)); err != nil {
				if fd == srv.stdoutFd {
					return fmt.Errorf("write stdout: %w", err)
				}
			}
			srv.closeSlot(i)
		case KindClientJSONStream, KindDataOutputStream, KindDataOutputCopy:
			if len(srv.sink.buf) == 0 {
				continue
			}
			if err := writeOnce(fd, srv.sink.buf); err != nil {
				if fd == srv.stdoutFd {
					return fmt.Errorf("write stdout: %w", err)
				}
				srv.closeSlot(i)
			}
		}
	}
	return nil
}

// writeOnce issues exactly one write(2) call for the whole buffer. A short
// write is never retried to completion: spec §5 requires "writes may still
// short-write, in which case the client is closed (no buffering of partial
// writes is attempted)", matching original_source/n2kd/main.c's
// sendJSONStream, which closes on any write shorter than the full buffer
// rather than looping the syscall within one write-phase tick.
func writeOnce(fd int, buf []byte) error {
	n, err := unix.Write(fd, buf)
	if err != nil {
		return err
	}
	if n < len(buf) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(buf))
	}
	return nil
}

// unixSelect is the select(2) call used by readPhase and writePhase; it is
// unix.Select held in a package variable.
var unixSelect = unix.Select
