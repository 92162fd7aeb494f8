package tftp

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
)

// recvBufferSize is sized for spec.md §4.5's "Note on buffer sizing":
// 515 bytes exposed for recv, reserving a 516th slot for a NUL
// terminator on the filename field the way the source this was
// distilled from does.
const recvBufferSize = 515

// Observer receives protocol-engine events for metrics/logging. All
// methods must be safe to call from the single dispatcher goroutine
// only; a nil Observer (via NopObserver) is always valid.
type Observer interface {
	TransferStarted(mode Mode)
	TransferCompleted()
	TransferTimedOut()
	Retransmission()
	BytesSent(n int)
	SessionCount(n int)
}

// NopObserver discards every event; it is the default when no
// Observer is configured.
type NopObserver struct{}

func (NopObserver) TransferStarted(Mode) {}
func (NopObserver) TransferCompleted()   {}
func (NopObserver) TransferTimedOut()    {}
func (NopObserver) Retransmission()      {}
func (NopObserver) BytesSent(int)        {}
func (NopObserver) SessionCount(int)     {}

// Server is the single-socket UDP event loop and dispatcher of
// spec.md §4.5. It owns the session table exclusively; nothing else
// may touch it while Serve is running.
type Server struct {
	Root     string
	Endpoint Endpoint
	Files    FileSource
	Observer Observer

	MaxResends    int
	ClientTimeout time.Duration
	IdleTimer     time.Duration

	table   *SessionTable
	closing int32
}

// NewServer builds a Server with spec.md's defaults for the timing
// constants; callers may override them before calling Serve.
func NewServer(root string, ep Endpoint, files FileSource, obs Observer) *Server {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Server{
		Root:          root,
		Endpoint:      ep,
		Files:         files,
		Observer:      obs,
		MaxResends:    MaxResends,
		ClientTimeout: ClientTimeout,
		IdleTimer:     InactiveTimer,
		table:         newSessionTable(),
	}
}

// Stop requests a graceful shutdown; Serve returns nil once it next
// wakes from its idle wait. This mirrors spec.md §9's atomic shared
// shutdown flag, sampled at the top of each dispatcher iteration.
func (s *Server) Stop() {
	atomic.StoreInt32(&s.closing, 1)
}

func (s *Server) stopping() bool {
	return atomic.LoadInt32(&s.closing) != 0
}

// Serve runs the dispatcher until Stop is called or a fatal endpoint
// error occurs (spec.md §5, §7). On return, every open session file
// has been closed. Per spec.md §5 and §7, every send and recv failure
// on the socket is fatal: Serve returns the error immediately rather
// than continuing to run with a socket it can no longer trust,
// mirroring the original's exit_error() on every sendto()/recvfrom().
func (s *Server) Serve() error {
	defer func() {
		if err := s.table.closeAll(); err != nil {
			glog.Errorf("closing session files on shutdown: %v", err)
		}
	}()

	buf := make([]byte, recvBufferSize)
	for {
		if s.stopping() {
			return nil
		}

		n, from, err := s.Endpoint.ReadFrom(buf, s.IdleTimer)
		if err != nil {
			if IsTimeout(err) {
				if err := s.sweepExpired(); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("tftp: fatal recv failure: %w", err)
		}

		pkt := ParsePacket(buf[:n])
		switch pkt.Kind {
		case KindRead:
			err = s.startTransfer(from, pkt)
		case KindAck:
			err = s.continueTransfer(from, pkt)
		case KindError:
			s.table.remove(from)
		case KindUnknown:
			err = s.sendError(from, ErrAccessViolation)
		}
		if err != nil {
			return err
		}
		s.Observer.SessionCount(s.table.len())
	}
}

// sweepExpired evicts every session idle for at least s.ClientTimeout,
// notifying each with an Undefined error. A send failure aborts the
// sweep immediately and is returned to Serve, leaving any remaining
// expired sessions in that pass unnotified until the next sweep (or
// until shutdown closes them) — see table.go's sweep for why this
// matches the source's behavior.
func (s *Server) sweepExpired() error {
	err := s.table.sweep(time.Now(), s.ClientTimeout, func(key ClientKey) error {
		err := s.sendError(key, ErrUndefined)
		s.Observer.TransferTimedOut()
		glog.Warningf("session %v timed out", key)
		return err
	})
	s.Observer.SessionCount(s.table.len())
	return err
}

// sendError writes an ERROR packet. A WriteTo failure here is fatal
// per spec.md §5/§7, same as any other send; the caller propagates it
// up to Serve.
func (s *Server) sendError(to ClientKey, code ErrorCode) error {
	if err := s.Endpoint.WriteTo(EncodeError(code), to); err != nil {
		return fmt.Errorf("tftp: fatal send failure: %w", err)
	}
	return nil
}

func (s *Server) send(to ClientKey, payload []byte) error {
	if err := s.Endpoint.WriteTo(payload, to); err != nil {
		return fmt.Errorf("tftp: fatal send failure: %w", err)
	}
	s.Observer.BytesSent(len(payload))
	return nil
}

// startTransfer implements spec.md §4.5.1. Its error return is the
// fatal send failure of spec.md §5/§7, if any; every other outcome
// (protocol error replies, successful sends) returns nil.
func (s *Server) startTransfer(from ClientKey, pkt Packet) error {
	if existing, ok := s.table.get(from); ok {
		if existing.blockNumber != 1 {
			err := s.sendError(from, ErrIllegalOperation)
			s.table.remove(from)
			return err
		}
		if existing.resends >= s.MaxResends {
			err := s.sendError(from, ErrUndefined)
			s.table.remove(from)
			return err
		}
		existing.resends++
		if err := s.send(from, existing.lastPayload); err != nil {
			return err
		}
		s.Observer.Retransmission()
		return nil
	}

	path, ok := ResolvePath(s.Root, pkt.Filename)
	if !ok {
		return s.sendError(from, ErrAccessViolation)
	}

	mode := ParseMode(pkt.ModeText)
	if mode != ModeNetascii && mode != ModeOctet {
		return s.sendError(from, ErrIllegalOperation)
	}

	file, err := s.Files.Open(path)
	if err != nil {
		return s.sendError(from, ErrFileNotFound)
	}

	sess := newSession(file, mode, time.Now())
	sess.filename = pkt.Filename
	chunk, err := sess.nextChunk()
	if err != nil {
		sess.close()
		return s.sendError(from, ErrUndefined)
	}

	payload := EncodeData(sess.blockNumber, chunk)
	if err := s.send(from, payload); err != nil {
		sess.close()
		return err
	}
	sess.lastPayload = payload
	sess.bytesSent = len(chunk)
	s.table.insert(from, sess)

	s.Observer.TransferStarted(mode)
	s.Observer.SessionCount(s.table.len())
	fmt.Printf("RRQ from %v: %s mode=%s\n", from, pkt.Filename, mode)
	return nil
}

// continueTransfer implements spec.md §4.5.2. Its error return is the
// fatal send failure of spec.md §5/§7, if any.
func (s *Server) continueTransfer(from ClientKey, pkt Packet) error {
	sess, ok := s.table.get(from)
	if !ok {
		return s.sendError(from, ErrUnknownTID)
	}

	sess.lastAction = time.Now()

	if pkt.Block != sess.blockNumber {
		if sess.resends >= s.MaxResends {
			err := s.sendError(from, ErrUndefined)
			s.table.remove(from)
			s.Observer.SessionCount(s.table.len())
			return err
		}
		sess.resends++
		if err := s.send(from, sess.lastPayload); err != nil {
			return err
		}
		s.Observer.Retransmission()
		return nil
	}

	if sess.final() {
		s.table.remove(from)
		s.Observer.TransferCompleted()
		s.Observer.SessionCount(s.table.len())
		elapsed := time.Since(sess.started)
		fmt.Printf("Read %s to %v (%s in %s) [%s]\n",
			sess.filename, from, humanize.Bytes(uint64(sess.bytesSent)), elapsed, sess.correlationID)
		return nil
	}

	sess.resends = 0
	sess.blockNumber = advanceBlock(sess.blockNumber)

	chunk, err := sess.nextChunk()
	if err != nil {
		s.table.remove(from)
		glog.Errorf("reading next chunk for %v: %v", from, err)
		return s.sendError(from, ErrUndefined)
	}

	payload := EncodeData(sess.blockNumber, chunk)
	if err := s.send(from, payload); err != nil {
		s.table.remove(from)
		return err
	}
	sess.lastPayload = payload
	sess.bytesSent += len(chunk)
	return nil
}
