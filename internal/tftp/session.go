package tftp

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/rs/xid"
)

// MaxResends is the cap on consecutive retransmissions before a
// session is evicted with an Undefined error (spec.md §3, §7).
const MaxResends = 5

// ClientTimeout is how long a session may sit idle before the sweep
// evicts it (spec.md §3, §4.4).
const ClientTimeout = 5 * time.Second

// InactiveTimer is the dispatcher's blocking-wait timeout between
// socket reads; the sweep only runs when this wait elapses with no
// datagram (spec.md §4.5, §5).
const InactiveTimer = 5 * time.Second

// ClientKey identifies a client's transport endpoint by IPv4 address
// and UDP port (spec.md §3). It is a plain comparable struct so it can
// key a Go map directly; no custom hash is needed.
type ClientKey struct {
	IP   [4]byte
	Port int
}

// KeyFromUDPAddr derives a ClientKey from a *net.UDPAddr. Only the
// IPv4 4-byte form is kept: IPv6 is a non-goal (spec.md §1).
func KeyFromUDPAddr(addr *net.UDPAddr) ClientKey {
	var k ClientKey
	if ip4 := addr.IP.To4(); ip4 != nil {
		copy(k.IP[:], ip4)
	}
	k.Port = addr.Port
	return k
}

func (k ClientKey) udpAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(k.IP[0], k.IP[1], k.IP[2], k.IP[3]), Port: k.Port}
}

// Session is the per-client server-side state for an in-flight read
// transfer (spec.md §3).
type Session struct {
	file        io.ReadCloser
	filename    string        // for lifecycle logging only; never re-parsed from this
	netascii    *bufio.Reader // non-nil only in ModeNetascii
	mode        Mode
	blockNumber uint16
	lastPayload []byte
	resends     int
	carry       *byte
	started     time.Time
	lastAction  time.Time

	correlationID xid.ID // log correlation only; never touches the wire
	bytesSent     int
}

func newSession(file io.ReadCloser, mode Mode, now time.Time) *Session {
	s := &Session{
		file:          file,
		mode:          mode,
		blockNumber:   1,
		started:       now,
		lastAction:    now,
		correlationID: xid.New(),
	}
	if mode == ModeNetascii {
		s.netascii = bufio.NewReader(file)
	}
	return s
}

// final reports whether the most recently sent DATA packet was the
// short, terminal packet of the transfer (spec.md §3 invariant).
func (s *Session) final() bool {
	return len(s.lastPayload) < ChunkSize+4
}

// nextChunk reads the next block of data to send, through the
// netascii translator when in ModeNetascii, or directly otherwise.
func (s *Session) nextChunk() ([]byte, error) {
	if s.mode == ModeNetascii {
		chunk, carry, err := nextNetasciiChunk(s.netascii, s.carry)
		if err != nil {
			return nil, err
		}
		s.carry = carry
		return chunk, nil
	}

	buf := make([]byte, ChunkSize)
	n, err := io.ReadFull(s.file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func (s *Session) close() error {
	return s.file.Close()
}

// advanceBlock moves the block number forward, wrapping 65535 -> 1 as
// specified in spec.md §3 (0 is never used).
func advanceBlock(b uint16) uint16 {
	if b == 65535 {
		return 1
	}
	return b + 1
}
