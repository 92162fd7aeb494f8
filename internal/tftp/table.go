package tftp

import (
	"time"

	"go.uber.org/multierr"
)

// SessionTable maps a ClientKey to its Session (spec.md §4.4). It is
// read and mutated only by the dispatcher goroutine; nothing here is
// synchronized, matching the single-threaded cooperative model of
// spec.md §5.
type SessionTable struct {
	sessions map[ClientKey]*Session
}

func newSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[ClientKey]*Session)}
}

func (t *SessionTable) get(key ClientKey) (*Session, bool) {
	s, ok := t.sessions[key]
	return s, ok
}

func (t *SessionTable) insert(key ClientKey, s *Session) {
	t.sessions[key] = s
}

// remove evicts the session for key, if any, closing its file. The
// close error, if any, is returned so callers can log or aggregate it;
// removal itself is unconditional.
func (t *SessionTable) remove(key ClientKey) error {
	s, ok := t.sessions[key]
	if !ok {
		return nil
	}
	delete(t.sessions, key)
	return s.close()
}

func (t *SessionTable) len() int {
	return len(t.sessions)
}

// sweep evicts every session whose last activity is at least timeout
// old, invoking onExpire(key) before each removal (spec.md §4.4, §4.5).
// onExpire is expected to notify the client; the session is always
// removed once onExpire returns, regardless of its result. timeout is
// the caller's configured ClientTimeout, not a package-level constant,
// so it can be overridden per Server (see cmd/tftpd's --client-timeout
// flag). If onExpire returns a non-nil error, sweep stops and returns
// it immediately without visiting the remaining expired sessions —
// grounded on original_source/ (JonSteinn/TFTP-server's tftpd.c):
// timed_out()'s send_error() call aborts the whole process via
// exit_error() on a failed sendto(), so the hash-table sweep there
// never reaches the rest of that pass's expired clients either.
func (t *SessionTable) sweep(now time.Time, timeout time.Duration, onExpire func(ClientKey) error) error {
	var expired []ClientKey
	for key, s := range t.sessions {
		if now.Sub(s.lastAction) >= timeout {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		err := onExpire(key)
		t.remove(key)
		if err != nil {
			return err
		}
	}
	return nil
}

// closeAll releases every open session file, aggregating every close
// failure rather than stopping at the first one (spec.md §5: shutdown
// must close every file the table owns).
func (t *SessionTable) closeAll() error {
	var errs error
	for key, s := range t.sessions {
		if err := s.close(); err != nil {
			errs = multierr.Append(errs, err)
		}
		delete(t.sessions, key)
	}
	return errs
}
