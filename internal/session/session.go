// Package session implements C6: the connection session that gates
// every device operation behind an active flag and a per-MAC connected
// state, grounded on session.py's Session/ContextVar pair — rendered
// here as one mutex-guarded struct and per-MAC gate channels instead of
// asyncio.Event, since Go has no implicit event loop to hang a
// ContextVar off of.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/wrobell/btzen/internal/bus"
	"github.com/wrobell/btzen/internal/errs"
)

// ErrConnectionCancel and ErrSessionStopped are the two cancellation
// causes spec.md §5/§9 names: a typed cause ("enum CancelCause{...}" in
// the design notes) carried on a device context via context.Cause
// instead of a string-tagged reason. CancelDeviceTasks cancels with
// ErrConnectionCancel; Stop cancels with ErrSessionStopped.
var (
	ErrConnectionCancel = errors.New("connection error")
	ErrSessionStopped   = errors.New("BTZen session stopped")
)

// Session is BTZen's connection session: one per connect() call, shared
// by every device it manages.
type Session struct {
	Bus *bus.Bus

	mu     sync.Mutex
	active bool

	connected    map[string]chan struct{}
	deviceCancel map[string]map[uint64]context.CancelCauseFunc
	nextCancelID uint64

	done     chan struct{}
	doneOnce sync.Once
}

// New creates an inactive session bound to b. Start activates it.
func New(b *bus.Bus) *Session {
	return &Session{
		Bus:          b,
		connected:    make(map[string]chan struct{}),
		deviceCancel: make(map[string]map[uint64]context.CancelCauseFunc),
		done:         make(chan struct{}),
	}
}

// Start marks the session active, allowing WaitConnected and
// WithDeviceContext to be used.
func (s *Session) Start() {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
}

// IsActive reports whether the session is currently running.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop deactivates the session and cancels every outstanding device
// context with ErrSessionStopped, mirroring Session.stop's "cancel
// everything" contract.
func (s *Session) Stop() {
	s.mu.Lock()
	s.active = false
	var cancels []context.CancelCauseFunc
	for _, cs := range s.deviceCancel {
		for _, cancel := range cs {
			cancels = append(cancels, cancel)
		}
	}
	s.deviceCancel = make(map[string]map[uint64]context.CancelCauseFunc)
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel(ErrSessionStopped)
	}
	s.doneOnce.Do(func() { close(s.done) })
}

// Done returns a channel closed once the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) ensureGate(mac string) chan struct{} {
	ch, ok := s.connected[mac]
	if !ok {
		ch = make(chan struct{})
		s.connected[mac] = ch
	}
	return ch
}

// SetConnected marks mac connected, releasing any WaitConnected callers
// blocked on it.
func (s *Session) SetConnected(mac string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.ensureGate(mac)
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// SetDisconnected arms a fresh, unclosed gate for mac so the next
// WaitConnected call blocks again until reconnection.
func (s *Session) SetDisconnected(mac string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected[mac] = make(chan struct{})
}

// Connected reports whether mac is connected right now, without
// blocking.
func (s *Session) Connected(mac string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.connected[mac]
	if !ok {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// WaitConnected blocks until mac becomes connected, the session stops,
// or ctx is cancelled — the `connected()` async context manager of
// spec.md §4.6, rendered as a plain blocking call.
func (s *Session) WaitConnected(ctx context.Context, mac string) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return errs.New(errs.Call, "session is not active")
	}
	ch := s.ensureGate(mac)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-s.done:
		return errs.New(errs.Connection, "session stopped while waiting for %s to connect", mac)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithDeviceContext derives a cancellable context from parent and
// registers its cancel cause func under mac, so CancelDeviceTasks(mac)
// can tear down every outstanding call for that device with a typed
// cause — create_future in spec.md §4.6, "removed when the task
// completes or is cancelled" (spec.md §3). The returned CancelFunc is
// for the caller's own normal-completion defer cancel(): it both
// cancels with no cause (ctx.Err() reports context.Canceled as usual,
// TranslateCancel is what distinguishes a normal cancel from a
// disconnect or a stop) and prunes this entry from mac's registered set
// so a long-lived device's repeated Read/Write calls don't accumulate
// one dead entry per call.
func (s *Session) WithDeviceContext(parent context.Context, mac string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	s.mu.Lock()
	id := s.nextCancelID
	s.nextCancelID++
	cs, ok := s.deviceCancel[mac]
	if !ok {
		cs = make(map[uint64]context.CancelCauseFunc)
		s.deviceCancel[mac] = cs
	}
	cs[id] = cancel
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if cs, ok := s.deviceCancel[mac]; ok {
			delete(cs, id)
			if len(cs) == 0 {
				delete(s.deviceCancel, mac)
			}
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

// CancelDeviceTasks cancels and forgets every context registered for
// mac with ErrConnectionCancel — called the moment a device
// disconnects, so in-flight reads fail fast instead of hanging on a
// dead characteristic.
func (s *Session) CancelDeviceTasks(mac string) {
	s.mu.Lock()
	cancels := s.deviceCancel[mac]
	delete(s.deviceCancel, mac)
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel(ErrConnectionCancel)
	}
}

// TranslateCancel implements spec.md §7's dispatcher-boundary
// cancellation policy: if err is ctx's cancellation and ctx was
// cancelled with ErrConnectionCancel, it becomes a user-visible
// errs.Connection; a cancellation carrying ErrSessionStopped (or any
// other cause, or no cancellation at all) is returned unchanged.
func (s *Session) TranslateCancel(ctx context.Context, err error) error {
	if err == nil || !errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(context.Cause(ctx), ErrConnectionCancel) {
		return errs.Wrap(errs.Connection, err, "device disconnected")
	}
	return err
}
