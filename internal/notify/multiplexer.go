// Package notify implements the per-(path, interface) notification
// multiplexer (C2): one underlying PropertiesChanged subscription fans out
// to one awaitable sink per registered property name.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

// sinkBuffer bounds the per-property queue. A full sink drops its oldest
// value to admit the newest one rather than blocking the bus event loop.
const sinkBuffer = 32

type subKey struct {
	Path      dbus.ObjectPath
	Interface string
}

type subscription struct {
	sinks map[string]chan interface{}
}

// Multiplexer owns every (path, interface, property) sink for one Bus.
type Multiplexer struct {
	mu   sync.Mutex
	subs map[subKey]*subscription
	log  logrus.FieldLogger
}

// New creates an empty multiplexer.
func New(log logrus.FieldLogger) *Multiplexer {
	return &Multiplexer{subs: make(map[subKey]*subscription), log: log}
}

// Start registers interest in a property under (path, interface). It is
// idempotent per name: starting an already-started sink is a no-op that
// preserves whatever is already queued.
func (m *Multiplexer) Start(path dbus.ObjectPath, iface, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey{path, iface}
	sub, ok := m.subs[key]
	if !ok {
		sub = &subscription{sinks: make(map[string]chan interface{})}
		m.subs[key] = sub
	}
	if _, ok := sub.sinks[name]; !ok {
		sub.sinks[name] = make(chan interface{}, sinkBuffer)
	}
}

// Stop removes the subscription for (path, interface) and every sink it
// carries.
func (m *Multiplexer) Stop(path dbus.ObjectPath, iface string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, subKey{path, iface})
}

// Size reports how many values are queued for (path, interface, name).
func (m *Multiplexer) Size(path dbus.ObjectPath, iface, name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[subKey{path, iface}]
	if !ok {
		return 0
	}
	ch, ok := sub.sinks[name]
	if !ok {
		return 0
	}
	return len(ch)
}

// Get awaits the next value for (path, interface, name). Cancelling ctx
// releases the wait without consuming a queued value, so a retried Get
// still observes it.
func (m *Multiplexer) Get(ctx context.Context, path dbus.ObjectPath, iface, name string) (interface{}, error) {
	m.mu.Lock()
	sub, ok := m.subs[subKey{path, iface}]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("notify: no subscription for %s %s", path, iface)
	}
	ch, ok := sub.sinks[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("notify: %s not registered on %s %s", name, path, iface)
	}
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatch delivers one PropertiesChanged signal body to every sink
// registered under (path, interface). Properties with no sink are
// dropped silently — nobody is awaiting them.
func (m *Multiplexer) Dispatch(path dbus.ObjectPath, iface string, changed map[string]dbus.Variant) {
	m.mu.Lock()
	sub, ok := m.subs[subKey{path, iface}]
	m.mu.Unlock()
	if !ok {
		return
	}
	for name, variant := range changed {
		ch, ok := sub.sinks[name]
		if !ok {
			continue
		}
		push(ch, variant.Value())
	}
}

func push(ch chan interface{}, v interface{}) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
