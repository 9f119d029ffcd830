// Package btzen is a library for asynchronous, concurrent access to
// Bluetooth Low Energy devices over BlueZ's D-Bus object model.
//
// A caller builds device descriptors (device.Temperature, device.Button,
// ...), opens a session with Connect, and then calls Read, Write, Enable
// or Disable against those descriptors. Connect manages reconnection,
// service resolution and per-device enable/disable transparently in the
// background: callers only ever see a connected, enabled device or a
// blocked Read/Write call.
package btzen

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wrobell/btzen/device"
	"github.com/wrobell/btzen/internal/bus"
	"github.com/wrobell/btzen/internal/connmgr"
	"github.com/wrobell/btzen/internal/errs"
	isession "github.com/wrobell/btzen/internal/session"
	"github.com/wrobell/btzen/serial"
)

// Session is BTZen's connection scope: one bus connection, one pairing
// agent, and one connection-management goroutine per distinct MAC among
// the devices it was opened with — connect() in the original driver's
// connection manager.
type Session struct {
	bus               *bus.Bus
	session           *isession.Session
	manager           *connmgr.Manager
	unregisterAgent   func() error
	unregisterProfile func() error
	log               logrus.FieldLogger

	serialMu sync.Mutex
	serial   map[string]*serial.Transport
}

// Connect opens a session managing devices on the named adapter (e.g.
// "hci0"). It registers BTZen's headless pairing agent and starts
// reconnection management for every distinct MAC among devices, then
// returns immediately: devices become usable once their connection and
// service resolution complete in the background, which Read/Write
// block for transparently.
func Connect(ctx context.Context, devices []device.Descriptor, iface string, log logrus.FieldLogger) (*Session, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	b, err := bus.Open(iface, log)
	if err != nil {
		return nil, err
	}
	unregister, err := b.RegisterAgent()
	if err != nil {
		b.Close()
		return nil, err
	}

	unregisterProfile, err := b.RegisterApplication(serviceUUIDs(devices))
	if err != nil {
		log.WithError(err).Warn("btzen: GattManager1 profile registration failed, continuing without it")
		unregisterProfile = nil
	}

	s := &Session{
		bus:               b,
		session:           isession.New(b),
		unregisterAgent:   unregister,
		unregisterProfile: unregisterProfile,
		log:               log,
		serial:            make(map[string]*serial.Transport),
	}
	s.manager = connmgr.New(b, s.session, log, s.enableDescriptor, s.disableDescriptor)

	s.session.Start()
	s.manager.Manage(ctx, devices)
	return s, nil
}

// Close stops the session — cancelling every outstanding Read/Write,
// tearing down connection management, unregistering the pairing agent
// and closing the bus connection, in that order.
func (s *Session) Close() error {
	s.session.Stop()

	var err error
	if s.unregisterProfile != nil {
		if uerr := s.unregisterProfile(); uerr != nil {
			s.log.WithError(uerr).Warn("btzen: gatt profile failed to unregister")
			err = uerr
		}
	}
	if s.unregisterAgent != nil {
		if uerr := s.unregisterAgent(); uerr != nil {
			s.log.WithError(uerr).Warn("btzen: agent failed to unregister")
			err = uerr
		}
	}
	if cerr := s.bus.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// serviceUUIDs collects the distinct base service UUIDs among devices,
// for declaring interest via RegisterApplication.
func serviceUUIDs(devices []device.Descriptor) []string {
	seen := make(map[string]bool)
	var uuids []string
	for _, d := range devices {
		u := d.UUID()
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		uuids = append(uuids, u)
	}
	return uuids
}

// IsActive reports whether the session is still running.
func (s *Session) IsActive() bool { return s.session.IsActive() }

// Connected reports whether mac is currently connected and enabled.
func (s *Session) Connected(mac string) bool { return s.session.Connected(mac) }

// WaitConnected blocks until mac is connected, ctx is cancelled, or the
// session stops.
func (s *Session) WaitConnected(ctx context.Context, mac string) error {
	return s.session.WaitConnected(ctx, mac)
}

func (s *Session) serialFor(mac string) *serial.Transport {
	s.serialMu.Lock()
	defer s.serialMu.Unlock()
	t, ok := s.serial[mac]
	if !ok {
		t = serial.New(s.bus, mac)
		s.serial[mac] = t
	}
	return t
}

// SetInterval is a convenience wrapper over device.Descriptor.WithInterval.
func SetInterval(d device.Descriptor, seconds float64) device.Descriptor {
	return d.WithInterval(seconds)
}

// SetTrigger is a convenience wrapper over device.Descriptor.WithTrigger.
func SetTrigger(d device.Descriptor, condition device.Condition, operand float64) device.Descriptor {
	return d.WithTrigger(device.Trigger{Condition: condition, Operand: operand})
}

// SetAddressType is a convenience wrapper over
// device.Descriptor.WithAddressType.
func SetAddressType(d device.Descriptor, t device.AddressType) device.Descriptor {
	return d.WithAddressType(t)
}

var errUnsupportedService = func(d device.Descriptor) error {
	return errs.New(errs.Configuration, "%s: unsupported service type", d)
}
