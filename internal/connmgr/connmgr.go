// Package connmgr implements C7: the per-MAC connection state machine
// (remove stale connection -> connect -> trust -> wait for services
// resolved -> enable/disable), grounded on cm.py's manage_connection,
// create_connection and resolve_services functions, and on the
// reconnect-loop idiom of the FighterLink scanner (ble/scanner.go) —
// a goroutine per managed address instead of one asyncio task.
package connmgr

import (
	"context"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/wrobell/btzen/device"
	"github.com/wrobell/btzen/internal/metrics"
	"github.com/wrobell/btzen/internal/session"
)

const (
	device1Interface = "org.bluez.Device1"

	connectionTimeout = 10 * time.Second
	retryDelay        = time.Second

	// enableTimeout bounds a single device's enable() call (spec.md §4.7:
	// "a per-device timeout (default 30s)"). A device that times out
	// fails this enable pass without aborting the session: restartDevices
	// disables everything and retries on the next ServicesResolved loop.
	enableTimeout = 30 * time.Second
)

// EnableFunc and DisableFunc are the C5 generic dispatcher's enable and
// disable entry points, injected so connmgr never imports the root
// package (which imports connmgr).
type EnableFunc func(ctx context.Context, d device.Descriptor) error
type DisableFunc func(d device.Descriptor) error

// busClient is the slice of internal/bus.Bus the state machine calls,
// narrowed to an interface so tests can drive manageConnection and its
// helpers against a fake bus instead of only testing pure helpers like
// addressTypeFor.
type busClient interface {
	AdapterPath() dbus.ObjectPath
	RemoveDevice(mac string) error
	ConnectDevice(ctx context.Context, mac, addressType string, timeout time.Duration) error
	SetTrusted(mac string) error
	Disconnect(mac string) error
	DevPropertyStart(mac, iface, name string)
	DevPropertyStop(mac, iface string)
	DevPropertyGet(ctx context.Context, mac, iface, name string) (interface{}, error)
}

// Manager runs the connection state machine for every MAC in a
// connect() call.
type Manager struct {
	bus     busClient
	session *session.Session
	log     logrus.FieldLogger
	enable  EnableFunc
	disable DisableFunc
}

func New(b busClient, s *session.Session, log logrus.FieldLogger, enable EnableFunc, disable DisableFunc) *Manager {
	return &Manager{bus: b, session: s, log: log, enable: enable, disable: disable}
}

// Manage groups devices by MAC (by_mac in cm.py) and starts one
// reconnect goroutine per MAC. It returns immediately: the goroutines
// run for the life of the session, exiting when ctx is cancelled or the
// session stops.
func (m *Manager) Manage(ctx context.Context, devices []device.Descriptor) {
	byMAC := make(map[string][]device.Descriptor)
	for _, d := range devices {
		byMAC[d.MAC] = append(byMAC[d.MAC], d)
	}
	for mac, devs := range byMAC {
		go m.manageConnection(ctx, mac, devs)
	}
}

// manageConnection is manage_connection: connect (retrying until
// successful or the session stops), then restart devices on every
// ServicesResolved transition until the device or session goes away.
func (m *Manager) manageConnection(ctx context.Context, mac string, devs []device.Descriptor) {
	addressType := addressTypeFor(devs)

	// Session stop must also wake a goroutine blocked on ServicesResolved.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.session.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	m.bus.DevPropertyStart(mac, device1Interface, "ServicesResolved")
	defer m.bus.DevPropertyStop(mac, device1Interface)

	created := false
	for !created && m.session.IsActive() {
		m.removeConnection(mac)
		created = m.createConnection(ctx, mac, addressType)
		if !created {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
		}
	}
	if !created {
		return
	}

	defer func() {
		if err := m.bus.Disconnect(mac); err != nil {
			m.log.WithError(err).Debugf("connmgr: device %s failed to disconnect", mac)
		}
		m.removeConnection(mac)
	}()

	m.restartDevices(ctx, mac, devs)
}

func (m *Manager) removeConnection(mac string) {
	if err := m.bus.RemoveDevice(mac); err != nil {
		m.log.Debugf("connmgr: remove device %s: %v", mac, err)
	}
}

// createConnection connects to mac, treating "Already Exists" as
// success (BlueZ's answer when a connection from a previous attempt is
// still live) and setting the device trusted once connected.
func (m *Manager) createConnection(ctx context.Context, mac string, addressType device.AddressType) bool {
	m.log.Infof("connmgr: connecting device %s via %s, address type %s", mac, m.bus.AdapterPath(), addressType)
	metrics.IncReconnectAttempt(mac)

	err := m.bus.ConnectDevice(ctx, mac, addressType.String(), connectionTimeout)
	created := false
	switch {
	case err == nil:
		created = true
	case m.session.IsActive() && strings.Contains(err.Error(), "Already Exists"):
		created = true
	case m.session.IsActive():
		metrics.IncConnectFailure(mac)
		m.log.Infof("connmgr: connection for %s failed: %v, retrying in %s", mac, err, retryDelay)
	}

	if created {
		if err := m.bus.SetTrusted(mac); err != nil {
			m.log.WithError(err).Warnf("connmgr: set trusted failed for %s", mac)
		}
	}
	return created
}

// restartDevices is resolve_services + the enable/disable dance: for
// every ServicesResolved transition, enable devices when it becomes
// true and disable them otherwise (or if enabling itself failed
// partway through).
func (m *Manager) restartDevices(ctx context.Context, mac string, devs []device.Descriptor) {
	for {
		resolved, err := m.bus.DevPropertyGet(ctx, mac, device1Interface, "ServicesResolved")
		if err != nil {
			return
		}

		enabled := false
		if r, _ := resolved.(bool); r {
			if err := m.enableDevices(ctx, mac, devs); err == nil {
				enabled = true
			} else if !m.session.IsActive() {
				return
			} else {
				metrics.IncEnableFailure(mac)
				metrics.IncEnableRetry(mac)
				m.log.WithError(err).Warnf("connmgr: enabling devices for %s failed", mac)
			}
		}
		if !enabled {
			m.disableDevices(mac, devs)
		}
		if ctx.Err() != nil || !m.session.IsActive() {
			return
		}
	}
}

func (m *Manager) enableDevices(ctx context.Context, mac string, devs []device.Descriptor) error {
	m.log.Infof("connmgr: enabling devices: %s", mac)
	for _, d := range devs {
		if err := m.enableOne(ctx, d); err != nil {
			return err
		}
	}
	m.session.SetConnected(mac)
	metrics.SetConnected(mac, true)
	m.log.Infof("connmgr: enabled services: %s", mac)
	return nil
}

// enableOne bounds a single device's enable() call to enableTimeout, so
// one unresponsive characteristic write cannot stall the whole MAC's
// enable pass indefinitely.
func (m *Manager) enableOne(ctx context.Context, d device.Descriptor) error {
	ctx, cancel := context.WithTimeout(ctx, enableTimeout)
	defer cancel()
	return m.enable(ctx, d)
}

func (m *Manager) disableDevices(mac string, devs []device.Descriptor) {
	m.log.Infof("connmgr: disabling services: %s", mac)

	// Clear the connected flag and cancel pending device calls before
	// touching the devices themselves, so no reader can start a new
	// call against a device that is already on its way out.
	m.session.SetDisconnected(mac)
	metrics.SetConnected(mac, false)
	m.session.CancelDeviceTasks(mac)

	for _, d := range devs {
		if err := m.disable(d); err != nil {
			m.log.WithError(err).Debugf("connmgr: disable failed for %s", d)
		}
	}
	m.log.Infof("connmgr: disabled services: %s", mac)
}

// addressTypeFor favours Random when any device on this MAC requests
// it, matching cm.py's "has_random" rule.
func addressTypeFor(devs []device.Descriptor) device.AddressType {
	for _, d := range devs {
		if d.AddressType == device.Random {
			return device.Random
		}
	}
	return device.Public
}
