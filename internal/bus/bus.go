// Package bus is the C1 façade: one system-bus connection per Session,
// typed path resolution, property reads, and GATT notification start/stop,
// wrapping github.com/godbus/dbus/v5 directly (raw ObjectManager walk, raw
// PropertiesChanged matching) plus github.com/muka/go-bluetooth's generated
// GattCharacteristic1 proxy for the read/write/notify calls that proxy
// already covers cleanly.
package bus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/bluez/profile/gatt"
	"github.com/sirupsen/logrus"

	"github.com/wrobell/btzen/internal/errs"
	"github.com/wrobell/btzen/internal/notify"
)

const (
	busName = "org.bluez"

	// charRetries/charRetryDelay bound EnsureCharacteristicPath's poll,
	// per spec.md §5 ("GATT characteristic path discovery retries 5
	// times with a 1s delay").
	charRetries    = 5
	charRetryDelay = time.Second

	gattCharInterface = "org.bluez.GattCharacteristic1"
	device1Interface  = "org.bluez.Device1"
)

type charKey struct {
	MAC  string
	UUID string
}

// Bus is the C1 façade owned by exactly one Session.
type Bus struct {
	conn  *dbus.Conn
	iface string
	log   logrus.FieldLogger

	mux *notify.Multiplexer

	mu        sync.Mutex
	charPaths map[charKey]dbus.ObjectPath

	sigCh chan *dbus.Signal
	done  chan struct{}
}

func wrapBus(err error, format string, args ...interface{}) error {
	return errs.Wrap(errs.Bus, err, format, args...)
}

// Open connects to the system bus for adapter iface (e.g. "hci0") and
// starts the background reader that drains PropertiesChanged signals into
// the notification multiplexer whenever the bus FD is readable — the
// process_events contract of spec.md §4.1, implemented here as a
// dedicated goroutine rather than a poll-driven reactor, since godbus
// already delivers signals on a channel.
func Open(iface string, log logrus.FieldLogger) (*Bus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, wrapBus(err, "connect system bus")
	}
	b := &Bus{
		conn:      conn,
		iface:     iface,
		log:       log,
		mux:       notify.New(log),
		charPaths: make(map[charKey]dbus.ObjectPath),
		sigCh:     make(chan *dbus.Signal, 64),
		done:      make(chan struct{}),
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		conn.Close()
		return nil, wrapBus(err, "match PropertiesChanged")
	}
	conn.Signal(b.sigCh)
	go b.processEvents()
	return b, nil
}

func (b *Bus) processEvents() {
	for {
		select {
		case sig, ok := <-b.sigCh:
			if !ok {
				return
			}
			b.handleSignal(sig)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) handleSignal(sig *dbus.Signal) {
	if sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" || len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	b.mux.Dispatch(sig.Path, iface, changed)
}

// Close stops the signal reader and closes the bus connection. Any
// outstanding agent registration must be unregistered by the caller first.
func (b *Bus) Close() error {
	close(b.done)
	return b.conn.Close()
}

// AdapterPath returns the object path of the managed adapter.
func (b *Bus) AdapterPath() dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + b.iface)
}

// DevPath returns the object path BlueZ assigns to a device MAC: MAC
// upper-cased, ':' replaced with '_' (spec.md §6).
func (b *Bus) DevPath(mac string) dbus.ObjectPath {
	id := strings.ReplaceAll(strings.ToUpper(mac), ":", "_")
	return dbus.ObjectPath(string(b.AdapterPath()) + "/dev_" + id)
}

func (b *Bus) managedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	obj := b.conn.Object(busName, dbus.ObjectPath("/"))
	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0)
	if call.Err != nil {
		return nil, wrapBus(call.Err, "GetManagedObjects")
	}
	if err := call.Store(&managed); err != nil {
		return nil, wrapBus(err, "decode GetManagedObjects")
	}
	return managed, nil
}

// CharacteristicPath looks up a GATT characteristic by UUID under a
// device's object subtree, caching the result per (mac, uuid) — spec.md
// §4.1's characteristic_path contract.
func (b *Bus) CharacteristicPath(mac, uuid string) (dbus.ObjectPath, error) {
	key := charKey{mac, strings.ToLower(uuid)}
	b.mu.Lock()
	if p, ok := b.charPaths[key]; ok {
		b.mu.Unlock()
		return p, nil
	}
	b.mu.Unlock()

	devPath := b.DevPath(mac)
	managed, err := b.managedObjects()
	if err != nil {
		return "", err
	}
	path, ok := findCharacteristic(managed, devPath, key.UUID)
	if !ok {
		return "", errs.New(errs.NotFound, "characteristic %s not found under %s", uuid, devPath)
	}
	b.mu.Lock()
	b.charPaths[key] = path
	b.mu.Unlock()
	return path, nil
}

// findCharacteristic walks a GetManagedObjects snapshot for the GATT
// characteristic carrying uuid (already lower-cased) anywhere under
// devPath. Pulled out of CharacteristicPath so the matching logic can be
// exercised without a real bus connection.
func findCharacteristic(managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant, devPath dbus.ObjectPath, uuid string) (dbus.ObjectPath, bool) {
	for path, ifaces := range managed {
		if !strings.HasPrefix(string(path), string(devPath)+"/") {
			continue
		}
		char, ok := ifaces[gattCharInterface]
		if !ok {
			continue
		}
		v, ok := char["UUID"]
		if !ok {
			continue
		}
		u, ok := v.Value().(string)
		if !ok || strings.ToLower(u) != uuid {
			continue
		}
		return path, true
	}
	return "", false
}

// EnsureCharacteristicPath polls CharacteristicPath with bounded retries
// (default 5 attempts, 1s apart), failing with NotFound once exhausted.
func (b *Bus) EnsureCharacteristicPath(ctx context.Context, mac, uuid string) (dbus.ObjectPath, error) {
	var lastErr error
	for attempt := 0; attempt < charRetries; attempt++ {
		path, err := b.CharacteristicPath(mac, uuid)
		if err == nil {
			return path, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(charRetryDelay):
		}
	}
	return "", errs.Wrap(errs.NotFound, lastErr, "characteristic %s on %s not found after %d attempts", uuid, mac, charRetries)
}

// Property performs a one-shot typed bus-property read on a device
// interface (e.g. org.bluez.Battery1's Percentage, or Device1's
// ServicesResolved for a fast-path check before subscribing).
func (b *Bus) Property(mac, iface, name string) (dbus.Variant, error) {
	obj := b.conn.Object(busName, b.DevPath(mac))
	var v dbus.Variant
	if err := obj.Call("org.freedesktop.DBus.Properties.Get", 0, iface, name).Store(&v); err != nil {
		return dbus.Variant{}, wrapBus(err, "Get %s.%s on %s", iface, name, mac)
	}
	return v, nil
}

// ReadValue performs a synchronous GATT characteristic read.
func (b *Bus) ReadValue(path dbus.ObjectPath) ([]byte, error) {
	char, err := gatt.NewGattCharacteristic1(path)
	if err != nil {
		return nil, errs.Wrap(errs.DataRead, err, "open characteristic %s", path)
	}
	data, err := char.ReadValue(map[string]interface{}{})
	if err != nil {
		return nil, errs.Wrap(errs.DataRead, err, "ReadValue %s", path)
	}
	return data, nil
}

// WriteValue performs a synchronous GATT characteristic write.
func (b *Bus) WriteValue(path dbus.ObjectPath, data []byte) error {
	char, err := gatt.NewGattCharacteristic1(path)
	if err != nil {
		return errs.Wrap(errs.DataWrite, err, "open characteristic %s", path)
	}
	if err := char.WriteValue(data, map[string]interface{}{}); err != nil {
		return errs.Wrap(errs.DataWrite, err, "WriteValue %s", path)
	}
	return nil
}

// NotifyStart enables GATT notifications on path and registers its
// "Value" sink in the notification multiplexer before asking BlueZ to
// start, so no signal delivered after StartNotify succeeds can be missed.
func (b *Bus) NotifyStart(path dbus.ObjectPath) error {
	char, err := gatt.NewGattCharacteristic1(path)
	if err != nil {
		return errs.Wrap(errs.Bus, err, "open characteristic %s", path)
	}
	b.mux.Start(path, gattCharInterface, "Value")
	if err := char.StartNotify(); err != nil {
		b.mux.Stop(path, gattCharInterface)
		return errs.Wrap(errs.Bus, err, "StartNotify %s", path)
	}
	return nil
}

// NotifyStop disables GATT notifications on path and tears down its sink.
// Best-effort: the sink is removed even if StopNotify itself fails (the
// device may already be gone).
func (b *Bus) NotifyStop(path dbus.ObjectPath) error {
	defer b.mux.Stop(path, gattCharInterface)
	char, err := gatt.NewGattCharacteristic1(path)
	if err != nil {
		return errs.Wrap(errs.Bus, err, "open characteristic %s", path)
	}
	if err := char.StopNotify(); err != nil {
		return errs.Wrap(errs.Bus, err, "StopNotify %s", path)
	}
	return nil
}

// GattGet awaits the next notified value for a characteristic path —
// wraps C2's Get for the gattCharInterface/"Value" pair.
func (b *Bus) GattGet(ctx context.Context, path dbus.ObjectPath) ([]byte, error) {
	v, err := b.mux.Get(ctx, path, gattCharInterface, "Value")
	if err != nil {
		return nil, err
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, errs.New(errs.DataRead, "unexpected Value payload type on %s", path)
	}
	return data, nil
}

// GattSize reports the backlog of notified values awaiting consumption.
func (b *Bus) GattSize(path dbus.ObjectPath) int {
	return b.mux.Size(path, gattCharInterface, "Value")
}

// DevPropertyStart registers interest in a bus property on a device
// object (e.g. ServicesResolved on Device1, Percentage on Battery1).
func (b *Bus) DevPropertyStart(mac, iface, name string) {
	b.mux.Start(b.DevPath(mac), iface, name)
}

// DevPropertyGet awaits the next change of a device bus property.
func (b *Bus) DevPropertyGet(ctx context.Context, mac, iface, name string) (interface{}, error) {
	return b.mux.Get(ctx, b.DevPath(mac), iface, name)
}

// DevPropertyStop removes a device bus property subscription.
func (b *Bus) DevPropertyStop(mac, iface string) {
	b.mux.Stop(b.DevPath(mac), iface)
}

// ConnectDevice calls the adapter's ConnectDevice method with an explicit
// address type, matching BlueZ's org.bluez.Adapter1.ConnectDevice(dict).
// "Already Exists" is the caller's (C7's) responsibility to treat as
// success; this method surfaces the raw bus error.
func (b *Bus) ConnectDevice(ctx context.Context, mac, addressType string, timeout time.Duration) error {
	obj := b.conn.Object(busName, b.AdapterPath())
	props := map[string]interface{}{
		"Address":     mac,
		"AddressType": addressType,
	}
	call := obj.CallWithContext(ctx, "org.bluez.Adapter1.ConnectDevice", 0, props)
	if call.Err != nil {
		return wrapBus(call.Err, "ConnectDevice %s", mac)
	}
	return nil
}

// RemoveDevice calls the adapter's RemoveDevice method.
func (b *Bus) RemoveDevice(mac string) error {
	obj := b.conn.Object(busName, b.AdapterPath())
	call := obj.Call("org.bluez.Adapter1.RemoveDevice", 0, b.DevPath(mac))
	if call.Err != nil {
		return wrapBus(call.Err, "RemoveDevice %s", mac)
	}
	return nil
}

// SetTrusted sets the device's Trusted property so BlueZ auto-accepts
// reconnections without re-pairing.
func (b *Bus) SetTrusted(mac string) error {
	obj := b.conn.Object(busName, b.DevPath(mac))
	call := obj.Call("org.freedesktop.DBus.Properties.Set", 0, device1Interface, "Trusted", dbus.MakeVariant(true))
	if call.Err != nil {
		return wrapBus(call.Err, "SetTrusted %s", mac)
	}
	return nil
}

// Disconnect calls the device's Disconnect method.
func (b *Bus) Disconnect(mac string) error {
	obj := b.conn.Object(busName, b.DevPath(mac))
	call := obj.Call("org.bluez.Device1.Disconnect", 0)
	if call.Err != nil {
		return wrapBus(call.Err, "Disconnect %s", mac)
	}
	return nil
}
