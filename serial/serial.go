// Package serial implements C9: a credit-gated byte-stream transport over
// four GATT characteristics (RX/TX data, RX/TX credit grants), grounded on
// the original driver's Stollmann/TIO protocol implementation
// (original_source/btzen/serial.go's Python counterpart, serial.py).
package serial

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/wrobell/btzen/internal/errs"
	"github.com/wrobell/btzen/internal/metrics"
)

// busClient is the slice of internal/bus.Bus this transport calls —
// narrowed to an interface so tests can drive Transport's real methods
// against a fake bus instead of only asserting on its private fields.
type busClient interface {
	EnsureCharacteristicPath(ctx context.Context, mac, uuid string) (dbus.ObjectPath, error)
	CharacteristicPath(mac, uuid string) (dbus.ObjectPath, error)
	NotifyStart(path dbus.ObjectPath) error
	NotifyStop(path dbus.ObjectPath) error
	WriteValue(path dbus.ObjectPath, data []byte) error
	GattGet(ctx context.Context, path dbus.ObjectPath) ([]byte, error)
	GattSize(path dbus.ObjectPath) int
}

// UUIDs of the four characteristics the Stollmann/TIO serial profile
// exposes, in the vendor range spec.md §6 reserves for this transport.
const (
	uuidRXUart   = "00000001-0000-1000-8000-008025000000"
	uuidTXUart   = "00000002-0000-1000-8000-008025000000"
	uuidRXCredit = "00000003-0000-1000-8000-008025000000"
	uuidTXCredit = "00000004-0000-1000-8000-008025000000"
)

// defaultRXCredits is the number of credits granted to the peer on
// enable and whenever the local grant runs out (serial.py's default `n`
// for _add_rx_credits).
const defaultRXCredits = 0x20

// maxWriteSize is the largest single write the transport accepts in one
// call — a fragment boundary, not a buffering limit.
const maxWriteSize = 20

// Transport is the per-device credit-gated serial channel. One Transport
// serves one MAC; callers share it across goroutines through the mutex.
type Transport struct {
	bus busClient
	mac string

	mu        sync.Mutex
	buffer    []byte
	rxCredits int
}

// New wraps a bus façade and a device MAC in a serial Transport. Devices
// carrying the serial service type are constructed with device.Serial;
// this Transport is what root Session.Read/Write dispatch to for them.
func New(b busClient, mac string) *Transport {
	return &Transport{bus: b, mac: mac}
}

// Enable resets buffering state, starts notifications on the TX data and
// TX credit characteristics, grants the peer its initial RX credits, and
// awaits its first TX credit — mirroring serial.py's `_enable_serial`.
func (t *Transport) Enable(ctx context.Context) error {
	t.mu.Lock()
	t.buffer = nil
	t.rxCredits = 0
	t.mu.Unlock()

	txCreditPath, err := t.bus.EnsureCharacteristicPath(ctx, t.mac, uuidTXCredit)
	if err != nil {
		return err
	}
	txUartPath, err := t.bus.EnsureCharacteristicPath(ctx, t.mac, uuidTXUart)
	if err != nil {
		return err
	}
	if err := t.bus.NotifyStart(txCreditPath); err != nil {
		return err
	}
	if err := t.bus.NotifyStart(txUartPath); err != nil {
		t.bus.NotifyStop(txCreditPath)
		return err
	}

	if err := t.addRXCredits(ctx, defaultRXCredits); err != nil {
		return err
	}
	return t.awaitTXCredit(ctx)
}

// Disable stops notifications on the TX credit and TX data
// characteristics, best-effort.
func (t *Transport) Disable() error {
	var firstErr error
	for _, uuid := range []string{uuidTXCredit, uuidTXUart} {
		path, err := t.bus.CharacteristicPath(t.mac, uuid)
		if err != nil {
			continue
		}
		if err := t.bus.NotifyStop(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Write sends data to the peer over RX_UART, granting RX credits and
// awaiting a TX credit slot first if needed. len(data) must be at most
// 20 bytes: the Bluetooth Smart ATT MTU this protocol assumes.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	if len(data) > maxWriteSize {
		return errs.New(errs.Configuration, "serial: write of %d bytes exceeds %d-byte fragment limit", len(data), maxWriteSize)
	}

	t.mu.Lock()
	needCredits := t.rxCredits < 1
	t.mu.Unlock()
	if needCredits {
		if err := t.addRXCredits(ctx, defaultRXCredits); err != nil {
			return err
		}
	}

	creditPath, err := t.bus.CharacteristicPath(t.mac, uuidTXCredit)
	if err == nil && t.bus.GattSize(creditPath) == 0 {
		metrics.IncSerialCreditStarvation(t.mac)
		if err := t.awaitTXCredit(ctx); err != nil {
			return err
		}
	}

	rxPath, err := t.bus.EnsureCharacteristicPath(ctx, t.mac, uuidRXUart)
	if err != nil {
		return err
	}
	if err := t.bus.WriteValue(rxPath, data); err != nil {
		return errs.Wrap(errs.DataWrite, err, "serial write to %s", t.mac)
	}
	return nil
}

// Read collects n bytes, blocking on incoming TX_UART fragments and
// granting fresh RX credits as the local grant runs low. Surplus bytes
// beyond n are retained in the buffer for the next call.
func (t *Transport) Read(ctx context.Context, n int) ([]byte, error) {
	t.mu.Lock()
	data := append([]byte(nil), t.buffer...)
	t.mu.Unlock()

	txPath, err := t.bus.EnsureCharacteristicPath(ctx, t.mac, uuidTXUart)
	if err != nil {
		return nil, err
	}

	for len(data) < n {
		t.mu.Lock()
		needCredits := t.rxCredits < 1
		t.mu.Unlock()
		if needCredits {
			if err := t.addRXCredits(ctx, creditsFor(n-len(data))); err != nil {
				return nil, err
			}
		}

		fragment, err := t.bus.GattGet(ctx, txPath)
		if err != nil {
			return nil, errs.Wrap(errs.DataRead, err, "serial read from %s", t.mac)
		}
		data = append(data, fragment...)

		t.mu.Lock()
		t.rxCredits--
		t.mu.Unlock()
	}

	t.mu.Lock()
	t.buffer = append([]byte(nil), data[n:]...)
	t.mu.Unlock()
	return data[:n], nil
}

func (t *Transport) addRXCredits(ctx context.Context, n int) error {
	path, err := t.bus.EnsureCharacteristicPath(ctx, t.mac, uuidRXCredit)
	if err != nil {
		return err
	}
	if err := t.bus.WriteValue(path, []byte{byte(n)}); err != nil {
		return errs.Wrap(errs.DataWrite, err, "grant rx credits to %s", t.mac)
	}
	t.mu.Lock()
	t.rxCredits += n
	t.mu.Unlock()
	return nil
}

func (t *Transport) awaitTXCredit(ctx context.Context) error {
	path, err := t.bus.EnsureCharacteristicPath(ctx, t.mac, uuidTXCredit)
	if err != nil {
		return err
	}
	if _, err := t.bus.GattGet(ctx, path); err != nil {
		return errs.Wrap(errs.DataRead, err, "await tx credit from %s", t.mac)
	}
	return nil
}

// creditsFor returns the number of RX credits required to receive n more
// bytes, each credit covering one <=20-byte fragment, capped at 255 (the
// credit grant is a single byte).
func creditsFor(n int) int {
	return int(math.Min(255, math.Ceil(float64(n)/20)))
}

func (t *Transport) String() string {
	return fmt.Sprintf("serial@%s", t.mac)
}
