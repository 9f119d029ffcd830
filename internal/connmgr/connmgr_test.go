package connmgr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/wrobell/btzen/device"
	"github.com/wrobell/btzen/internal/session"
)

func TestAddressTypeFor_FavoursRandom(t *testing.T) {
	pub, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)
	rnd, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.Thingy52)
	assert.NoError(t, err)

	assert.Equal(t, device.Public, addressTypeFor([]device.Descriptor{pub}))
	assert.Equal(t, device.Random, addressTypeFor([]device.Descriptor{pub, rnd}))
}

func TestAddressTypeFor_DefaultsPublic(t *testing.T) {
	assert.Equal(t, device.Public, addressTypeFor(nil))
}

// errStopLoop is the sentinel fakeConnBus.DevPropertyGet returns once its
// scripted ServicesResolved sequence is exhausted, ending restartDevices'
// loop so manageConnection returns instead of running forever.
var errStopLoop = errors.New("connmgr test: stop loop")

// fakeConnBus is a busClient double whose ConnectDevice and
// DevPropertyGet ("ServicesResolved") behaviour is scripted per test, so
// the real manageConnection/createConnection/restartDevices state
// machine can be driven end to end instead of only its pure helpers.
type fakeConnBus struct {
	mu sync.Mutex

	connectErrs  []error
	connectCalls int

	resolvedSeq []bool
	resolvedIdx int
	resolvedErr error

	removeCalls     int
	trustedCalls    int
	disconnectCalls int
}

func (f *fakeConnBus) AdapterPath() dbus.ObjectPath { return dbus.ObjectPath("/org/bluez/hci0") }

func (f *fakeConnBus) RemoveDevice(mac string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	return nil
}

func (f *fakeConnBus) ConnectDevice(ctx context.Context, mac, addressType string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.connectCalls
	f.connectCalls++
	if idx < len(f.connectErrs) {
		return f.connectErrs[idx]
	}
	return nil
}

func (f *fakeConnBus) SetTrusted(mac string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trustedCalls++
	return nil
}

func (f *fakeConnBus) Disconnect(mac string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
	return nil
}

func (f *fakeConnBus) DevPropertyStart(mac, iface, name string) {}
func (f *fakeConnBus) DevPropertyStop(mac, iface string)        {}

func (f *fakeConnBus) DevPropertyGet(ctx context.Context, mac, iface, name string) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolvedIdx < len(f.resolvedSeq) {
		v := f.resolvedSeq[f.resolvedIdx]
		f.resolvedIdx++
		return v, nil
	}
	if f.resolvedErr != nil {
		return nil, f.resolvedErr
	}
	return nil, errStopLoop
}

func newEnableDisableCounters() (EnableFunc, DisableFunc, *int32, *int32) {
	var enableCalls, disableCalls int32
	enable := func(ctx context.Context, d device.Descriptor) error {
		atomic.AddInt32(&enableCalls, 1)
		return nil
	}
	disable := func(d device.Descriptor) error {
		atomic.AddInt32(&disableCalls, 1)
		return nil
	}
	return enable, disable, &enableCalls, &disableCalls
}

// TestManageConnection_ReconnectHappyPath is spec.md §8 scenario 5: given
// a bus that answers ConnectDevice OK and flips ServicesResolved true,
// the reconnect task must remove, connect, set-trusted, observe
// resolved=true, call enable exactly once per device, and set
// connected[mac].
func TestManageConnection_ReconnectHappyPath(t *testing.T) {
	s := session.New(nil)
	s.Start()

	fb := &fakeConnBus{resolvedSeq: []bool{true}}
	enable, disable, enableCalls, disableCalls := newEnableDisableCounters()
	m := New(fb, s, logrus.New(), enable, disable)

	d, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)

	m.manageConnection(context.Background(), d.MAC, []device.Descriptor{d})

	assert.Equal(t, 1, fb.connectCalls, "connect must succeed on the first attempt")
	assert.Equal(t, 1, fb.trustedCalls)
	assert.Equal(t, int32(1), atomic.LoadInt32(enableCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(disableCalls))
	assert.True(t, s.Connected(d.MAC))
	// removeConnection runs once before connecting and once more during
	// manageConnection's teardown defer.
	assert.Equal(t, 2, fb.removeCalls)
	assert.Equal(t, 1, fb.disconnectCalls)
}

// TestManageConnection_AlreadyExistsIsTreatedAsSuccess is spec.md §8
// scenario 6: ConnectDevice raises "Already Exists" on the first
// attempt; the task proceeds as if success (still sets trusted), with
// no backoff sleep inserted before the next step.
func TestManageConnection_AlreadyExistsIsTreatedAsSuccess(t *testing.T) {
	s := session.New(nil)
	s.Start()

	fb := &fakeConnBus{
		connectErrs: []error{errors.New("org.bluez.Error.Failed: Already Exists")},
		resolvedSeq: []bool{true},
	}
	enable, disable, enableCalls, _ := newEnableDisableCounters()
	m := New(fb, s, logrus.New(), enable, disable)

	d, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)

	start := time.Now()
	m.manageConnection(context.Background(), d.MAC, []device.Descriptor{d})
	elapsed := time.Since(start)

	assert.Equal(t, 1, fb.connectCalls, "Already Exists must not trigger a retry attempt")
	assert.Equal(t, 1, fb.trustedCalls, "device must still be set trusted on Already Exists")
	assert.Equal(t, int32(1), atomic.LoadInt32(enableCalls))
	assert.Less(t, elapsed, retryDelay, "Already Exists must not incur the retry backoff sleep")
}

// TestRestartDevices_DisablesOnUnresolvedTransition exercises the
// ENABLE_ALL -> DISABLE_ALL half of the state machine: once
// ServicesResolved flips back to false, disable runs and
// connected[mac] is cleared.
func TestRestartDevices_DisablesOnUnresolvedTransition(t *testing.T) {
	s := session.New(nil)
	s.Start()

	fb := &fakeConnBus{resolvedSeq: []bool{true, false}}
	enable, disable, enableCalls, disableCalls := newEnableDisableCounters()
	m := New(fb, s, logrus.New(), enable, disable)

	d, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)

	m.restartDevices(context.Background(), d.MAC, []device.Descriptor{d})

	assert.Equal(t, int32(1), atomic.LoadInt32(enableCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(disableCalls))
	assert.False(t, s.Connected(d.MAC))
}
