package notify

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIface = "org.bluez.GattCharacteristic1"

func discard() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestMultiplexer_GetAwaitsDispatch(t *testing.T) {
	mux := New(discard())
	path := dbus.ObjectPath("/org/bluez/hci0/dev_AA/service0001/char0002")
	mux.Start(path, testIface, "Value")

	go mux.Dispatch(path, testIface, map[string]dbus.Variant{
		"Value": dbus.MakeVariant([]byte{0x01, 0x02}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := mux.Get(ctx, path, testIface, "Value")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, v)
}

func TestMultiplexer_StartIsIdempotent(t *testing.T) {
	mux := New(discard())
	path := dbus.ObjectPath("/x")
	mux.Start(path, testIface, "Value")
	mux.Dispatch(path, testIface, map[string]dbus.Variant{"Value": dbus.MakeVariant([]byte{0x01})})
	mux.Start(path, testIface, "Value")

	assert.Equal(t, 1, mux.Size(path, testIface, "Value"))
}

func TestMultiplexer_StopDropsAllSinks(t *testing.T) {
	mux := New(discard())
	path := dbus.ObjectPath("/x")
	mux.Start(path, testIface, "Value")
	mux.Stop(path, testIface)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := mux.Get(ctx, path, testIface, "Value")
	assert.Error(t, err)
}

func TestMultiplexer_GetCancelDoesNotDropQueuedValue(t *testing.T) {
	mux := New(discard())
	path := dbus.ObjectPath("/x")
	mux.Start(path, testIface, "Value")

	already, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mux.Get(already, path, testIface, "Value")
	assert.Error(t, err)

	mux.Dispatch(path, testIface, map[string]dbus.Variant{"Value": dbus.MakeVariant([]byte{0x09})})

	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	v, err := mux.Get(ctx, path, testIface, "Value")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09}, v)
}

func TestMultiplexer_FullQueueDropsOldest(t *testing.T) {
	mux := New(discard())
	path := dbus.ObjectPath("/x")
	mux.Start(path, testIface, "Value")

	for i := 0; i < sinkBuffer+5; i++ {
		mux.Dispatch(path, testIface, map[string]dbus.Variant{"Value": dbus.MakeVariant(byte(i))})
	}
	assert.Equal(t, sinkBuffer, mux.Size(path, testIface, "Value"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := mux.Get(ctx, path, testIface, "Value")
	require.NoError(t, err)
	assert.Equal(t, byte(5), v)
}

func TestMultiplexer_UnregisteredPropertyDropped(t *testing.T) {
	mux := New(discard())
	path := dbus.ObjectPath("/x")
	mux.Start(path, testIface, "Value")
	mux.Dispatch(path, testIface, map[string]dbus.Variant{"Other": dbus.MakeVariant(1)})
	assert.Equal(t, 0, mux.Size(path, testIface, "Value"))
}
