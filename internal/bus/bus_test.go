package bus

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestBus_DevPath(t *testing.T) {
	b := &Bus{iface: "hci0"}
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"), b.DevPath("aa:bb:cc:dd:ee:ff"))
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"), b.DevPath("AA:BB:CC:DD:EE:FF"))
}

func TestBus_AdapterPath(t *testing.T) {
	b := &Bus{iface: "hci1"}
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci1"), b.AdapterPath())
}

func TestFindCharacteristic(t *testing.T) {
	devPath := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	managed := map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		devPath + "/service0001/char0002": {
			gattCharInterface: {"UUID": dbus.MakeVariant("0000aa01-0451-4000-b000-000000000000")},
		},
		devPath + "/service0001/char0003": {
			gattCharInterface: {"UUID": dbus.MakeVariant("0000aa02-0451-4000-b000-000000000000")},
		},
		"/org/bluez/hci0/dev_11_22_33_44_55_66/service0001/char0004": {
			gattCharInterface: {"UUID": dbus.MakeVariant("0000aa01-0451-4000-b000-000000000000")},
		},
	}

	path, ok := findCharacteristic(managed, devPath, "0000aa01-0451-4000-b000-000000000000")
	assert.True(t, ok)
	assert.Equal(t, devPath+"/service0001/char0002", path)

	_, ok = findCharacteristic(managed, devPath, "0000aa99-0451-4000-b000-000000000000")
	assert.False(t, ok)
}

func TestBus_CharacteristicPath_Cached(t *testing.T) {
	b := &Bus{
		iface:     "hci0",
		charPaths: map[charKey]dbus.ObjectPath{{MAC: "AA:BB:CC:DD:EE:FF", UUID: "0000aa01-0451-4000-b000-000000000000"}: "/cached/path"},
	}
	path, err := b.CharacteristicPath("AA:BB:CC:DD:EE:FF", "0000AA01-0451-4000-B000-000000000000")
	assert.NoError(t, err)
	assert.Equal(t, dbus.ObjectPath("/cached/path"), path)
}
