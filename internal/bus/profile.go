package bus

import (
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

const (
	gattManagerInterface   = "org.bluez.GattManager1"
	gattProfileInterface   = "org.bluez.GattProfile1"
	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"
)

// gattProfile exports the single org.bluez.GattProfile1 object BlueZ
// expects to find at RegisterApplication's root: a UUIDs property and
// nothing else, declaring which service UUIDs this session cares about.
type gattProfile struct {
	uuids []string
}

func (p *gattProfile) Release() *dbus.Error { return nil }

// profileApp is the ObjectManager root RegisterApplication is pointed
// at. It exposes exactly one child: the GattProfile1 object above.
type profileApp struct {
	profilePath dbus.ObjectPath
	profile     *gattProfile
}

func (a *profileApp) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	return map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		a.profilePath: {
			gattProfileInterface: {
				"UUIDs": dbus.MakeVariant(a.profile.uuids),
			},
		},
	}, nil
}

// RegisterApplication declares interest in the given GATT service UUIDs
// by exporting a minimal GattManager1 application — one GattProfile1
// object under an ObjectManager root — and registering it with BlueZ
// (spec.md §4.7 entry sequence step 3: "Install the connection-manager
// helper … registers interest in service UUIDs of all managed devices;
// returns a handle to be closed on teardown"). Duplicate UUIDs are
// harmless; BlueZ de-duplicates internally.
func (b *Bus) RegisterApplication(uuids []string) (func() error, error) {
	root := dbus.ObjectPath("/org/wrobell/btzen/profile/" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	profilePath := root + "/gatt0"

	profile := &gattProfile{uuids: uuids}
	app := &profileApp{profilePath: profilePath, profile: profile}

	if err := b.conn.Export(app, root, objectManagerInterface); err != nil {
		return nil, wrapBus(err, "export profile app at %s", root)
	}
	if err := b.conn.Export(profile, profilePath, gattProfileInterface); err != nil {
		b.conn.Export(nil, root, objectManagerInterface)
		return nil, wrapBus(err, "export gatt profile at %s", profilePath)
	}

	manager := b.conn.Object(busName, dbus.ObjectPath("/org/bluez"))
	if call := manager.Call(gattManagerInterface + ".RegisterApplication", 0, root, map[string]dbus.Variant{}); call.Err != nil {
		b.conn.Export(nil, profilePath, gattProfileInterface)
		b.conn.Export(nil, root, objectManagerInterface)
		return nil, wrapBus(call.Err, "RegisterApplication %s", root)
	}

	unregister := func() error {
		manager := b.conn.Object(busName, dbus.ObjectPath("/org/bluez"))
		call := manager.Call(gattManagerInterface + ".UnregisterApplication", 0, root)
		b.conn.Export(nil, profilePath, gattProfileInterface)
		b.conn.Export(nil, root, objectManagerInterface)
		if call.Err != nil {
			return wrapBus(call.Err, "UnregisterApplication %s", root)
		}
		return nil
	}
	return unregister, nil
}
