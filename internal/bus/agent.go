package bus

import (
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const agentInterface = "org.bluez.Agent1"

// headlessAgent implements org.bluez.Agent1 as a "just works" pairing
// agent: every callback that would normally prompt a user instead
// returns success without interaction (spec.md §9: pairing UI is out of
// scope for this core).
type headlessAgent struct {
	log logrus.FieldLogger
}

func (a *headlessAgent) Release() *dbus.Error { return nil }

func (a *headlessAgent) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	return "0000", nil
}

func (a *headlessAgent) DisplayPinCode(device dbus.ObjectPath, pincode string) *dbus.Error {
	return nil
}

func (a *headlessAgent) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	return 0, nil
}

func (a *headlessAgent) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	return nil
}

func (a *headlessAgent) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	return nil
}

func (a *headlessAgent) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	return nil
}

func (a *headlessAgent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	return nil
}

func (a *headlessAgent) Cancel() *dbus.Error { return nil }

// agentHandle is the resource returned by RegisterAgent; closing it
// unregisters the agent and stops exporting its D-Bus object.
type agentHandle struct {
	conn *dbus.Conn
	path dbus.ObjectPath
}

// RegisterAgent exports a headless pairing agent at a per-Session object
// path (named with a random uuid so multiple Sessions on one process bus
// never collide) and registers it as the default "just works" agent.
func (b *Bus) RegisterAgent() (func() error, error) {
	path := dbus.ObjectPath("/org/wrobell/btzen/agent/" + uuid.NewString())
	agent := &headlessAgent{log: b.log}

	if err := b.conn.Export(agent, path, agentInterface); err != nil {
		return nil, wrapBus(err, "export agent at %s", path)
	}

	manager := b.conn.Object(busName, dbus.ObjectPath("/org/bluez"))
	if call := manager.Call("org.bluez.AgentManager1.RegisterAgent", 0, path, "NoInputNoOutput"); call.Err != nil {
		b.conn.Export(nil, path, agentInterface)
		return nil, wrapBus(call.Err, "RegisterAgent %s", path)
	}
	if call := manager.Call("org.bluez.AgentManager1.RequestDefaultAgent", 0, path); call.Err != nil {
		b.log.WithError(call.Err).Warn("bus: RequestDefaultAgent failed, continuing with non-default agent")
	}

	unregister := func() error {
		manager := b.conn.Object(busName, dbus.ObjectPath("/org/bluez"))
		call := manager.Call("org.bluez.AgentManager1.UnregisterAgent", 0, path)
		b.conn.Export(nil, path, agentInterface)
		if call.Err != nil {
			return wrapBus(call.Err, "UnregisterAgent %s", path)
		}
		return nil
	}
	return unregister, nil
}
