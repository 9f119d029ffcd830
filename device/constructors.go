package device

import "github.com/wrobell/btzen/internal/errs"

// build looks up the registry entry for (make, typ) and assembles a
// Descriptor, returning DeviceTrigger semantics (a non-nil Trigger)
// whenever the registry carries a default trigger for that pair.
func build(typ Type, mac string, make Make) (Descriptor, error) {
	svc, decode, trigger, addr, ok := Lookup(make, typ)
	if !ok {
		return Descriptor{}, errs.New(errs.Configuration, "no %s service registered for make %s", typ, make)
	}
	return Descriptor{
		ServiceType: typ,
		Make:        make,
		Service:     svc,
		MAC:         mac,
		AddressType: addr,
		Decode:      decode,
		Trigger:     trigger,
	}, nil
}

// New builds a descriptor for an arbitrary (Type, Make) pair, for
// callers that only know which measurement and vendor family they want
// at runtime (e.g. a YAML device manifest) rather than at compile time.
func New(typ Type, mac string, make Make) (Descriptor, error) {
	return build(typ, mac, make)
}

// makeOf returns the first make in opt, or Standard if opt is empty —
// the Go rendering of spec.md's `make: Make = STANDARD` default
// argument.
func makeOf(opt []Make) Make {
	if len(opt) == 0 {
		return Standard
	}
	return opt[0]
}

// Temperature creates a temperature sensor descriptor (spec.md §6).
func Temperature(mac string, make ...Make) (Descriptor, error) {
	return build(TypeTemperature, mac, makeOf(make))
}

// Pressure creates a pressure sensor descriptor.
func Pressure(mac string, make ...Make) (Descriptor, error) {
	return build(TypePressure, mac, makeOf(make))
}

// Humidity creates a humidity sensor descriptor.
func Humidity(mac string, make ...Make) (Descriptor, error) {
	return build(TypeHumidity, mac, makeOf(make))
}

// Light creates a single-channel ambient light sensor descriptor.
func Light(mac string, make ...Make) (Descriptor, error) {
	return build(TypeLight, mac, makeOf(make))
}

// LightRGB creates an RGB(+clear) light sensor descriptor.
func LightRGB(mac string, make ...Make) (Descriptor, error) {
	return build(TypeLightRGB, mac, makeOf(make))
}

// Accelerometer creates an accelerometer descriptor. Accelerometers
// are trigger-only: the returned Descriptor always carries a Trigger.
func Accelerometer(mac string, make ...Make) (Descriptor, error) {
	return build(TypeAccelerometer, mac, makeOf(make))
}

// Button creates a button-state descriptor. Buttons are trigger-only.
func Button(mac string, make ...Make) (Descriptor, error) {
	return build(TypeButton, mac, makeOf(make))
}

// Weight creates a weight-measurement descriptor. Weight is
// trigger-only.
func Weight(mac string, make ...Make) (Descriptor, error) {
	return build(TypeWeightMeasurement, mac, makeOf(make))
}

// BatteryLevel creates a battery-percentage descriptor backed by
// BlueZ's org.bluez.Battery1 interface. Battery level is trigger-only
// (it is read on bus property change, not polled).
func BatteryLevel(mac string, make ...Make) (Descriptor, error) {
	return build(TypeBatteryLevel, mac, makeOf(make))
}

// Serial creates a credit-gated serial transport descriptor (§4.9).
// Session.Read/Write hand serial devices to the serial package's
// credit-gated Transport; their decoder passes bytes through unchanged.
func Serial(mac string, make ...Make) (Descriptor, error) {
	return build(TypeSerial, mac, makeOf(make))
}
