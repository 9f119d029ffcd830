package device

// Decoder turns a raw characteristic or property payload into a typed
// value. The registry supplies one per (Make, Type) pair; callers never
// construct decoders directly.
type Decoder func([]byte) (interface{}, error)

// Descriptor is the immutable description of one measurement on one
// physical device: which service backs it, which MAC it lives on, and
// (for triggered devices) the sampling condition BTZen installs on
// every (re)connection.
//
// spec.md models "Device" (no trigger) and "DeviceTrigger" (adds
// Trigger) as a small class hierarchy; here that is a nil-vs-non-nil
// *Trigger field on one struct, which is enough for the dispatch in
// internal/connmgr and internal/sensing to pattern-match on, without a
// parallel struct that differs from Descriptor only by one field.
type Descriptor struct {
	ServiceType Type
	Make        Make
	Service     interface{} // one of Service, ServiceCharacteristic, ServiceEnvSensing, ServiceInterface, ServiceSensorTag, ServiceThingy52
	MAC         string
	AddressType AddressType
	Decode      Decoder
	Trigger     *Trigger
}

// Triggered reports whether this descriptor carries a sampling trigger
// (DeviceTrigger in spec.md's vocabulary).
func (d Descriptor) Triggered() bool { return d.Trigger != nil }

// WithTrigger returns a copy of d carrying the given trigger
// (set_trigger in spec.md §4.4). Descriptors are value types: this
// never mutates d.
func (d Descriptor) WithTrigger(t Trigger) Descriptor {
	d.Trigger = &t
	return d
}

// WithInterval is set_trigger(FIXED_TIME, seconds) (set_interval in
// spec.md §4.4).
func (d Descriptor) WithInterval(seconds float64) Descriptor {
	return d.WithTrigger(Trigger{Condition: FixedTime, Operand: seconds})
}

// WithAddressType returns a copy of d with a different link-layer
// address type.
func (d Descriptor) WithAddressType(t AddressType) Descriptor {
	d.AddressType = t
	return d
}

// String renders a short identity for logging: "<type>@<mac>".
func (d Descriptor) String() string {
	return d.ServiceType.String() + "@" + d.MAC
}

// UUID returns the base GATT service UUID d's service is bound to,
// regardless of which concrete Service variant it carries — used to
// collect the set of service UUIDs a session declares interest in.
func (d Descriptor) UUID() string {
	switch svc := d.Service.(type) {
	case Service:
		return svc.UUID
	case ServiceCharacteristic:
		return svc.UUID
	case ServiceEnvSensing:
		return svc.UUID
	case ServiceInterface:
		return svc.UUID
	case ServiceSensorTag:
		return svc.UUID
	case ServiceThingy52:
		return svc.UUID
	default:
		return ""
	}
}
