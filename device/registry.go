package device

import "fmt"

// registryEntry is the C3 service registry row: everything the
// registry maps a (Make, Type) pair to. Descriptors are value types,
// shared and read-only once init() has run.
type registryEntry struct {
	Service     interface{}
	Decode      Decoder
	Trigger     *Trigger
	AddressType AddressType
}

type registryKey struct {
	Make Make
	Type Type
}

// registry is populated once, from registry.go's init(), by the
// per-vendor registration blocks below (sensortag.go's equivalent,
// thingy52.go's equivalent, bluez.go's equivalent, btweight.go's
// equivalent — all folded into this one file since in Go they are
// plain data, not side-effecting decorators). It is never written to
// again after init(): all lookups are read-only.
var registry = map[registryKey]registryEntry{}

func add(make Make, typ Type, svc interface{}, decode Decoder, trigger *Trigger, addr AddressType) {
	key := registryKey{make, typ}
	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("device: duplicate registry entry for %s/%s", make, typ))
	}
	registry[key] = registryEntry{Service: svc, Decode: decode, Trigger: trigger, AddressType: addr}
}

func trig(c Condition, operand float64) *Trigger {
	return &Trigger{Condition: c, Operand: operand}
}

func init() {
	registerBluez()
	registerSensorTag()
	registerThingy52()
	registerWeight()
	registerSerial()
}

// registerBluez registers the services BlueZ itself exposes as bus
// properties rather than GATT characteristics (bluez.go).
func registerBluez() {
	add(Standard, TypeBatteryLevel,
		ServiceInterface{
			Service:   Service{UUID: uuid16(0x180f)},
			Interface: "org.bluez.Battery1",
			Property:  "Percentage",
			TypeSig:   "y",
		},
		decodeBatteryLevel,
		trig(OnChange, 0),
		Public,
	)
}

// registerSensorTag registers the Texas Instruments SensorTag family
// (CC2541/CC2650), matching sensortag.py.
func registerSensorTag() {
	const accelConfig = 0x08 | 0x10 | 0x20
	const accelWakeOnMotion = 0x80

	add(SensorTag, TypePressure,
		ServiceSensorTag{
			ServiceEnvSensing: ServiceEnvSensing{
				ServiceCharacteristic: ServiceCharacteristic{
					Service:  Service{UUID: uuidSensorTag(0xaa40)},
					UUIDData: uuidSensorTag(0xaa41),
					Size:     6,
				},
				UUIDConf:    uuidSensorTag(0xaa42),
				UUIDTrigger: uuidSensorTag(0xaa44),
				ConfigOn:    []byte{0x01},
				ConfigOff:   []byte{0x00},
			},
			DefaultInterval: 1,
		},
		decodeSensorTagPressure, nil, Public,
	)

	add(SensorTag, TypeTemperature,
		ServiceSensorTag{
			ServiceEnvSensing: ServiceEnvSensing{
				ServiceCharacteristic: ServiceCharacteristic{
					Service:  Service{UUID: uuidSensorTag(0xaa00)},
					UUIDData: uuidSensorTag(0xaa01),
					Size:     4,
				},
				UUIDConf:    uuidSensorTag(0xaa02),
				UUIDTrigger: uuidSensorTag(0xaa03),
				ConfigOn:    []byte{0x01},
				ConfigOff:   []byte{0x00},
			},
			DefaultInterval: 1,
		},
		decodeSensorTagTemperature, nil, Public,
	)

	add(SensorTag, TypeHumidity,
		ServiceSensorTag{
			ServiceEnvSensing: ServiceEnvSensing{
				ServiceCharacteristic: ServiceCharacteristic{
					Service:  Service{UUID: uuidSensorTag(0xaa20)},
					UUIDData: uuidSensorTag(0xaa21),
					Size:     4,
				},
				UUIDConf:    uuidSensorTag(0xaa22),
				UUIDTrigger: uuidSensorTag(0xaa23),
				ConfigOn:    []byte{0x01},
				ConfigOff:   []byte{0x00},
			},
			DefaultInterval: 1,
		},
		decodeSensorTagHumidity, nil, Public,
	)

	add(SensorTag, TypeLight,
		ServiceSensorTag{
			ServiceEnvSensing: ServiceEnvSensing{
				ServiceCharacteristic: ServiceCharacteristic{
					Service:  Service{UUID: uuidSensorTag(0xaa70)},
					UUIDData: uuidSensorTag(0xaa71),
					Size:     2,
				},
				UUIDConf:    uuidSensorTag(0xaa72),
				UUIDTrigger: uuidSensorTag(0xaa73),
				ConfigOn:    []byte{0x01},
				ConfigOff:   []byte{0x00},
			},
			DefaultInterval: 1,
		},
		decodeSensorTagLight, nil, Public,
	)

	add(SensorTag, TypeAccelerometer,
		ServiceSensorTag{
			ServiceEnvSensing: ServiceEnvSensing{
				ServiceCharacteristic: ServiceCharacteristic{
					Service:  Service{UUID: uuidSensorTag(0xaa80)},
					UUIDData: uuidSensorTag(0xaa81),
					Size:     18,
				},
				UUIDConf:    uuidSensorTag(0xaa82),
				UUIDTrigger: uuidSensorTag(0xaa83),
				ConfigOn:    []byte{byte(accelConfig | accelWakeOnMotion), 0x00},
				ConfigOff:   []byte{0x00, 0x00},
			},
			DefaultInterval: 0.1,
		},
		decodeSensorTagAccel, trig(FixedTime, 0.1), Public,
	)

	add(SensorTag, TypeButton,
		ServiceCharacteristic{
			Service:  Service{UUID: uuidSensorTag(0xffe0)},
			UUIDData: uuidSensorTag(0xffe1),
			Size:     1,
		},
		decodeSensorTagButton, trig(OnChange, 0), Public,
	)
}

// registerThingy52 registers Nordic's Thingy:52, matching thingy52.go.
// All Thingy:52 sensors are notifying and default to a random address
// type and a one-second FIXED_TIME trigger.
func registerThingy52() {
	add(Thingy52, TypePressure,
		ServiceThingy52{
			ServiceEnvSensing: ServiceEnvSensing{
				ServiceCharacteristic: ServiceCharacteristic{
					Service:  Service{UUID: uuidThingy52(0x0200)},
					UUIDData: uuidThingy52(0x0202),
					Size:     5,
				},
				UUIDConf: uuidThingy52(0x0206),
			},
			DefaultInterval: 1,
			FieldOffset:     1,
		},
		decodeThingy52Pressure, trig(FixedTime, 1), Random,
	)

	add(Thingy52, TypeTemperature,
		ServiceThingy52{
			ServiceEnvSensing: ServiceEnvSensing{
				ServiceCharacteristic: ServiceCharacteristic{
					Service:  Service{UUID: uuidThingy52(0x0200)},
					UUIDData: uuidThingy52(0x0201),
					Size:     2,
				},
				UUIDConf: uuidThingy52(0x0206),
			},
			DefaultInterval: 1,
			FieldOffset:     0,
		},
		decodeThingy52Temperature, trig(FixedTime, 1), Random,
	)

	add(Thingy52, TypeHumidity,
		ServiceThingy52{
			ServiceEnvSensing: ServiceEnvSensing{
				ServiceCharacteristic: ServiceCharacteristic{
					Service:  Service{UUID: uuidThingy52(0x0200)},
					UUIDData: uuidThingy52(0x0203),
					Size:     1,
				},
				UUIDConf: uuidThingy52(0x0206),
			},
			DefaultInterval: 1,
			FieldOffset:     2,
		},
		decodeThingy52Humidity, trig(FixedTime, 1), Random,
	)

	add(Thingy52, TypeLightRGB,
		ServiceThingy52{
			ServiceEnvSensing: ServiceEnvSensing{
				ServiceCharacteristic: ServiceCharacteristic{
					Service:  Service{UUID: uuidThingy52(0x0200)},
					UUIDData: uuidThingy52(0x0205),
					Size:     8,
				},
				UUIDConf: uuidThingy52(0x0206),
			},
			DefaultInterval: 1,
			FieldOffset:     3,
		},
		decodeThingy52Light, trig(FixedTime, 1), Random,
	)

	add(Thingy52, TypeButton,
		ServiceCharacteristic{
			Service:  Service{UUID: uuidThingy52(0x0300)},
			UUIDData: uuidThingy52(0x0302),
			Size:     1,
		},
		decodeThingy52Button, trig(FixedTime, 1), Random,
	)
}

// registerWeight registers the standard Bluetooth weight measurement
// and the Mi Smart Scale's variant of it, matching btweight.go.
func registerWeight() {
	add(Standard, TypeWeightMeasurement,
		ServiceCharacteristic{
			Service:  Service{UUID: uuid16(0x181d)},
			UUIDData: uuid16(0x2a9d),
			Size:     9,
		},
		decodeWeight, trig(OnChange, 0), Public,
	)

	add(MiSmartScale, TypeWeightMeasurement,
		ServiceCharacteristic{
			Service:  Service{UUID: uuid16(0x181d)},
			UUIDData: uuid16(0x2a9d),
			Size:     9,
		},
		decodeMiScaleWeight, trig(OnChange, 0), Public,
	)
}

// registerSerial registers the Stollmann/TIO credit-gated serial
// transport carried by OSTC dive computers. The base service UUID
// identifies the profile; the four data/credit characteristic UUIDs are
// owned directly by the serial package rather than threaded through
// ServiceCharacteristic, since the credit protocol addresses all four
// by fixed, never-varying UUIDs.
func registerSerial() {
	add(OSTC, TypeSerial,
		Service{UUID: uuidSerial(1)},
		decodeSerial, nil, Public,
	)
}

// Lookup returns the registry entry for a (Make, Type) pair.
func Lookup(make Make, typ Type) (service interface{}, decode Decoder, trigger *Trigger, addr AddressType, ok bool) {
	e, ok := registry[registryKey{make, typ}]
	if !ok {
		return nil, nil, nil, Public, false
	}
	return e.Service, e.Decode, e.Trigger, e.AddressType, true
}
