package device

import "github.com/wrobell/btzen/internal/errs"

// ParseType resolves a device manifest's string measurement name (e.g.
// "temperature", "light_rgb") into a Type, the inverse of Type.String,
// so internal/config can turn a YAML device list into descriptors
// without a caller hand-writing Go constants.
func ParseType(s string) (Type, error) {
	switch s {
	case "accelerometer":
		return TypeAccelerometer, nil
	case "button":
		return TypeButton, nil
	case "battery_level":
		return TypeBatteryLevel, nil
	case "humidity":
		return TypeHumidity, nil
	case "light":
		return TypeLight, nil
	case "light_rgb":
		return TypeLightRGB, nil
	case "pressure":
		return TypePressure, nil
	case "serial":
		return TypeSerial, nil
	case "temperature":
		return TypeTemperature, nil
	case "weight_measurement":
		return TypeWeightMeasurement, nil
	default:
		return 0, errs.New(errs.Configuration, "unknown service type %q", s)
	}
}

// ParseMake resolves a manifest's vendor name into a Make, defaulting
// to Standard for an empty string (the manifest's make field is
// optional, same as the constructors' variadic make argument).
func ParseMake(s string) (Make, error) {
	switch s {
	case "", "standard":
		return Standard, nil
	case "sensor_tag":
		return SensorTag, nil
	case "thingy52":
		return Thingy52, nil
	case "ostc":
		return OSTC, nil
	case "mi_smart_scale":
		return MiSmartScale, nil
	default:
		return 0, errs.New(errs.Configuration, "unknown make %q", s)
	}
}

// ParseAddressType resolves a manifest's address-type override,
// defaulting to the registry's choice when s is empty.
func ParseAddressType(s string) (AddressType, bool, error) {
	switch s {
	case "":
		return Public, false, nil
	case "public":
		return Public, true, nil
	case "random":
		return Random, true, nil
	default:
		return 0, false, errs.New(errs.Configuration, "unknown address type %q", s)
	}
}

// ParseCondition resolves a manifest's trigger condition name.
func ParseCondition(s string) (Condition, error) {
	switch s {
	case "fixed_time":
		return FixedTime, nil
	case "on_change":
		return OnChange, nil
	default:
		return 0, errs.New(errs.Configuration, "unknown trigger condition %q", s)
	}
}
