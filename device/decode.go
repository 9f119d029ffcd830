package device

import (
	"encoding/binary"
	"fmt"
)

// leUint reads an arbitrary-width (1-4 byte) little-endian unsigned
// integer, the way the original Python driver's `int.from_bytes(...,
// byteorder='little')` does for odd-width GATT payload slices (e.g. a
// 3-byte pressure field).
func leUint(data []byte) uint32 {
	var v uint32
	for i := len(data) - 1; i >= 0; i-- {
		v = v<<8 | uint32(data[i])
	}
	return v
}

// --- Texas Instruments SensorTag decoders (sensortag.go registrations) ---

const hdc1000Humidity = 65536.0 / 100.0
const mpu9250Accel2G = 32768.0 / 2.0

func decodeSensorTagTemperature(data []byte) (interface{}, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("sensor-tag temperature: need 4 bytes, got %d", len(data))
	}
	return float64(leUint(data[2:4])) / 128, nil
}

func decodeSensorTagHumidity(data []byte) (interface{}, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("sensor-tag humidity: need 4 bytes, got %d", len(data))
	}
	return float64(leUint(data[2:4])) / hdc1000Humidity, nil
}

func decodeSensorTagPressure(data []byte) (interface{}, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("sensor-tag pressure: need 6 bytes, got %d", len(data))
	}
	return float64(leUint(data[3:6])), nil
}

func decodeSensorTagLight(data []byte) (interface{}, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("sensor-tag light: need 2 bytes, got %d", len(data))
	}
	v := leUint(data[:2])
	m := float64(v&0x0FFF) / 100
	e := (v & 0xF000) >> 12
	return m * float64(uint32(2)<<e), nil
}

func decodeSensorTagAccel(data []byte) (interface{}, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("sensor-tag accelerometer: need 12 bytes, got %d", len(data))
	}
	x := int16(binary.LittleEndian.Uint16(data[6:8]))
	y := int16(binary.LittleEndian.Uint16(data[8:10]))
	z := int16(binary.LittleEndian.Uint16(data[10:12]))
	return AccelSample{
		X: float64(x) / mpu9250Accel2G,
		Y: float64(y) / mpu9250Accel2G,
		Z: float64(z) / mpu9250Accel2G,
	}, nil
}

func decodeSensorTagButton(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("sensor-tag button: need 1 byte, got 0")
	}
	return ButtonState(data[0]), nil
}

// --- Nordic Thingy:52 decoders (thingy52.go registrations) ---

func decodeThingy52Temperature(data []byte) (interface{}, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("thingy52 temperature: need 2 bytes, got %d", len(data))
	}
	return float64(data[0]) + float64(data[1])/100, nil
}

func decodeThingy52Humidity(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("thingy52 humidity: need 1 byte, got 0")
	}
	return float64(data[0]), nil
}

func decodeThingy52Pressure(data []byte) (interface{}, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("thingy52 pressure: need 5 bytes, got %d", len(data))
	}
	return float64(leUint(data[:4]))*100 + float64(data[4]), nil
}

const thingy52LightMax = 0xffff

func decodeThingy52Light(data []byte) (interface{}, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("thingy52 light: need 8 bytes, got %d", len(data))
	}
	return LightColor{
		Red:   float64(binary.LittleEndian.Uint16(data[0:2])) / thingy52LightMax,
		Blue:  float64(binary.LittleEndian.Uint16(data[2:4])) / thingy52LightMax,
		Green: float64(binary.LittleEndian.Uint16(data[4:6])) / thingy52LightMax,
		Clear: float64(binary.LittleEndian.Uint16(data[6:8])) / thingy52LightMax,
	}, nil
}

func decodeThingy52Button(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("thingy52 button: need 1 byte, got 0")
	}
	return ButtonState(data[0]), nil
}

// --- Weight measurement decoders (btweight.go registrations) ---

func decodeWeight(data []byte) (interface{}, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("weight measurement: need at least 3 bytes, got %d", len(data))
	}
	flags := WeightFlags(data[0])
	raw := binary.LittleEndian.Uint16(data[1:3])
	return WeightData{Flags: flags, Weight: float64(raw) * 0.005}, nil
}

func decodeMiScaleWeight(data []byte) (interface{}, error) {
	v, err := decodeWeight(data)
	if err != nil {
		return nil, err
	}
	wd := v.(WeightData)
	return MiScaleWeightData{
		WeightData:  wd,
		Stabilized:  wd.Flags&WeightReserved2 != 0,
		LoadRemoved: wd.Flags&WeightReserved4 != 0,
	}, nil
}

// --- Serial transport decoder (serial.go registration) ---

// decodeSerial passes raw bytes through unchanged: the serial package
// owns the credit protocol and framing, not the generic decoder.
func decodeSerial(data []byte) (interface{}, error) {
	return data, nil
}

// --- Battery level decoder (bluez.go registration) ---

func decodeBatteryLevel(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("battery level: need 1 byte, got 0")
	}
	return int(data[0]), nil
}
