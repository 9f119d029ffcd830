package device

// ButtonState is the state of a button-like GATT characteristic. Each
// vendor family defines its own bit meanings on top of the same
// underlying byte.
type ButtonState uint8

// SensorTag button bits (Texas Instruments CC2541/CC2650 SensorTag).
const (
	SensorTagButtonOff       ButtonState = 0x00
	SensorTagButtonUser      ButtonState = 0x01
	SensorTagButtonPower     ButtonState = 0x02
	SensorTagButtonReedRelay ButtonState = 0x04
)

// Thingy:52 button bits.
const (
	Thingy52ButtonOff ButtonState = 0x00
	Thingy52ButtonOn  ButtonState = 0x01
)

// LightColor is an RGB(+clear) light reading. Field order matches the
// order Thingy:52's BH1745 sensor reports its four channels in, not
// the visually obvious R,G,B,Clear order.
type LightColor struct {
	Red   float64
	Blue  float64
	Green float64
	Clear float64
}

// WeightFlags are the Bluetooth Weight Measurement service's flag bits.
type WeightFlags uint8

const (
	WeightImperial  WeightFlags = 0x01
	WeightTimestamp WeightFlags = 0x02
	WeightUserID    WeightFlags = 0x04
	WeightBMI       WeightFlags = 0x08
	WeightReserved1 WeightFlags = 0x10
	WeightReserved2 WeightFlags = 0x20
	WeightReserved3 WeightFlags = 0x40
	WeightReserved4 WeightFlags = 0x80
)

// WeightData is a decoded Bluetooth Weight Measurement reading.
type WeightData struct {
	Flags  WeightFlags
	Weight float64
}

// MiScaleWeightData adds the Mi Smart Scale's stabilization bits on
// top of the generic weight measurement.
type MiScaleWeightData struct {
	WeightData
	Stabilized  bool
	LoadRemoved bool
}

// AccelSample is a decoded 3-axis accelerometer reading, in units of g.
type AccelSample struct {
	X, Y, Z float64
}
