package sensing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wrobell/btzen/device"
)

func TestDefaultThingyConfig_Encode(t *testing.T) {
	cfg := defaultThingyConfig()
	data := cfg.encode()
	assert.Len(t, data, 12)
	assert.Equal(t, []byte{
		0xe8, 0x03, // temperature 1000ms
		0xe8, 0x03, // pressure 1000ms
		0xe8, 0x03, // humidity 1000ms
		0xe8, 0x03, // colour 1000ms
		0x01,             // gas mode
		0x00, 0xff, 0x00, // rgb
	}, data)
}

func TestThingyConfigFor_UpdatesOnlyTargetField(t *testing.T) {
	thingyCacheMu.Lock()
	thingyCache = map[string]thingyConfig{}
	thingyCacheMu.Unlock()

	mac := "AA:BB:CC:DD:EE:FF"
	cfg := thingyConfigFor(mac, 1, &device.Trigger{Condition: device.FixedTime, Operand: 2})
	assert.Equal(t, uint16(1000), cfg.intervalMs[0])
	assert.Equal(t, uint16(2000), cfg.intervalMs[1])

	cfg = thingyConfigFor(mac, 0, &device.Trigger{Condition: device.FixedTime, Operand: 0.5})
	assert.Equal(t, uint16(500), cfg.intervalMs[0])
	assert.Equal(t, uint16(2000), cfg.intervalMs[1], "earlier field's interval must survive later updates")
}

func TestSupports(t *testing.T) {
	pressure, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)
	assert.True(t, Supports(pressure))

	button, err := device.Button("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)
	assert.False(t, Supports(button))

	battery, err := device.BatteryLevel("AA:BB:CC:DD:EE:FF")
	assert.NoError(t, err)
	assert.False(t, Supports(battery))
}
