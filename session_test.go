package btzen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wrobell/btzen/device"
)

func TestServiceUUIDs_DedupesAcrossDevices(t *testing.T) {
	tempA, err := device.Temperature("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)
	tempB, err := device.Temperature("11:22:33:44:55:66", device.SensorTag)
	assert.NoError(t, err)
	pressure, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)

	uuids := serviceUUIDs([]device.Descriptor{tempA, tempB, pressure})

	assert.Len(t, uuids, 2, "same-service devices on different MACs must contribute one UUID")
	assert.Contains(t, uuids, tempA.UUID())
	assert.Contains(t, uuids, pressure.UUID())
}

func TestServiceUUIDs_Empty(t *testing.T) {
	assert.Empty(t, serviceUUIDs(nil))
}
