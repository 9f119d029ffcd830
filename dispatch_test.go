package btzen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wrobell/btzen/device"
	isession "github.com/wrobell/btzen/internal/session"
)

func TestPropertyBytes(t *testing.T) {
	assert.Equal(t, []byte{0x2a}, propertyBytes(byte(0x2a)))
	assert.Equal(t, []byte{0x01, 0x02}, propertyBytes([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x34, 0x12}, propertyBytes(uint16(0x1234)))
	assert.Nil(t, propertyBytes("unexpected"))
}

func TestWrite_RejectsNonSerialDescriptor(t *testing.T) {
	d, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)

	s := &Session{}
	err = s.Write(context.Background(), d, []byte{0x01})
	assert.Error(t, err)
}

func TestSetIntervalSetTriggerSetAddressType(t *testing.T) {
	d, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)

	withInterval := SetInterval(d, 2.5)
	assert.True(t, withInterval.Triggered())
	assert.Equal(t, device.FixedTime, withInterval.Trigger.Condition)
	assert.Equal(t, 2.5, withInterval.Trigger.Operand)

	withTrigger := SetTrigger(d, device.OnChange, 0)
	assert.Equal(t, device.OnChange, withTrigger.Trigger.Condition)

	withAddr := SetAddressType(d, device.Random)
	assert.Equal(t, device.Random, withAddr.AddressType)
}

func TestReadAll_ClosesAfterFirstError(t *testing.T) {
	d, err := device.Pressure("AA:BB:CC:DD:EE:FF", device.SensorTag)
	assert.NoError(t, err)

	// An inactive session's WaitConnected fails fast with a CallError;
	// ReadAll must surface exactly that one result, then close.
	s := &Session{session: isession.New(nil)}

	results := s.ReadAll(context.Background(), d)
	first, ok := <-results
	assert.True(t, ok)
	assert.Error(t, first.Err)

	_, ok = <-results
	assert.False(t, ok, "channel must close after the first error")
}
