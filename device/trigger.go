package device

import (
	"fmt"

	"github.com/wrobell/btzen/internal/errs"
)

// Condition is the remote-side condition that causes a sensor to
// publish a new value.
type Condition int

const (
	// FixedTime samples the sensor on a fixed period, in seconds.
	FixedTime Condition = iota
	// OnChange samples the sensor whenever its value changes.
	OnChange
)

func (c Condition) String() string {
	if c == OnChange {
		return "on_change"
	}
	return "fixed_time"
}

// Trigger carries the remote sampling condition for a DeviceTrigger
// descriptor. Operand is only meaningful for FixedTime, where it holds
// the sampling period in seconds.
type Trigger struct {
	Condition Condition
	Operand   float64
}

// maxTriggerOperand is the largest FixedTime operand a SensorTag-like
// one-byte trigger encoding can represent: int(operand*100) must fit in
// a single byte.
const maxTriggerOperand = 2.56

// EncodeSensorTagTrigger converts a FixedTime operand into the one-byte
// wire encoding SensorTag-like devices expect (int(seconds*100)).
// ON_CHANGE triggers have no byte encoding here; callers only invoke
// this for FixedTime triggers.
func EncodeSensorTagTrigger(t Trigger) ([]byte, error) {
	if t.Condition != FixedTime {
		return nil, fmt.Errorf("%w: sensor-tag trigger encoding requires FIXED_TIME, got %s", errs.ErrConfiguration, t.Condition)
	}
	if t.Operand <= 0 || t.Operand >= maxTriggerOperand {
		return nil, fmt.Errorf("%w: trigger operand %.3fs out of range (0, %.2f)", errs.ErrConfiguration, t.Operand, maxTriggerOperand)
	}
	value := int(t.Operand * 100)
	if value >= 256 {
		return nil, fmt.Errorf("%w: encoded trigger value %d does not fit in one byte", errs.ErrConfiguration, value)
	}
	return []byte{byte(value)}, nil
}
