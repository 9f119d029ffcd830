package device

import (
	"errors"
	"testing"

	"github.com/wrobell/btzen/internal/errs"
)

func TestEncodeSensorTagTrigger_SetIntervalOneSecond(t *testing.T) {
	d, err := Pressure("AA:BB:CC:DD:EE:FF", SensorTag)
	if err != nil {
		t.Fatalf("build descriptor: %v", err)
	}
	d = d.WithInterval(1.0)

	encoded, err := EncodeSensorTagTrigger(*d.Trigger)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded) != 1 || encoded[0] != 0x64 {
		t.Errorf("encoded = %v, want [0x64]", encoded)
	}
}

func TestEncodeSensorTagTrigger_RoundTripsBelowCeiling(t *testing.T) {
	for _, seconds := range []float64{0.01, 0.5, 1.0, 2.0, 2.55} {
		encoded, err := EncodeSensorTagTrigger(Trigger{Condition: FixedTime, Operand: seconds})
		if err != nil {
			t.Fatalf("encode %v: %v", seconds, err)
		}
		if want := int(seconds * 100); int(encoded[0]) != want {
			t.Errorf("encode(%v) = %d, want %d", seconds, encoded[0], want)
		}
	}
}

func TestEncodeSensorTagTrigger_RejectsOutOfRangeOperand(t *testing.T) {
	_, err := EncodeSensorTagTrigger(Trigger{Condition: FixedTime, Operand: 2.56})
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("expected a configuration error for operand 2.56, got %v", err)
	}
}

func TestEncodeSensorTagTrigger_RejectsOnChange(t *testing.T) {
	_, err := EncodeSensorTagTrigger(Trigger{Condition: OnChange})
	if err == nil {
		t.Error("expected error encoding an ON_CHANGE trigger as a fixed-time byte")
	}
}
