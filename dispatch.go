package btzen

import (
	"context"
	"encoding/binary"

	"github.com/wrobell/btzen/device"
	"github.com/wrobell/btzen/internal/errs"
	"github.com/wrobell/btzen/internal/sensing"
)

// Read performs one logical read from d: for a notifying service it
// blocks for the next notified value, for a bus property it blocks for
// the next property change, and for the serial transport it reads n bytes
// (args[0], defaulting to 1) — the `read` dispatch table of the
// original driver's device I/O module, collapsed from Python's
// singledispatch into one type switch on d.Service.
func (s *Session) Read(ctx context.Context, d device.Descriptor, args ...int) (value interface{}, err error) {
	if err := s.session.WaitConnected(ctx, d.MAC); err != nil {
		return nil, err
	}
	var cancel context.CancelFunc
	ctx, cancel = s.session.WithDeviceContext(ctx, d.MAC)
	defer cancel()
	defer func() { err = s.session.TranslateCancel(ctx, err) }()

	switch svc := d.Service.(type) {
	case device.ServiceSensorTag:
		return s.readNotified(ctx, d, svc.ServiceEnvSensing.UUIDData)
	case device.ServiceThingy52:
		return s.readNotified(ctx, d, svc.ServiceEnvSensing.UUIDData)
	case device.ServiceInterface:
		v, err := s.bus.DevPropertyGet(ctx, d.MAC, svc.Interface, svc.Property)
		if err != nil {
			return nil, err
		}
		return d.Decode(propertyBytes(v))
	case device.ServiceCharacteristic:
		if d.Triggered() {
			return s.readNotified(ctx, d, svc.UUIDData)
		}
		path, err := s.bus.EnsureCharacteristicPath(ctx, d.MAC, svc.UUIDData)
		if err != nil {
			return nil, err
		}
		data, err := s.bus.ReadValue(path)
		if err != nil {
			return nil, err
		}
		return d.Decode(data)
	case device.Service:
		if d.ServiceType == device.TypeSerial {
			n := 1
			if len(args) > 0 {
				n = args[0]
			}
			data, err := s.serialFor(d.MAC).Read(ctx, n)
			if err != nil {
				return nil, err
			}
			return d.Decode(data)
		}
		return nil, errUnsupportedService(d)
	default:
		return nil, errUnsupportedService(d)
	}
}

// ReadResult is one value produced by ReadAll: either a decoded reading
// or the error that ended the stream.
type ReadResult struct {
	Value interface{}
	Err   error
}

// ReadAll is read_all from spec.md §6: a stream of repeated Read calls
// on d, delivered over a channel instead of Python's async generator —
// the "read_all becomes a stream combinator over read" rendering spec.md
// §9 calls for. The channel closes after ctx is cancelled or after the
// first error, which is always the last value sent.
func (s *Session) ReadAll(ctx context.Context, d device.Descriptor, args ...int) <-chan ReadResult {
	out := make(chan ReadResult)
	go func() {
		defer close(out)
		for {
			v, err := s.Read(ctx, d, args...)
			select {
			case out <- ReadResult{Value: v, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

func (s *Session) readNotified(ctx context.Context, d device.Descriptor, uuidData string) (interface{}, error) {
	path, err := s.bus.EnsureCharacteristicPath(ctx, d.MAC, uuidData)
	if err != nil {
		return nil, err
	}
	data, err := s.bus.GattGet(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.Decode(data)
}

// propertyBytes renders a decoded bus-property value back into the raw
// byte form the registry's Decoder functions expect, so the same
// Decoder works whether a value arrived as a GATT notification or a
// bus property (spec.md §6's TypeSig: "y" for a single byte, "q" for
// an unsigned 16-bit word — the two signatures BTZen's bus properties
// currently use).
func propertyBytes(v interface{}) []byte {
	switch t := v.(type) {
	case byte:
		return []byte{t}
	case []byte:
		return t
	case uint16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, t)
		return b
	default:
		return nil
	}
}

// Write sends data to d. Only the serial transport (C9) supports
// writes in the generic dispatcher; every other service type is
// read-only, matching the original driver's un-overridden `write`
// singledispatch default.
func (s *Session) Write(ctx context.Context, d device.Descriptor, data []byte) (err error) {
	if d.ServiceType != device.TypeSerial {
		return errs.New(errs.Configuration, "%s does not support write", d)
	}
	if err := s.session.WaitConnected(ctx, d.MAC); err != nil {
		return err
	}
	var cancel context.CancelFunc
	ctx, cancel = s.session.WithDeviceContext(ctx, d.MAC)
	defer cancel()
	defer func() { err = s.session.TranslateCancel(ctx, err) }()
	return s.serialFor(d.MAC).Write(ctx, data)
}

// Enable arms d for reading: starts GATT notifications or bus-property
// monitoring, or (for env-sensing devices) writes the config-on blob
// and trigger first. Connect runs the same enable dispatch (without
// the WaitConnected gate) automatically whenever a device
// (re)connects; callers normally never need it directly.
func (s *Session) Enable(ctx context.Context, d device.Descriptor) error {
	if err := s.session.WaitConnected(ctx, d.MAC); err != nil {
		return err
	}
	return s.enableDescriptor(ctx, d)
}

// Disable releases resources Enable acquired. Best-effort: like the
// original driver's `disable`, it must not raise on a device that is
// already gone.
func (s *Session) Disable(d device.Descriptor) error {
	return s.disableDescriptor(d)
}

func (s *Session) enableDescriptor(ctx context.Context, d device.Descriptor) error {
	switch svc := d.Service.(type) {
	case device.ServiceSensorTag, device.ServiceThingy52:
		return sensing.Enable(ctx, s.bus, d)
	case device.ServiceInterface:
		s.bus.DevPropertyStart(d.MAC, svc.Interface, svc.Property)
		return nil
	case device.ServiceCharacteristic:
		path, err := s.bus.EnsureCharacteristicPath(ctx, d.MAC, svc.UUIDData)
		if err != nil {
			return err
		}
		if d.Triggered() {
			return s.bus.NotifyStart(path)
		}
		return nil
	case device.Service:
		if d.ServiceType == device.TypeSerial {
			return s.serialFor(d.MAC).Enable(ctx)
		}
		return nil
	default:
		return errUnsupportedService(d)
	}
}

func (s *Session) disableDescriptor(d device.Descriptor) error {
	switch svc := d.Service.(type) {
	case device.ServiceSensorTag, device.ServiceThingy52:
		return sensing.Disable(context.Background(), s.bus, d)
	case device.ServiceInterface:
		s.bus.DevPropertyStop(d.MAC, svc.Interface)
		return nil
	case device.ServiceCharacteristic:
		if !d.Triggered() {
			return nil
		}
		path, err := s.bus.CharacteristicPath(d.MAC, svc.UUIDData)
		if err != nil {
			// Already gone: nothing left to stop.
			return nil
		}
		return s.bus.NotifyStop(path)
	case device.Service:
		if d.ServiceType == device.TypeSerial {
			return s.serialFor(d.MAC).Disable()
		}
		return nil
	default:
		return nil
	}
}
