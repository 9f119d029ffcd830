// Package sensing implements C8: enable/disable and trigger encoding for
// the vendor families that expose a (config, trigger) GATT pair on an
// environmental-sensing service — Texas Instruments SensorTag and Nordic
// Thingy:52, grounded on sensortag.py's and thingy52.py's `_enable_*`
// functions.
package sensing

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/wrobell/btzen/device"
	"github.com/wrobell/btzen/internal/bus"
	"github.com/wrobell/btzen/internal/errs"
)

// Supports reports whether d's service carries a (config, trigger) pair
// this package knows how to drive. Devices whose service is a plain
// ServiceCharacteristic (e.g. buttons) or a ServiceInterface (e.g.
// battery level) are not handled here — the generic dispatcher in the
// root package deals with those directly.
func Supports(d device.Descriptor) bool {
	switch d.Service.(type) {
	case device.ServiceSensorTag, device.ServiceThingy52:
		return true
	default:
		return false
	}
}

// Enable writes the device's configuration (config_on plus the encoded
// trigger for SensorTag-like devices, the shared interval blob for
// Thingy-like ones), then starts GATT notifications on the data
// characteristic.
func Enable(ctx context.Context, b *bus.Bus, d device.Descriptor) error {
	switch svc := d.Service.(type) {
	case device.ServiceSensorTag:
		return enableSensorTag(ctx, b, d, svc)
	case device.ServiceThingy52:
		return enableThingy52(ctx, b, d, svc)
	default:
		return errs.New(errs.Configuration, "sensing: %s does not carry a config/trigger pair", d)
	}
}

// Disable stops notifications and writes config_off, best-effort.
func Disable(ctx context.Context, b *bus.Bus, d device.Descriptor) error {
	switch svc := d.Service.(type) {
	case device.ServiceSensorTag:
		return disableEnvSensing(b, d, svc.ServiceEnvSensing)
	case device.ServiceThingy52:
		return disableEnvSensing(b, d, svc.ServiceEnvSensing)
	default:
		return errs.New(errs.Configuration, "sensing: %s does not carry a config/trigger pair", d)
	}
}

func enableSensorTag(ctx context.Context, b *bus.Bus, d device.Descriptor, svc device.ServiceSensorTag) error {
	env := svc.ServiceEnvSensing
	dataPath, err := b.EnsureCharacteristicPath(ctx, d.MAC, env.UUIDData)
	if err != nil {
		return err
	}
	confPath, err := b.EnsureCharacteristicPath(ctx, d.MAC, env.UUIDConf)
	if err != nil {
		return err
	}
	if err := b.WriteValue(confPath, env.ConfigOn); err != nil {
		return err
	}
	if d.Trigger != nil && d.Trigger.Condition == device.FixedTime {
		trigPath, err := b.EnsureCharacteristicPath(ctx, d.MAC, env.UUIDTrigger)
		if err != nil {
			return err
		}
		encoded, err := device.EncodeSensorTagTrigger(*d.Trigger)
		if err != nil {
			return err
		}
		if err := b.WriteValue(trigPath, encoded); err != nil {
			return err
		}
	}
	return b.NotifyStart(dataPath)
}

func disableEnvSensing(b *bus.Bus, d device.Descriptor, env device.ServiceEnvSensing) error {
	dataPath, err := b.CharacteristicPath(d.MAC, env.UUIDData)
	if err != nil {
		// Device already gone: nothing left to stop or write.
		return nil
	}
	notifyErr := b.NotifyStop(dataPath)
	confPath, err := b.CharacteristicPath(d.MAC, env.UUIDConf)
	if err != nil {
		return notifyErr
	}
	if writeErr := b.WriteValue(confPath, env.ConfigOff); writeErr != nil && notifyErr == nil {
		return writeErr
	}
	return notifyErr
}

// thingyFieldCount is the number of sampling-interval fields packed into
// a Thingy:52 config blob: temperature, pressure, humidity, colour.
const thingyFieldCount = 4

// thingyConfig mirrors the shared 12-byte environment configuration
// characteristic Thingy:52's firmware exposes:
// CONFIG_DATA_FMT '<HHHHBBBB' in the original driver — four 16-bit
// sampling intervals in milliseconds, one gas-sensor mode byte, and
// three RGB LED calibration bytes. BTZen only ever changes the
// intervals; gas mode and LED calibration stay at power-on defaults.
type thingyConfig struct {
	intervalMs [thingyFieldCount]uint16
	gasMode    byte
	ledRGB     [3]byte
}

func defaultThingyConfig() thingyConfig {
	c := thingyConfig{gasMode: 1, ledRGB: [3]byte{0, 255, 0}}
	for i := range c.intervalMs {
		c.intervalMs[i] = 1000
	}
	return c
}

func (c thingyConfig) encode() []byte {
	buf := make([]byte, 12)
	for i, v := range c.intervalMs {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], v)
	}
	buf[8] = c.gasMode
	buf[9], buf[10], buf[11] = c.ledRGB[0], c.ledRGB[1], c.ledRGB[2]
	return buf
}

var (
	thingyCacheMu sync.Mutex
	thingyCache   = map[string]thingyConfig{}
)

// thingyConfigFor returns the cached config for mac, seeding it with
// defaults on first use, then applies fieldOffset = intervalMs from the
// given device's trigger (if FixedTime), and caches the result.
func thingyConfigFor(mac string, fieldOffset int, trigger *device.Trigger) thingyConfig {
	thingyCacheMu.Lock()
	defer thingyCacheMu.Unlock()
	cfg, ok := thingyCache[mac]
	if !ok {
		cfg = defaultThingyConfig()
	}
	if trigger != nil && trigger.Condition == device.FixedTime {
		cfg.intervalMs[fieldOffset] = uint16(trigger.Operand * 1000)
	}
	thingyCache[mac] = cfg
	return cfg
}

func enableThingy52(ctx context.Context, b *bus.Bus, d device.Descriptor, svc device.ServiceThingy52) error {
	env := svc.ServiceEnvSensing
	cfg := thingyConfigFor(d.MAC, svc.FieldOffset, d.Trigger)

	confPath, err := b.EnsureCharacteristicPath(ctx, d.MAC, env.UUIDConf)
	if err != nil {
		return err
	}
	if err := b.WriteValue(confPath, cfg.encode()); err != nil {
		return err
	}
	dataPath, err := b.EnsureCharacteristicPath(ctx, d.MAC, env.UUIDData)
	if err != nil {
		return err
	}
	return b.NotifyStart(dataPath)
}
