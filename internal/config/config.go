// Package config loads a YAML device manifest and turns it into the
// device.Descriptor slice Connect expects, the way
// adnanabbasy-ComX-Bridge/pkg/config loads a gateway manifest into
// core.Config: unmarshal with gopkg.in/yaml.v3, then struct-validate
// with github.com/go-playground/validator/v10 before anything in the
// core ever sees it.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wrobell/btzen/device"
)

// Manifest is the on-disk shape of a device manifest: which adapter to
// use and which devices to manage on it.
type Manifest struct {
	Adapter string         `yaml:"adapter"`
	Devices []DeviceConfig `yaml:"devices" validate:"required,min=1,dive"`
}

// DeviceConfig is one manifest entry. Type and MAC are required; Make,
// AddressType, Interval and Trigger are optional overrides of the
// registry's defaults for that (Make, Type) pair.
type DeviceConfig struct {
	Type        string  `yaml:"type" validate:"required"`
	MAC         string  `yaml:"mac" validate:"required"`
	Make        string  `yaml:"make"`
	AddressType string  `yaml:"address_type" validate:"omitempty,oneof=public random"`
	Interval    float64 `yaml:"interval,omitempty" validate:"omitempty,gt=0"`
	Trigger     string  `yaml:"trigger,omitempty" validate:"omitempty,oneof=fixed_time on_change"`
}

// Load reads and validates a device manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := validator.New().Struct(&m); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	if m.Adapter == "" {
		m.Adapter = "hci0"
	}
	return &m, nil
}

// Descriptors turns the manifest's device list into the
// []device.Descriptor Connect takes, applying each entry's
// make/address-type/trigger overrides on top of the registry's
// defaults for that (make, type) pair.
func (m *Manifest) Descriptors() ([]device.Descriptor, error) {
	descs := make([]device.Descriptor, 0, len(m.Devices))
	for _, dc := range m.Devices {
		d, err := dc.descriptor()
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func (dc DeviceConfig) descriptor() (device.Descriptor, error) {
	typ, err := device.ParseType(dc.Type)
	if err != nil {
		return device.Descriptor{}, err
	}
	make_, err := device.ParseMake(dc.Make)
	if err != nil {
		return device.Descriptor{}, err
	}

	d, err := device.New(typ, dc.MAC, make_)
	if err != nil {
		return device.Descriptor{}, err
	}

	if addr, set, err := device.ParseAddressType(dc.AddressType); err != nil {
		return device.Descriptor{}, err
	} else if set {
		d = d.WithAddressType(addr)
	}

	switch {
	case dc.Interval > 0:
		d = d.WithInterval(dc.Interval)
	case dc.Trigger != "":
		cond, err := device.ParseCondition(dc.Trigger)
		if err != nil {
			return device.Descriptor{}, err
		}
		d = d.WithTrigger(device.Trigger{Condition: cond})
	}
	return d, nil
}
