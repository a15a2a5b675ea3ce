//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package backend

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/common/blockdev"
	"github.com/mongoose-os/fbflash/common/gpt"
	"github.com/mongoose-os/fbflash/common/multierror"
)

// Config is the static board description the backend works from.
type Config struct {
	// Devices in lookup order.
	Devices []DeviceConfig
	// Partitions in lookup order. The first partition with a given name
	// wins.
	Partitions []PartitionConfig
	Slots      SlotConfig

	// Enumerate lists the devices present on the system. Removable devices
	// are ignored.
	Enumerate blockdev.Enumerator
	// OpenTable opens the partition table of a device. Defaults to reading
	// a GPT.
	OpenTable func(dev blockdev.Device) (Table, error)
	// Override, if set, gets the first shot at every partition write.
	// Returning StatusNotHandled (possibly annotated) lets the generic
	// path proceed, anything else is the result of the write.
	Override func(name string, data []byte) error
}

type DeviceConfig struct {
	Name string
	// Controller claims the enumerated device that backs this entry. It may
	// be left nil and bound later with Backend.BindController.
	Controller blockdev.Controller
}

// GPTLocation addresses a partition as the Nth (zero-based) GPT entry of
// the given type.
type GPTLocation struct {
	Type     uuid.UUID
	Instance int
}

// FixedRange addresses a partition by absolute LBAs.
type FixedRange struct {
	Base uint64
	Size uint64
}

type PartitionConfig struct {
	Name   string
	FSType string
	// Name of the device in Config.Devices.
	Device string

	// Exactly one of GPT and Fixed is used. A partition with neither is
	// fixed-addressed with an extent still to be set by FillPartition.
	GPT   *GPTLocation
	Fixed *FixedRange

	// Slotted partitions come in groups named <base><suffix>, one per slot.
	Slotted bool
}

func (p *PartitionConfig) IsGPT() bool {
	return p.GPT != nil
}

type SlotConfig struct {
	// Number of boot slots. Zero disables slot management.
	Count int
	// Suffix of the first slot's partitions, e.g. "-a". Always two
	// characters, the second being the slot letter.
	StartingSuffix string
	// Type of the GPT entries holding slot state. Defaults to the ChromeOS
	// kernel type.
	KernelType uuid.UUID
}

const DefaultStartingSuffix = "-a"

func (c *Config) kernelType() uuid.UUID {
	if c.Slots.KernelType == uuid.Nil {
		return gpt.TypeChromeOSKernel
	}
	return c.Slots.KernelType
}

func (c *Config) startingSuffix() string {
	if c.Slots.StartingSuffix == "" {
		return DefaultStartingSuffix
	}
	return c.Slots.StartingSuffix
}

func (c *Config) findDevice(name string) int {
	for i := range c.Devices {
		if c.Devices[i].Name == name {
			return i
		}
	}
	return -1
}

// Validate checks the configuration for problems that would make some
// partitions unusable. All problems found are reported together.
func (c *Config) Validate() error {
	var err error
	seen := map[string]bool{}
	for i, d := range c.Devices {
		if d.Name == "" {
			err = multierror.Append(err, errors.NotValidf("device %d: empty name", i))
		} else if seen[d.Name] {
			err = multierror.Append(err, errors.NotValidf("device %q: duplicate name", d.Name))
		}
		seen[d.Name] = true
	}
	for i, p := range c.Partitions {
		what := fmt.Sprintf("partition %q", p.Name)
		if p.Name == "" {
			what = fmt.Sprintf("partition %d", i)
			err = multierror.Append(err, errors.NotValidf("%s: empty name", what))
		}
		if c.findDevice(p.Device) < 0 {
			err = multierror.Append(err, errors.NotFoundf("%s: device %q", what, p.Device))
		}
		if p.GPT != nil && p.Fixed != nil {
			err = multierror.Append(err, errors.NotValidf("%s: both gpt and fixed addressing", what))
		}
		if p.GPT != nil && p.GPT.Instance < 0 {
			err = multierror.Append(err, errors.NotValidf("%s: instance %d", what, p.GPT.Instance))
		}
		if p.Slotted && c.Slots.Count == 0 {
			err = multierror.Append(err, errors.NotValidf("%s: slotted without slots", what))
		}
	}
	if serr := c.validateSlots(); serr != nil {
		err = multierror.Append(err, serr)
	}
	return err
}

// validateSlots checks what slot suffixes are derived from: at most one
// slot per letter and a two-character starting suffix.
func (c *Config) validateSlots() error {
	var err error
	if c.Slots.Count < 0 || c.Slots.Count > 26 {
		err = multierror.Append(err, errors.NotValidf("slot count %d", c.Slots.Count))
	}
	if s := c.Slots.StartingSuffix; s != "" && len(s) != 2 {
		err = multierror.Append(err, errors.NotValidf("starting suffix %q", s))
	}
	return err
}
