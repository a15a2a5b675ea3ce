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

// Package backend implements the storage side of a fastboot-style flashing
// service: it resolves partition names to block ranges, writes raw and
// sparse images, erases partitions and manages A/B boot slots.
//
// A Backend is not safe for concurrent use. Every public method initializes
// the backend on first use; a failed initialization is retried by the next
// call.
package backend

import (
	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/common/blockdev"
)

type Backend struct {
	cfg        Config
	partitions []PartitionConfig

	// Bound device handles, parallel to cfg.Devices. Set once by init.
	devs        []blockdev.Device
	initialized bool

	bases []PartitionBase
}

// Extent is a resolved partition: a range of LBAs on a bound device.
type Extent struct {
	Device    blockdev.Device
	Partition *PartitionConfig
	Start     uint64
	Length    uint64
}

// New creates a backend for cfg. Nothing is touched until the first call.
func New(cfg Config) *Backend {
	b := &Backend{cfg: cfg}
	b.cfg.Devices = append([]DeviceConfig(nil), cfg.Devices...)
	b.partitions = make([]PartitionConfig, len(cfg.Partitions))
	for i, p := range cfg.Partitions {
		if p.Fixed != nil {
			f := *p.Fixed
			p.Fixed = &f
		}
		if p.GPT != nil {
			g := *p.GPT
			p.GPT = &g
		}
		b.partitions[i] = p
	}
	if b.cfg.OpenTable == nil {
		b.cfg.OpenTable = OpenGPT
	}
	return b
}

func (b *Backend) init() error {
	if b.initialized {
		return nil
	}
	// Slot suffixes are derived from this, so a bad slot setup is refused
	// before any table is touched.
	if err := b.cfg.validateSlots(); err != nil {
		return errors.Annotatef(StatusInvalidSlotIndex, "slot configuration: %s", err)
	}
	if len(b.cfg.Devices) == 0 {
		return errors.Annotatef(StatusDeviceNotFound, "no block devices configured")
	}
	if b.cfg.Enumerate == nil {
		return errors.Annotatef(StatusDeviceNotFound, "no device enumerator")
	}
	all, err := b.cfg.Enumerate()
	if err != nil {
		return errors.Annotatef(StatusDeviceNotFound, "enumeration failed: %s", err)
	}
	fixed := blockdev.Fixed(all)
	if len(fixed) == 0 {
		return errors.Annotatef(StatusDeviceNotFound, "no fixed block devices")
	}
	devs := make([]blockdev.Device, len(b.cfg.Devices))
	for i, dc := range b.cfg.Devices {
		if dc.Controller == nil {
			return errors.Annotatef(StatusDeviceNotFound, "%s: no controller", dc.Name)
		}
		for _, d := range fixed {
			if dc.Controller.Owns(d) {
				devs[i] = d
				break
			}
		}
		if devs[i] == nil {
			return errors.Annotatef(StatusDeviceNotFound, "%s: no matching device", dc.Name)
		}
		glog.V(1).Infof("%s -> %s (%d x %d)", dc.Name, devs[i].Name(), devs[i].BlockCount(), devs[i].BlockSize())
	}
	if len(b.partitions) == 0 {
		return errors.Annotatef(StatusPartitionNotFound, "no partitions configured")
	}
	b.devs = devs
	b.initialized = true
	return nil
}

// Init initializes the backend if it has not been yet.
func (b *Backend) Init() error {
	return errors.Trace(b.init())
}

// BindController sets the controller of a configured device. It must be
// called before the backend is initialized.
func (b *Backend) BindController(device string, ctrl blockdev.Controller) error {
	if b.initialized {
		return errors.Errorf("%s: devices are already bound", device)
	}
	i := b.cfg.findDevice(device)
	if i < 0 {
		return errors.Annotatef(StatusDeviceNotFound, "%s", device)
	}
	b.cfg.Devices[i].Controller = ctrl
	return nil
}

// FillPartition sets the extent of a fixed-addressed partition whose range
// is only known at run time. It can only be set once.
func (b *Backend) FillPartition(name string, base, size uint64) error {
	p := b.findPartition(name)
	if p == nil {
		return errors.Annotatef(StatusPartitionNotFound, "%s", name)
	}
	if p.IsGPT() {
		return errors.NotValidf("%s: GPT partition extent", name)
	}
	if p.Fixed != nil {
		return errors.AlreadyExistsf("%s: extent", name)
	}
	p.Fixed = &FixedRange{Base: base, Size: size}
	return nil
}

func (b *Backend) findPartition(name string) *PartitionConfig {
	for i := range b.partitions {
		if b.partitions[i].Name == name {
			return &b.partitions[i]
		}
	}
	return nil
}

// Partition returns the configuration of the named partition.
func (b *Backend) Partition(name string) (*PartitionConfig, error) {
	if err := b.init(); err != nil {
		return nil, errors.Trace(err)
	}
	p := b.findPartition(name)
	if p == nil {
		return nil, errors.Annotatef(StatusPartitionNotFound, "%s", name)
	}
	pc := *p
	return &pc, nil
}

// Partitions returns all configured partitions.
func (b *Backend) Partitions() []PartitionConfig {
	return append([]PartitionConfig(nil), b.partitions...)
}

// Devices returns the names of all configured devices.
func (b *Backend) Devices() []string {
	var res []string
	for _, d := range b.cfg.Devices {
		res = append(res, d.Name)
	}
	return res
}

// Device returns the device bound to a configured device name.
func (b *Backend) Device(name string) (blockdev.Device, error) {
	if err := b.init(); err != nil {
		return nil, errors.Trace(err)
	}
	i := b.cfg.findDevice(name)
	if i < 0 || b.devs[i] == nil {
		return nil, errors.Annotatef(StatusDeviceNotFound, "%s", name)
	}
	return b.devs[i], nil
}

// PartSizeBytes returns the size of a partition in bytes, resolving it
// first. It returns 0 with the resolution error if that fails.
func (b *Backend) PartSizeBytes(name string) (uint64, error) {
	ext, err := b.Resolve(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return ext.Length * ext.Device.BlockSize(), nil
}

// PartFSType returns the configured file system type of a partition, ""
// if it has none or is not configured.
func (b *Backend) PartFSType(name string) (string, error) {
	p, err := b.Partition(name)
	if err != nil {
		return "", errors.Trace(err)
	}
	return p.FSType, nil
}

// DeviceSizeBytes returns the capacity of a configured device, 0 if the
// device is not found.
func (b *Backend) DeviceSizeBytes(name string) (uint64, error) {
	d, err := b.Device(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return d.BlockCount() * d.BlockSize(), nil
}

// DeviceSizeBlocks is DeviceSizeBytes in device blocks.
func (b *Backend) DeviceSizeBlocks(name string) (uint64, error) {
	d, err := b.Device(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return d.BlockCount(), nil
}
