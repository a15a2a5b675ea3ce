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

// Package blockdev defines the block device abstraction used by the flashing
// backend, plus in-memory and file-backed implementations.
//
// All addresses and counts are in device blocks (LBAs). Write-style
// operations return the number of blocks actually processed; callers treat a
// short count as a failure of the whole operation.
package blockdev

import (
	"path/filepath"

	"github.com/juju/errors"
)

// Device is a block-addressed storage device.
type Device interface {
	Name() string
	BlockSize() uint64
	BlockCount() uint64
	// Removable devices are never used as flashing targets.
	Removable() bool
	ReadBlocks(lba, count uint64, buf []byte) (uint64, error)
	WriteBlocks(lba, count uint64, buf []byte) (uint64, error)
	// FillWrite writes the 4-byte little-endian pattern over count blocks
	// without a bulk data transfer from the caller.
	FillWrite(lba, count uint64, pattern uint32) (uint64, error)
}

// Eraser is implemented by devices with a native erase operation.
type Eraser interface {
	Erase(lba, count uint64) (uint64, error)
}

// Controller decides whether it owns an enumerated device.
type Controller interface {
	Owns(dev Device) bool
}

// ControllerFunc adapts a plain function to a Controller.
type ControllerFunc func(dev Device) bool

func (f ControllerFunc) Owns(dev Device) bool { return f(dev) }

// NameController owns devices whose name, or the last element of it,
// matches a glob pattern.
type NameController struct {
	Pattern string
}

func (c *NameController) Owns(dev Device) bool {
	if ok, _ := filepath.Match(c.Pattern, dev.Name()); ok {
		return true
	}
	ok, _ := filepath.Match(c.Pattern, filepath.Base(dev.Name()))
	return ok
}

// Enumerator lists the devices currently attached to the system.
type Enumerator func() ([]Device, error)

// Static returns an Enumerator over a fixed device list.
func Static(devs ...Device) Enumerator {
	return func() ([]Device, error) {
		return devs, nil
	}
}

// Fixed returns the non-removable devices from devs, preserving order.
func Fixed(devs []Device) []Device {
	var res []Device
	for _, d := range devs {
		if !d.Removable() {
			res = append(res, d)
		}
	}
	return res
}

// checkRange validates a block range against the device geometry and, if buf
// is not nil, against the buffer size.
func checkRange(d Device, lba, count uint64, buf []byte) error {
	if lba > d.BlockCount() || count > d.BlockCount()-lba {
		return errors.Errorf("%s: range %d+%d is outside of the device (%d blocks)",
			d.Name(), lba, count, d.BlockCount())
	}
	if buf != nil && uint64(len(buf)) < count*d.BlockSize() {
		return errors.Errorf("%s: buffer too small: %d < %d", d.Name(), len(buf), count*d.BlockSize())
	}
	return nil
}

// fillPattern fills buf with the little-endian encoding of pattern.
func fillPattern(buf []byte, pattern uint32) {
	for i := range buf {
		buf[i] = byte(pattern >> (8 * uint(i%4)))
	}
}
