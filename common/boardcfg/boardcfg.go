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

// Package boardcfg loads board descriptions: the disks a host tool works on,
// the logical devices they back, the partitions on them and the slot setup.
package boardcfg

import (
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/juju/errors"
	goversion "github.com/mcuadros/go-version"
	yaml "gopkg.in/yaml.v2"

	"github.com/mongoose-os/fbflash/backend"
	"github.com/mongoose-os/fbflash/common/blockdev"
	"github.com/mongoose-os/fbflash/common/gpt"
	"github.com/mongoose-os/fbflash/version"
)

type Board struct {
	// Oldest tool version that understands this file.
	MinVersion string      `yaml:"min_version,omitempty"`
	Disks      []Disk      `yaml:"disks"`
	Devices    []Device    `yaml:"devices"`
	Partitions []Partition `yaml:"partitions"`
	Slots      Slots       `yaml:"slots,omitempty"`

	// Directory relative disk paths are resolved against.
	dir string
}

// Disk is an image file or a block device node.
type Disk struct {
	Path      string `yaml:"path"`
	BlockSize uint64 `yaml:"block_size,omitempty"`
	Removable bool   `yaml:"removable,omitempty"`
}

// Device names the disk whose path matches a glob pattern.
type Device struct {
	Name  string `yaml:"name"`
	Match string `yaml:"match"`
}

type Partition struct {
	Name    string  `yaml:"name"`
	FSType  string  `yaml:"fs_type,omitempty"`
	Device  string  `yaml:"device"`
	GPT     *GPTRef `yaml:"gpt,omitempty"`
	Fixed   *Fixed  `yaml:"fixed,omitempty"`
	Slotted bool    `yaml:"slotted,omitempty"`
}

type GPTRef struct {
	// Type alias or GUID, see ParseType.
	Type     string `yaml:"type"`
	Instance int    `yaml:"instance,omitempty"`
}

type Fixed struct {
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

type Slots struct {
	Count          int    `yaml:"count,omitempty"`
	StartingSuffix string `yaml:"starting_suffix,omitempty"`
	KernelType     string `yaml:"kernel_type,omitempty"`
}

var typeAliases = map[string]uuid.UUID{
	"chromeos-kernel": gpt.TypeChromeOSKernel,
	"chromeos-rootfs": gpt.TypeChromeOSRootFS,
	"linux-fs":        gpt.TypeLinuxFS,
	"basic-data":      gpt.TypeBasicData,
	"efi-system":      gpt.TypeEFISystem,
}

// ParseType parses a partition type: one of the aliases chromeos-kernel,
// chromeos-rootfs, linux-fs, basic-data, efi-system or a literal GUID.
func ParseType(s string) (uuid.UUID, error) {
	if t, ok := typeAliases[strings.ToLower(s)]; ok {
		return t, nil
	}
	t, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.NotValidf("partition type %q", s)
	}
	return t, nil
}

// Parse decodes a board description. Unknown keys are an error.
func Parse(data []byte) (*Board, error) {
	var b Board
	if err := yaml.UnmarshalStrict(data, &b); err != nil {
		return nil, errors.Annotatef(err, "invalid board description")
	}
	return &b, nil
}

// Load reads a board file. Relative disk paths in it are relative to the
// file.
func Load(path string) (*Board, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", path)
	}
	b.dir = filepath.Dir(path)
	glog.V(1).Infof("loaded %s: %d disks, %d devices, %d partitions",
		path, len(b.Disks), len(b.Devices), len(b.Partitions))
	return b, nil
}

// CheckVersion fails if the board needs a newer tool. Development builds
// pass.
func (b *Board) CheckVersion(toolVersion string) error {
	if b.MinVersion == "" || !version.LooksLikeVersionNumber(toolVersion) {
		return nil
	}
	if !goversion.Compare(toolVersion, b.MinVersion, ">=") {
		return errors.Errorf("board requires version %s or newer, this is %s", b.MinVersion, toolVersion)
	}
	return nil
}

func (b *Board) DiskPath(d Disk) string {
	if filepath.IsAbs(d.Path) || b.dir == "" {
		return d.Path
	}
	return filepath.Join(b.dir, d.Path)
}

// OpenDisks opens all disks of the board. On error, disks already opened
// are closed.
func (b *Board) OpenDisks() ([]*blockdev.File, error) {
	var res []*blockdev.File
	for _, d := range b.Disks {
		bs := d.BlockSize
		if bs == 0 {
			bs = blockdev.DefaultBlockSize
		}
		f, err := blockdev.OpenFile(b.DiskPath(d), bs, d.Removable)
		if err != nil {
			CloseDisks(res)
			return nil, errors.Trace(err)
		}
		res = append(res, f)
	}
	return res, nil
}

func CloseDisks(disks []*blockdev.File) {
	for _, d := range disks {
		if err := d.Close(); err != nil {
			glog.Errorf("%s: %s", d.Name(), err)
		}
	}
}

// BackendConfig turns the board into a backend configuration over the given
// devices.
func (b *Board) BackendConfig(devs []blockdev.Device) (backend.Config, error) {
	cfg := backend.Config{
		Enumerate: blockdev.Static(devs...),
		Slots: backend.SlotConfig{
			Count:          b.Slots.Count,
			StartingSuffix: b.Slots.StartingSuffix,
		},
	}
	if b.Slots.KernelType != "" {
		t, err := ParseType(b.Slots.KernelType)
		if err != nil {
			return cfg, errors.Annotatef(err, "slots")
		}
		cfg.Slots.KernelType = t
	}
	for _, d := range b.Devices {
		cfg.Devices = append(cfg.Devices, backend.DeviceConfig{
			Name:       d.Name,
			Controller: &blockdev.NameController{Pattern: d.Match},
		})
	}
	for _, p := range b.Partitions {
		pc := backend.PartitionConfig{
			Name:    p.Name,
			FSType:  p.FSType,
			Device:  p.Device,
			Slotted: p.Slotted,
		}
		if p.GPT != nil {
			t, err := ParseType(p.GPT.Type)
			if err != nil {
				return cfg, errors.Annotatef(err, "partition %q", p.Name)
			}
			pc.GPT = &backend.GPTLocation{Type: t, Instance: p.GPT.Instance}
		}
		if p.Fixed != nil {
			pc.Fixed = &backend.FixedRange{Base: p.Fixed.Base, Size: p.Fixed.Size}
		}
		cfg.Partitions = append(cfg.Partitions, pc)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Trace(err)
	}
	return cfg, nil
}

// Example returns a board description to start from.
func Example() *Board {
	return &Board{
		MinVersion: "1.0",
		Disks: []Disk{
			{Path: "emmc.img", BlockSize: 512},
			{Path: "spi.img", BlockSize: 4096},
		},
		Devices: []Device{
			{Name: "mmc", Match: "emmc*"},
			{Name: "flash", Match: "spi*"},
		},
		Partitions: []Partition{
			{Name: "kernel-a", Device: "mmc", GPT: &GPTRef{Type: "chromeos-kernel"}, Slotted: true},
			{Name: "kernel-b", Device: "mmc", GPT: &GPTRef{Type: "chromeos-kernel", Instance: 1}, Slotted: true},
			{Name: "root-a", FSType: "ext2", Device: "mmc", GPT: &GPTRef{Type: "chromeos-rootfs"}, Slotted: true},
			{Name: "root-b", FSType: "ext2", Device: "mmc", GPT: &GPTRef{Type: "chromeos-rootfs", Instance: 1}, Slotted: true},
			{Name: "data", FSType: "ext4", Device: "mmc", GPT: &GPTRef{Type: "linux-fs"}},
			{Name: "firmware", Device: "flash", Fixed: &Fixed{Base: 0, Size: 64}},
		},
		Slots: Slots{Count: 2, StartingSuffix: "-a"},
	}
}
