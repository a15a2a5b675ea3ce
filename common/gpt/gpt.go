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

// Package gpt reads and updates GUID partition tables on block devices.
//
// Decoding, verification and encoding are done by go-blockdevice's gpt
// package. This package runs it over a blockdev.Device, exposes the ChromeOS
// kernel attributes of the entries and decides the order in which a
// modified table reaches the device: Close writes the primary entries, the
// primary header, the backup entries and the backup header, in that order.
// Each header covers its entries with a CRC, so an interrupted flush leaves
// at least one consistent copy, and Open falls back to the backup when the
// primary does not verify.
package gpt

import (
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/juju/errors"
	partgpt "github.com/siderolabs/go-blockdevice/v2/partitioning/gpt"
	"golang.org/x/text/encoding/unicode"

	"github.com/mongoose-os/fbflash/common/blockdev"
)

const (
	Signature = "EFI PART"

	primaryHeaderLBA = 1
	// Where tables written by this package keep the primary entries.
	defaultEntriesLBA = 2
	entryNameSize     = 72
)

// Table is an open partition table.
type Table struct {
	dev blockdev.Device
	j   *journal
	pt  *partgpt.Table

	// Primary entries location of the table as found on the device.
	entriesLBA uint64
	modified   bool
	closed     bool
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Open reads and verifies the partition table of dev.
func Open(dev blockdev.Device) (*Table, error) {
	if dev.BlockCount() < 3 {
		return nil, errors.Errorf("%s: device too small for a partition table", dev.Name())
	}
	j := newJournal(dev)
	pt, err := partgpt.Read(j)
	if err != nil {
		return nil, errors.Annotatef(err, "%s: no valid partition table", dev.Name())
	}
	t := &Table{dev: dev, j: j, pt: pt, entriesLBA: defaultEntriesLBA}
	if lba, ok := j.primaryEntriesLBA(); ok {
		t.entriesLBA = lba
	}
	for i, e := range t.Entries() {
		glog.V(2).Infof("gpt %d %q %s %d @ %d attrs 0x%x", i, e.Name, e.TypeGUID, e.SizeLBA(), e.FirstLBA, e.Flags)
	}
	return t, nil
}

// New creates an empty table for dev. Nothing is written until Close.
func New(dev blockdev.Device) (*Table, error) {
	j := newJournal(dev)
	pt, err := partgpt.New(j)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", dev.Name())
	}
	return &Table{dev: dev, j: j, pt: pt, entriesLBA: defaultEntriesLBA, modified: true}, nil
}

// Add allocates a partition of the given size in blocks in the free space
// of the table.
func (t *Table) Add(name string, typ uuid.UUID, blocks uint64) (Entry, error) {
	if typ == TypeUnused {
		return Entry{}, errors.Errorf("%q: entry has no type", name)
	}
	if blocks == 0 {
		return Entry{}, errors.Errorf("%q: empty partition", name)
	}
	if err := checkName(name); err != nil {
		return Entry{}, errors.Trace(err)
	}
	_, p, err := t.pt.AllocatePartition(blocks*t.dev.BlockSize(), name, typ)
	if err != nil {
		return Entry{}, errors.Annotatef(err, "%q", name)
	}
	t.modified = true
	for _, e := range t.Entries() {
		if e.PartGUID == p.PartGUID {
			return e, nil
		}
	}
	return Entry{}, errors.Errorf("%q: allocated entry not found", name)
}

func checkName(s string) error {
	name, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return errors.Annotatef(err, "%q: bad name", s)
	}
	if len(name) > entryNameSize {
		return errors.Errorf("%q: name too long", s)
	}
	return nil
}

// Entries returns the used entries of the table, in table order.
func (t *Table) Entries() []Entry {
	var res []Entry
	for _, p := range t.pt.Partitions() {
		if p != nil && p.TypeGUID != TypeUnused {
			res = append(res, Entry{p})
		}
	}
	return res
}

// NthEntry returns the n-th (zero-based) entry of the given type, or nil.
// The returned entry may be modified; call Update after changing it.
func (t *Table) NthEntry(typ uuid.UUID, n int) *Entry {
	if n < 0 {
		return nil
	}
	for _, e := range t.Entries() {
		if e.TypeGUID != typ {
			continue
		}
		if n == 0 {
			return &e
		}
		n--
	}
	return nil
}

// Update marks the table modified so that Close writes it back.
func (t *Table) Update() {
	t.modified = true
}

// Modified reports whether Close will write the table.
func (t *Table) Modified() bool {
	return t.modified
}

// Close writes the table back if it was modified. The table must not be
// used afterwards.
//
// A table whose primary entries are not where this package puts them is
// never rewritten: that would move the entry array over whatever the device
// keeps in its place.
func (t *Table) Close() error {
	if t.closed {
		return errors.Errorf("%s: table already closed", t.dev.Name())
	}
	t.closed = true
	if !t.modified {
		return nil
	}
	if t.entriesLBA != defaultEntriesLBA {
		return errors.Errorf("%s: partition entries at LBA %d, refusing to move them to %d",
			t.dev.Name(), t.entriesLBA, defaultEntriesLBA)
	}
	glog.V(1).Infof("%s: writing partition table", t.dev.Name())
	if err := t.pt.Write(); err != nil {
		return errors.Annotatef(err, "%s: encoding partition table", t.dev.Name())
	}
	if err := t.j.commit(); err != nil {
		return errors.Annotatef(err, "%s: writing partition table", t.dev.Name())
	}
	return nil
}
