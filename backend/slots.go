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

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// SlotFlagKind selects the per-slot value returned by SlotFlag.
type SlotFlagKind int

const (
	SlotSuccessful SlotFlagKind = iota
	SlotUnbootable
	SlotRetryCount
)

func (k SlotFlagKind) String() string {
	switch k {
	case SlotSuccessful:
		return "successful"
	case SlotUnbootable:
		return "unbootable"
	case SlotRetryCount:
		return "retry-count"
	default:
		return fmt.Sprintf("???(%d)", int(k))
	}
}

func (b *Backend) SlotCount() int {
	return b.cfg.Slots.Count
}

// SlotSuffix returns the partition name suffix of slot i: with the default
// starting suffix, "-a" for 0, "-b" for 1 and so on. The slot configuration
// must have passed initialization.
func (b *Backend) SlotSuffix(i int) string {
	s := b.cfg.startingSuffix()
	return fmt.Sprintf("%c%c", s[0], s[1]+byte(i))
}

// SlotIndex is the inverse of SlotSuffix. It accepts the full suffix or just
// the slot letter.
func (b *Backend) SlotIndex(suffix string) (int, error) {
	if err := b.init(); err != nil {
		return -1, errors.Trace(err)
	}
	for i := 0; i < b.cfg.Slots.Count; i++ {
		s := b.SlotSuffix(i)
		if suffix == s || suffix == s[1:] {
			return i, nil
		}
	}
	return -1, errors.Annotatef(StatusInvalidSlotIndex, "%q", suffix)
}

func (b *Backend) checkSlotIndex(index int) error {
	if err := b.init(); err != nil {
		return errors.Trace(err)
	}
	if index < 0 || index >= b.cfg.Slots.Count {
		return errors.Annotatef(StatusInvalidSlotIndex, "%d (%d slots)", index, b.cfg.Slots.Count)
	}
	return nil
}

// openSlotTable opens the partition table holding slot state: the one on
// the device of the first partition with the kernel type.
func (b *Backend) openSlotTable() (Table, error) {
	if err := b.init(); err != nil {
		return nil, errors.Trace(err)
	}
	kt := b.cfg.kernelType()
	for _, p := range b.partitions {
		if !p.IsGPT() || p.GPT.Type != kt {
			continue
		}
		di := b.cfg.findDevice(p.Device)
		if di < 0 {
			return nil, errors.Annotatef(StatusDeviceNotFound, "%s: device %q", p.Name, p.Device)
		}
		t, err := b.cfg.OpenTable(b.devs[di])
		if err != nil {
			return nil, errors.Annotatef(StatusGPT, "%s", err)
		}
		return t, nil
	}
	return nil, errors.Annotatef(StatusGPT, "no partition of type %s", kt)
}

func closeTable(t Table) {
	if err := t.Close(); err != nil {
		glog.Errorf("failed to close partition table: %s", err)
	}
}

// CurrentSlot returns the slot that will boot: the highest priority one
// among those marked successful, the lowest index on a tie. Returns -1 if
// no slot qualifies.
func (b *Backend) CurrentSlot() (int, error) {
	if b.cfg.Slots.Count == 0 {
		return -1, nil
	}
	t, err := b.openSlotTable()
	if err != nil {
		return -1, errors.Trace(err)
	}
	defer closeTable(t)
	kt := b.cfg.kernelType()
	cur, curPrio := -1, -1
	for i := 0; i < b.cfg.Slots.Count; i++ {
		e := t.NthEntry(kt, i)
		if e == nil {
			break
		}
		if e.Successful() && e.Priority() > curPrio {
			cur, curPrio = i, e.Priority()
		}
	}
	return cur, nil
}

// SlotFlag returns one of the per-slot values: 0 or 1 for SlotSuccessful
// and SlotUnbootable, the number of tries left for SlotRetryCount. It
// returns -1 with an error if the slot cannot be read.
func (b *Backend) SlotFlag(kind SlotFlagKind, index int) (int, error) {
	if err := b.checkSlotIndex(index); err != nil {
		return -1, errors.Trace(err)
	}
	t, err := b.openSlotTable()
	if err != nil {
		return -1, errors.Trace(err)
	}
	defer closeTable(t)
	e := t.NthEntry(b.cfg.kernelType(), index)
	if e == nil {
		return -1, errors.Annotatef(StatusGPT, "no kernel entry for slot %d", index)
	}
	switch kind {
	case SlotSuccessful:
		return boolToInt(e.Successful()), nil
	case SlotUnbootable:
		return boolToInt(!e.Successful() && e.Tries() == 0), nil
	case SlotRetryCount:
		return e.Tries(), nil
	default:
		return -1, errors.NotValidf("slot flag %s", kind)
	}
}

// SetActiveSlot makes slot index the one to boot and marks all the other
// slots unbootable. All slot entries are looked up before anything is
// changed. The target is promoted before the others are invalidated, and
// the table goes out primary first, so if the write is interrupted the
// device still has a bootable slot: the old one, when the primary copy did
// not make it and the backup is used, or the new one.
//
// A GPTError does not always mean the change was lost. Once the primary
// header is written the new slot is active even if writing the backup copy
// then fails; CurrentSlot tells which slot the device will boot.
func (b *Backend) SetActiveSlot(index int) error {
	if err := b.checkSlotIndex(index); err != nil {
		return errors.Trace(err)
	}
	t, err := b.openSlotTable()
	if err != nil {
		return errors.Trace(err)
	}
	kt := b.cfg.kernelType()
	entries := make([]TableEntry, b.cfg.Slots.Count)
	for i := range entries {
		if entries[i] = t.NthEntry(kt, i); entries[i] == nil {
			closeTable(t)
			return errors.Annotatef(StatusGPT, "no kernel entry for slot %d", i)
		}
	}
	entries[index].MarkActive()
	for i, e := range entries {
		if i != index {
			e.MarkInvalid()
		}
	}
	if err := t.Close(); err != nil {
		return errors.Annotatef(StatusGPT, "%s", err)
	}
	glog.Infof("Slot %s is now active", b.SlotSuffix(index))
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
