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
	"strings"

	"github.com/juju/errors"
)

// PartitionBase is a partition name with any slot suffix removed.
type PartitionBase struct {
	Name    string
	Slotted bool
}

// BaseNames returns the distinct partition base names: non-slotted
// partitions as they are, and one entry per slotted group, taken from its
// first slot's partition. E.g. kernel-a, kernel-b, cache yield kernel and
// cache. The list is computed once.
func (b *Backend) BaseNames() ([]PartitionBase, error) {
	if b.bases != nil {
		return b.bases, nil
	}
	if len(b.partitions) == 0 {
		return nil, errors.Annotatef(StatusPartitionNotFound, "no partitions configured")
	}
	first := b.cfg.startingSuffix()
	var bases []PartitionBase
	for _, p := range b.partitions {
		if !p.Slotted {
			bases = append(bases, PartitionBase{Name: p.Name})
			continue
		}
		if len(p.Name) <= len(first) || !strings.HasSuffix(p.Name, first) {
			continue
		}
		bases = append(bases, PartitionBase{Name: p.Name[:len(p.Name)-len(first)], Slotted: true})
	}
	if len(bases) == 0 {
		return nil, errors.Annotatef(StatusPartitionNotFound, "no partition base names")
	}
	b.bases = bases
	return bases, nil
}

// HasSlot reports whether base names a slotted partition group.
func (b *Backend) HasSlot(base string) (bool, error) {
	bases, err := b.BaseNames()
	if err != nil {
		return false, errors.Trace(err)
	}
	for _, pb := range bases {
		if pb.Name == base {
			return pb.Slotted, nil
		}
	}
	return false, errors.Annotatef(StatusPartitionNotFound, "%s", base)
}
