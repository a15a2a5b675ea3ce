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
	"github.com/golang/glog"
	"github.com/juju/errors"
)

// Resolve maps a partition name to the range of blocks it occupies.
func (b *Backend) Resolve(name string) (*Extent, error) {
	if err := b.init(); err != nil {
		return nil, errors.Trace(err)
	}
	p := b.findPartition(name)
	if p == nil {
		return nil, errors.Annotatef(StatusPartitionNotFound, "%s", name)
	}
	di := b.cfg.findDevice(p.Device)
	if di < 0 || b.devs[di] == nil {
		return nil, errors.Annotatef(StatusDeviceNotFound, "%s: device %q", name, p.Device)
	}
	ext := &Extent{Device: b.devs[di], Partition: p}

	if !p.IsGPT() {
		if p.Fixed == nil {
			return nil, errors.Annotatef(StatusPartitionNotFound, "%s: extent not set", name)
		}
		ext.Start, ext.Length = p.Fixed.Base, p.Fixed.Size
		return ext, nil
	}

	t, err := b.cfg.OpenTable(ext.Device)
	if err != nil {
		return nil, errors.Annotatef(StatusGPT, "%s: %s", name, err)
	}
	defer func() {
		if err := t.Close(); err != nil {
			glog.Errorf("%s: failed to close partition table: %s", ext.Device.Name(), err)
		}
	}()
	e := t.NthEntry(p.GPT.Type, p.GPT.Instance)
	if e == nil {
		return nil, errors.Annotatef(StatusGPT, "%s: no entry %d of type %s", name, p.GPT.Instance, p.GPT.Type)
	}
	ext.Start, ext.Length = e.StartLBA(), e.SizeLBA()
	glog.V(1).Infof("%s: %s %d+%d", name, ext.Device.Name(), ext.Start, ext.Length)
	return ext, nil
}
