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

	"github.com/mongoose-os/fbflash/common/blockdev"
)

const erasePattern = 0xffffffff

// ErasePartition erases the named partition, natively if the device can do
// it, otherwise by filling it with 0xff.
func (b *Backend) ErasePartition(name string) error {
	ext, err := b.Resolve(name)
	if err != nil {
		return errors.Trace(err)
	}
	dev := ext.Device
	glog.Infof("Erasing %s (%d blocks at %d)...", name, ext.Length, ext.Start)
	if e, ok := dev.(blockdev.Eraser); ok {
		n, err := e.Erase(ext.Start, ext.Length)
		if err == nil && n == ext.Length {
			return nil
		}
		glog.Warningf("%s: native erase covered %d of %d blocks (err: %v), filling", name, n, ext.Length, err)
	}
	n, err := dev.FillWrite(ext.Start, ext.Length, erasePattern)
	if err != nil {
		return errors.Annotatef(StatusWrite, "%s: %s", name, err)
	}
	if n != ext.Length {
		return errors.Annotatef(StatusWrite, "%s: filled %d blocks of %d", name, n, ext.Length)
	}
	return nil
}
