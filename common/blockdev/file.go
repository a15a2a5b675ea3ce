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
package blockdev

import (
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flock "github.com/theckman/go-flock"
)

const (
	DefaultBlockSize = 512

	// Upper bound on the scratch buffer used by FillWrite.
	maxFillChunk = 1 << 20
)

// File is a device backed by a disk image or a block device node.
// The path is locked exclusively for as long as the device is open.
type File struct {
	path       string
	f          *os.File
	lock       *flock.Flock
	blockSize  uint64
	blockCount uint64
	removable  bool
}

// OpenFile opens path as a block device with the given block size.
// Trailing bytes that do not make up a whole block are not addressable.
func OpenFile(path string, blockSize uint64, removable bool) (*File, error) {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	// The lock would otherwise create a missing image as an empty file.
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Annotatef(err, "%s", path)
	}
	fl := flock.NewFlock(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Annotatef(err, "%s: failed to lock", path)
	}
	if !locked {
		return nil, errors.Errorf("%s: in use by another process", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		fl.Unlock()
		return nil, errors.Annotatef(err, "%s: failed to open", path)
	}
	size, err := deviceSize(f)
	if err != nil {
		f.Close()
		fl.Unlock()
		return nil, errors.Annotatef(err, "%s: failed to get size", path)
	}
	d := &File{
		path:       path,
		f:          f,
		lock:       fl,
		blockSize:  blockSize,
		blockCount: size / blockSize,
		removable:  removable,
	}
	glog.V(1).Infof("%s: %d blocks of %d bytes", path, d.blockCount, blockSize)
	return d, nil
}

func (d *File) Name() string       { return d.path }
func (d *File) BlockSize() uint64  { return d.blockSize }
func (d *File) BlockCount() uint64 { return d.blockCount }
func (d *File) Removable() bool    { return d.removable }

func (d *File) ReadBlocks(lba, count uint64, buf []byte) (uint64, error) {
	if err := checkRange(d, lba, count, buf); err != nil {
		return 0, errors.Trace(err)
	}
	n, err := d.f.ReadAt(buf[:count*d.blockSize], int64(lba*d.blockSize))
	return uint64(n) / d.blockSize, errors.Trace(err)
}

func (d *File) WriteBlocks(lba, count uint64, buf []byte) (uint64, error) {
	if err := checkRange(d, lba, count, buf); err != nil {
		return 0, errors.Trace(err)
	}
	n, err := d.f.WriteAt(buf[:count*d.blockSize], int64(lba*d.blockSize))
	return uint64(n) / d.blockSize, errors.Trace(err)
}

func (d *File) FillWrite(lba, count uint64, pattern uint32) (uint64, error) {
	if err := checkRange(d, lba, count, nil); err != nil {
		return 0, errors.Trace(err)
	}
	chunkBlocks := uint64(maxFillChunk) / d.blockSize
	if chunkBlocks == 0 {
		chunkBlocks = 1
	}
	if chunkBlocks > count {
		chunkBlocks = count
	}
	buf := make([]byte, chunkBlocks*d.blockSize)
	fillPattern(buf, pattern)
	done := uint64(0)
	for done < count {
		n := count - done
		if n > chunkBlocks {
			n = chunkBlocks
		}
		written, err := d.WriteBlocks(lba+done, n, buf)
		done += written
		if err != nil {
			return done, errors.Trace(err)
		}
		if written != n {
			break
		}
	}
	return done, nil
}

// Sync flushes written data to stable storage.
func (d *File) Sync() error {
	return errors.Trace(syncData(d.f))
}

// Close syncs, closes and unlocks the device.
func (d *File) Close() error {
	serr := d.Sync()
	cerr := d.f.Close()
	if err := d.lock.Unlock(); err != nil {
		glog.Warningf("%s: unlock failed: %s", d.path, err)
	}
	if serr != nil {
		return errors.Trace(serr)
	}
	return errors.Trace(cerr)
}
