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
package main

import (
	"io/ioutil"

	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/cli/flags"
	"github.com/mongoose-os/fbflash/cli/ourutil"
	"github.com/mongoose-os/fbflash/common/ourio"
	"github.com/mongoose-os/fbflash/common/sparse"
)

func mksparseCmd(args []string) error {
	if err := needArgs(args, "raw image", "sparse image"); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(mksparse(args[0], args[1], *flags.SparseBlockSize))
}

func mksparse(in, out string, blockSize uint32) error {
	data, err := ioutil.ReadFile(in)
	if err != nil {
		return errors.Trace(err)
	}
	if sparse.IsSparse(data) {
		return errors.Errorf("%s is already a sparse image", in)
	}
	img, err := sparse.FromRaw(data, blockSize)
	if err != nil {
		return errors.Annotatef(err, "%s", in)
	}
	hdr, err := sparse.ParseHeader(img)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := ourio.WriteFileIfDifferent(out, img, 0644); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("%s: %d bytes -> %s: %d bytes, %d blocks in %d chunks",
		in, len(data), out, len(img), hdr.TotalBlocks, hdr.TotalChunks)
	return nil
}
