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
	"time"

	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/backend"
	"github.com/mongoose-os/fbflash/cli/flags"
	"github.com/mongoose-os/fbflash/cli/ourutil"
	"github.com/mongoose-os/fbflash/common/sparse"
)

func flashCmd(args []string) error {
	if err := needArgs(args, "partition", "image"); err != nil {
		return errors.Trace(err)
	}
	part, fn := args[0], args[1]
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return errors.Trace(err)
	}
	s, err := openSession()
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()
	return errors.Trace(flashImage(s.be, part, fn, data))
}

func flashImage(be *backend.Backend, part, fn string, data []byte) error {
	kind := "raw"
	if sparse.IsSparse(data) {
		kind = "sparse"
	}
	ourutil.Reportf("Writing %s (%s, %d bytes) to %s...", fn, kind, len(data), part)
	start := time.Now()
	if err := be.WritePartition(part, data); err != nil {
		return errors.Annotatef(err, "%s (%s)", part, backend.StatusOf(err).Kind())
	}
	ourutil.Reportf("Wrote %s in %.2fs", part, time.Since(start).Seconds())
	return nil
}

func eraseCmd(args []string) error {
	if err := needArgs(args, "partition"); err != nil {
		return errors.Trace(err)
	}
	s, err := openSession()
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()
	ext, err := s.be.Resolve(args[0])
	if err != nil {
		return errors.Trace(err)
	}
	if !ourutil.Confirm(*flags.Force, "Erase %s (%d blocks on %s)?", args[0], ext.Length, ext.Device.Name()) {
		return errors.Errorf("cancelled")
	}
	return errors.Trace(s.be.ErasePartition(args[0]))
}
