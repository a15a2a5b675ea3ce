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
	"sort"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/backend"
	"github.com/mongoose-os/fbflash/cli/flags"
	"github.com/mongoose-os/fbflash/cli/ourutil"
	"github.com/mongoose-os/fbflash/common/gpt"
)

func gptInitCmd(args []string) error {
	if err := needArgs(args, "device"); err != nil {
		return errors.Trace(err)
	}
	s, err := openSession()
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()
	dev, err := s.be.Device(args[0])
	if err != nil {
		return errors.Trace(err)
	}
	if !ourutil.Confirm(*flags.Force, "Overwrite the partition table of %s (%s)?", args[0], dev.Name()) {
		return errors.Errorf("cancelled")
	}
	entries, err := gptInit(s.be, args[0], *flags.GPTPartSize)
	if err != nil {
		return errors.Trace(err)
	}
	for _, e := range entries {
		ourutil.Reportf("  %-16s %d-%d %s", e.Name, e.FirstLBA, e.LastLBA, e.TypeGUID)
	}
	return nil
}

// gptInit writes a new partition table to a device, with one partSize-block
// entry for each GPT-addressed partition on it. Entries of the same type are
// laid out in instance order so that the Nth entry lookup finds them.
func gptInit(be *backend.Backend, device string, partSize uint64) ([]gpt.Entry, error) {
	if partSize == 0 {
		return nil, errors.NotValidf("partition size 0")
	}
	dev, err := be.Device(device)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var parts []backend.PartitionConfig
	for _, p := range be.Partitions() {
		if p.Device == device && p.IsGPT() {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, errors.NotFoundf("GPT partitions on %s", device)
	}
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].GPT.Instance < parts[j].GPT.Instance
	})

	tbl, err := gpt.New(dev)
	if err != nil {
		return nil, errors.Trace(err)
	}
	seen := map[uuid.UUID]int{}
	var res []gpt.Entry
	for _, p := range parts {
		if n := seen[p.GPT.Type]; p.GPT.Instance != n {
			return nil, errors.NotValidf("%s: instance %d of %s, expected %d", p.Name, p.GPT.Instance, p.GPT.Type, n)
		}
		seen[p.GPT.Type]++
		e, err := tbl.Add(p.Name, p.GPT.Type, partSize)
		if err != nil {
			return nil, errors.Annotatef(err, "%s", p.Name)
		}
		res = append(res, e)
	}
	if err := tbl.Close(); err != nil {
		return nil, errors.Trace(err)
	}
	return res, nil
}
