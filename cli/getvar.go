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
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/backend"
	"github.com/mongoose-os/fbflash/version"
)

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// parseSlot accepts a slot index or suffix: "1", "b" and "-b" are the same
// slot.
func parseSlot(be *backend.Backend, s string) (int, error) {
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	i, err := be.SlotIndex(s)
	return i, errors.Trace(err)
}

func slotFlag(be *backend.Backend, kind backend.SlotFlagKind, arg string) (string, error) {
	idx, err := parseSlot(be, arg)
	if err != nil {
		return "", errors.Trace(err)
	}
	v, err := be.SlotFlag(kind, idx)
	if err != nil {
		return "", errors.Trace(err)
	}
	if kind == backend.SlotRetryCount {
		return strconv.Itoa(v), nil
	}
	return yesNo(v == 1), nil
}

// getvar returns the value of a fastboot variable.
func getvar(be *backend.Backend, name string) (string, error) {
	v, arg := name, ""
	if i := strings.IndexByte(name, ':'); i >= 0 {
		v, arg = name[:i], name[i+1:]
	}
	switch v {
	case "version":
		return version.GetVersion(), nil
	case "partition-size":
		n, err := be.PartSizeBytes(arg)
		return fmt.Sprintf("0x%x", n), errors.Trace(err)
	case "partition-type":
		t, err := be.PartFSType(arg)
		return t, errors.Trace(err)
	case "bdev-size":
		n, err := be.DeviceSizeBytes(arg)
		return fmt.Sprintf("0x%x", n), errors.Trace(err)
	case "bdev-blocks":
		n, err := be.DeviceSizeBlocks(arg)
		return strconv.FormatUint(n, 10), errors.Trace(err)
	case "slot-count":
		return strconv.Itoa(be.SlotCount()), nil
	case "current-slot":
		cur, err := be.CurrentSlot()
		if err != nil {
			return "", errors.Trace(err)
		}
		if cur < 0 {
			return "", errors.NotFoundf("bootable slot")
		}
		return be.SlotSuffix(cur)[1:], nil
	case "slot-successful":
		return slotFlag(be, backend.SlotSuccessful, arg)
	case "slot-unbootable":
		return slotFlag(be, backend.SlotUnbootable, arg)
	case "slot-retry-count":
		return slotFlag(be, backend.SlotRetryCount, arg)
	case "has-slot":
		ok, err := be.HasSlot(arg)
		return yesNo(ok), errors.Trace(err)
	default:
		return "", errors.NotFoundf("variable %q", name)
	}
}

// allVars lists the variables "getvar all" reports.
func allVars(be *backend.Backend) []string {
	res := []string{"version"}
	for _, p := range be.Partitions() {
		res = append(res, "partition-size:"+p.Name)
		if p.FSType != "" {
			res = append(res, "partition-type:"+p.Name)
		}
	}
	for _, d := range be.Devices() {
		res = append(res, "bdev-size:"+d, "bdev-blocks:"+d)
	}
	if be.SlotCount() > 0 {
		res = append(res, "current-slot", "slot-count")
		for i := 0; i < be.SlotCount(); i++ {
			s := be.SlotSuffix(i)[1:]
			res = append(res, "slot-successful:"+s, "slot-unbootable:"+s, "slot-retry-count:"+s)
		}
	}
	bases, err := be.BaseNames()
	if err != nil {
		glog.Warningf("no base names: %s", err)
	}
	for _, b := range bases {
		res = append(res, "has-slot:"+b.Name)
	}
	return res
}

func getvarCmd(args []string) error {
	if err := needArgs(args, "variable"); err != nil {
		return errors.Trace(err)
	}
	s, err := openSession()
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()
	if args[0] != "all" {
		v, err := getvar(s.be, args[0])
		if err != nil {
			return errors.Trace(err)
		}
		fmt.Printf("%s: %s\n", args[0], v)
		return nil
	}
	for _, name := range allVars(s.be) {
		v, err := getvar(s.be, name)
		if err != nil {
			glog.Warningf("%s: %s", name, err)
			continue
		}
		fmt.Printf("%s: %s\n", name, v)
	}
	return nil
}
