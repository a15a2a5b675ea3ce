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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/kardianos/osext"

	"github.com/mongoose-os/fbflash/backend"
	"github.com/mongoose-os/fbflash/cli/flags"
	"github.com/mongoose-os/fbflash/cli/ourutil"
	"github.com/mongoose-os/fbflash/common/blockdev"
	"github.com/mongoose-os/fbflash/common/boardcfg"
	"github.com/mongoose-os/fbflash/common/ourio"
	"github.com/mongoose-os/fbflash/version"
)

const defaultBoardFile = "fbflash.yaml"

// boardFile returns the board description to use: --board, or the default
// file in the current directory, or next to the executable.
func boardFile() (string, error) {
	if *flags.Board != "" {
		return *flags.Board, nil
	}
	if _, err := os.Stat(defaultBoardFile); err == nil {
		return defaultBoardFile, nil
	}
	dir, err := osext.ExecutableFolder()
	if err != nil {
		glog.Warningf("cannot find executable's directory: %s", err)
	} else {
		p := filepath.Join(dir, defaultBoardFile)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.NotFoundf("%s (use --board)", defaultBoardFile)
}

// session is a backend over the opened disks of a board.
type session struct {
	board *boardcfg.Board
	disks []*blockdev.File
	be    *backend.Backend
}

func openSession() (*session, error) {
	fn, err := boardFile()
	if err != nil {
		return nil, errors.Trace(err)
	}
	board, err := boardcfg.Load(fn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := board.CheckVersion(version.Version); err != nil {
		return nil, errors.Annotatef(err, "%s", fn)
	}
	disks, err := board.OpenDisks()
	if err != nil {
		return nil, errors.Trace(err)
	}
	devs := make([]blockdev.Device, len(disks))
	for i, d := range disks {
		devs[i] = d
	}
	be, err := newBackend(board, devs)
	if err != nil {
		boardcfg.CloseDisks(disks)
		return nil, errors.Annotatef(err, "%s", fn)
	}
	return &session{board: board, disks: disks, be: be}, nil
}

func newBackend(board *boardcfg.Board, devs []blockdev.Device) (*backend.Backend, error) {
	cfg, err := board.BackendConfig(devs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	be := backend.New(cfg)
	if err := be.Init(); err != nil {
		return nil, errors.Trace(err)
	}
	return be, nil
}

func (s *session) Close() {
	boardcfg.CloseDisks(s.disks)
}

func needArgs(args []string, names ...string) error {
	if len(args) != len(names) {
		return errors.Errorf("expected %d argument(s): %v, got %d", len(names), names, len(args))
	}
	return nil
}

func boardTemplateCmd(args []string) error {
	if err := needArgs(args, "file"); err != nil {
		return errors.Trace(err)
	}
	if _, err := os.Stat(args[0]); err == nil && !*flags.Force {
		return errors.AlreadyExistsf("%s (use --force to overwrite)", args[0])
	}
	if _, err := ourio.WriteYAMLFileIfDifferent(args[0], boardcfg.Example(), 0644); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Wrote %s", args[0])
	return nil
}

func versionCmd(args []string) error {
	if !*flags.JSON {
		fmt.Println(version.String())
		return nil
	}
	vj, err := version.GetVersionJson()
	if err != nil {
		return errors.Trace(err)
	}
	data, err := json.MarshalIndent(vj, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Println(string(data))
	return nil
}
