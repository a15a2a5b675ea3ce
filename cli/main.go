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
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/fbflash/cli/ourutil"
	"github.com/mongoose-os/fbflash/common/pflagenv"
	"github.com/mongoose-os/fbflash/version"
)

const (
	envPrefix = "FBFLASH_"
)

var (
	verbose     = flag.Bool("verbose", false, "Verbose output")
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

type command struct {
	name     string
	handler  handler
	args     string
	short    string
	required []string
	optional []string
	// Print OKAY/FAIL when done.
	status bool
}

type handler func(args []string) error

var commands = []command{
	{"flash", flashCmd, "<partition> <image>", `Write a raw or sparse image to a partition`, nil, []string{"board"}, true},
	{"erase", eraseCmd, "<partition>", `Erase a partition`, nil, []string{"board", "force"}, true},
	{"getvar", getvarCmd, "<variable>", `Print a variable, or all of them with "getvar all"`, nil, []string{"board"}, true},
	{"set-active", setActiveCmd, "<slot>", `Make a slot active. The slot is given by index or suffix letter`, nil, []string{"board"}, true},
	{"mksparse", mksparseCmd, "<raw image> <sparse image>", `Convert a raw image into a sparse one`, nil, []string{"sparse-block-size"}, true},
	{"gpt-init", gptInitCmd, "<device>", `Write a new partition table for the GPT partitions of the board`, nil, []string{"board", "gpt-part-size", "force"}, true},
	{"board-template", boardTemplateCmd, "<file>", `Write an example board description`, nil, nil, true},
	{"version", versionCmd, "", `Print version`, nil, []string{"json"}, false},
}

func run() error {
	args := flag.Args()
	if len(args) == 0 {
		usage()
		return nil
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := checkFlags(c.required); err != nil {
			return errors.Trace(err)
		}
		err := c.handler(args[1:])
		if c.status {
			ourutil.PrintStatus(os.Stderr, err)
		}
		return errors.Trace(err)
	}
	usage()
	return errors.Errorf("unknown command %q", args[0])
}

func main() {
	initFlags()
	flag.Parse()
	fromEnv, err := pflagenv.Parse(envPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if len(fromEnv) > 0 {
		glog.V(1).Infof("flags from environment: %v", fromEnv)
	}
	if *verbose {
		flag.Set("v", "1")
	}

	if *helpFull {
		unhideFlags()
		usage()
		return
	} else if *versionFlag {
		fmt.Println(version.String())
		return
	}

	if err := run(); err != nil {
		glog.Infof("Error: %+v", err)
		if *verbose {
			fmt.Fprintf(os.Stderr, "Error: %s\n", errors.ErrorStack(err))
		}
		os.Exit(1)
	}
}
