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

// Package pflagenv lets environment variables stand in for command line
// flags that were not given explicitly.
package pflagenv

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/pflag"

	"github.com/mongoose-os/fbflash/common/multierror"
)

// ParseFlagSet sets every flag of fs that was not given on the command line
// from the environment variable named envPrefix + the flag name, uppercased,
// with dashes turned into underscores: with the prefix "FBFLASH_", --board
// comes from FBFLASH_BOARD.
//
// It must be called after fs.Parse. It returns the names of the flags taken
// from the environment. Values the flag rejects are reported together.
func ParseFlagSet(fs *pflag.FlagSet, envPrefix string) ([]string, error) {
	// pflag does not tell a flag left at its default from one not given at
	// all, so collect all flags and drop the ones that were set.
	nonset := make(map[string]*pflag.Flag)

	fs.VisitAll(func(f *pflag.Flag) {
		nonset[f.Name] = f
	})
	fs.Visit(func(f *pflag.Flag) {
		delete(nonset, f.Name)
	})

	return setFromEnv(nonset, envPrefix)
}

// Parse is ParseFlagSet for pflag.CommandLine.
func Parse(envPrefix string) ([]string, error) {
	return ParseFlagSet(pflag.CommandLine, envPrefix)
}

func setFromEnv(nonset map[string]*pflag.Flag, envPrefix string) ([]string, error) {
	names := make([]string, 0, len(nonset))
	for name := range nonset {
		names = append(names, name)
	}
	sort.Strings(names)

	var set []string
	var err error
	for _, name := range names {
		envName := EnvName(name, envPrefix)
		v, ok := os.LookupEnv(envName)
		if !ok || v == "" {
			continue
		}
		f := nonset[name]
		if serr := f.Value.Set(v); serr != nil {
			err = multierror.Append(err, errors.Annotatef(serr, "%s", envName))
			continue
		}
		f.Changed = true
		set = append(set, name)
	}
	return set, err
}

// EnvName returns the environment variable consulted for a flag.
func EnvName(flagName, envPrefix string) string {
	flagName = strings.ToUpper(flagName)
	flagName = strings.Replace(flagName, "-", "_", -1)
	return fmt.Sprint(envPrefix, flagName)
}
