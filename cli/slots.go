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
	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/cli/ourutil"
)

func setActiveCmd(args []string) error {
	if err := needArgs(args, "slot"); err != nil {
		return errors.Trace(err)
	}
	s, err := openSession()
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()
	idx, err := parseSlot(s.be, args[0])
	if err != nil {
		return errors.Trace(err)
	}
	if err := s.be.SetActiveSlot(idx); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Active slot: %s", s.be.SlotSuffix(idx)[1:])
	return nil
}
