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
package ourutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/golang/glog"
)

// Reportf prints a progress message to stderr and logs it.
func Reportf(f string, args ...interface{}) {
	Freportf(os.Stderr, f, args...)
}

func Freportf(w io.Writer, f string, args ...interface{}) {
	fmt.Fprintf(w, f+"\n", args...)
	glog.Infof(f, args...)
}

func Prompt(text string) string {
	fmt.Fprintf(os.Stderr, "%s ", text)
	ans, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(ans)
}

// Confirm asks a yes/no question, unless force is set.
func Confirm(force bool, f string, args ...interface{}) bool {
	if force {
		return true
	}
	ans := Prompt(fmt.Sprintf(f, args...) + " [y/N]")
	switch strings.ToLower(ans) {
	case "y", "yes":
		return true
	}
	return false
}

// PrintStatus prints the final status line of a command in the fastboot
// manner: OKAY, or FAIL followed by the reason.
func PrintStatus(w io.Writer, err error) {
	if err == nil {
		color.New(color.FgGreen).Fprintf(w, "OKAY\n")
		return
	}
	color.New(color.FgRed).Fprintf(w, "FAIL")
	fmt.Fprintf(w, " %s\n", err)
}
