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
package flags

import (
	flag "github.com/spf13/pflag"
)

var (
	Board = flag.StringP("board", "b", "", "Board description file. "+
		"If not set, fbflash.yaml is looked up in the current directory and then next to the executable.")
	Force = flag.BoolP("force", "f", false, "Do not ask for confirmation of destructive operations")

	SparseBlockSize = flag.Uint32("sparse-block-size", 4096, "Block size of the images made by mksparse, bytes")
	GPTPartSize     = flag.Uint64("gpt-part-size", 2048, "Size of each partition made by gpt-init, blocks")

	JSON = flag.Bool("json", false, "Print version information as JSON")
)
