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
package backend

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/fbflash/common/blockdev"
)

func TestEraseNative(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.b.ErasePartition("firmware"))
	assert.Equal(t, []blockdev.Op{{Kind: blockdev.OpErase, LBA: 16, Count: 64}}, writes(f.flash.Mem))
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 64*4096), f.flash.Bytes()[16*4096:80*4096])
}

func TestEraseNativeShort(t *testing.T) {
	f := newFixture(t, 4)
	f.flash.EraseLimit = 10
	require.NoError(t, f.b.ErasePartition("firmware"))
	assert.Equal(t, []blockdev.Op{
		{Kind: blockdev.OpErase, LBA: 16, Count: 64},
		{Kind: blockdev.OpFill, LBA: 16, Count: 64, Pattern: 0xffffffff},
	}, writes(f.flash.Mem))
}

func TestEraseFill(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.b.ErasePartition("data"))
	assert.Equal(t, []blockdev.Op{
		{Kind: blockdev.OpFill, LBA: f.dataStart(), Count: dataSize, Pattern: 0xffffffff},
	}, writes(f.emmc))

	f.emmc.ResetOps()
	f.emmc.WriteLimit = 100
	assertStatus(t, StatusWrite, f.b.ErasePartition("data"))
	assertStatus(t, StatusPartitionNotFound, f.b.ErasePartition("bootloader"))
}
