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
package ourio

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileIfDifferent(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "out.img")

	changed, err := WriteFileIfDifferent(fn, []byte("abc"), 0644)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = WriteFileIfDifferent(fn, []byte("abc"), 0644)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = WriteFileIfDifferent(fn, []byte("abcd"), 0600)
	require.NoError(t, err)
	assert.True(t, changed)
	data, err := ioutil.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))
	st, err := os.Stat(fn)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), st.Mode().Perm())

	entries, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	_, err = WriteFileIfDifferent(filepath.Join(dir, "no", "such", "dir"), nil, 0644)
	assert.Error(t, err)
}

func TestWriteYAMLFileIfDifferent(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "board.yaml")
	v := map[string]int{"count": 2}
	changed, err := WriteYAMLFileIfDifferent(fn, v, 0644)
	require.NoError(t, err)
	assert.True(t, changed)
	data, err := ioutil.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, "count: 2\n", string(data))
	changed, err = WriteYAMLFileIfDifferent(fn, v, 0644)
	require.NoError(t, err)
	assert.False(t, changed)
}
