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
package multierror

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestAppend(t *testing.T) {
	var err error
	err = Append(err, errors.Errorf("bad device"))
	if err == nil {
		t.Fatal(err)
	}

	if got, want := err.Error(), `1 error(s) occurred:
bad device`; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	err = Append(err, nil, errors.Errorf("bad partition"))
	if got, want := err.Error(), `2 error(s) occurred:
bad device
bad partition`; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	err = errors.Errorf("old error")
	err = Append(err, errors.Errorf("new error"))
	if got, want := err.Error(), `2 error(s) occurred:
old error
new error`; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestAppendNothing(t *testing.T) {
	var err error
	assert.NoError(t, Append(err))
	assert.NoError(t, Append(err, nil, nil))

	err = Append(nil, errors.New("a"), errors.New("b"))
	me, ok := err.(*Error)
	if assert.True(t, ok) {
		assert.Len(t, me.Errors(), 2)
	}
}
