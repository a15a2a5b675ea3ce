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

// Package multierror collects several independent errors, such as the
// problems found while validating a configuration, into one error value.
package multierror

import (
	"bytes"
	"fmt"
)

// Error bundles multiple errors and makes them obey the error interface.
type Error struct {
	errs []error
}

func (e *Error) Error() string {
	buf := bytes.NewBuffer(nil)

	fmt.Fprintf(buf, "%d error(s) occurred:", len(e.errs))
	for _, err := range e.errs {
		fmt.Fprintf(buf, "\n%s", err)
	}
	return buf.String()
}

// Errors returns the collected errors in the order they were added.
func (e *Error) Errors() []error {
	return e.errs
}

// Append adds errs to err and returns the result. err may be nil, a plain
// error or an *Error. Nil entries in errs are skipped, and if nothing was
// collected the result is nil, so callers can append unconditionally:
//
//	var err error
//	err = multierror.Append(err, checkA())
//	err = multierror.Append(err, checkB())
//	return err
func Append(err error, errs ...error) error {
	var me *Error
	switch e := err.(type) {
	case nil:
		me = &Error{}
	case *Error:
		me = e
	default:
		me = &Error{errs: []error{e}}
	}
	for _, e := range errs {
		if e != nil {
			me.errs = append(me.errs, e)
		}
	}
	if len(me.errs) == 0 {
		return nil
	}
	return me
}
