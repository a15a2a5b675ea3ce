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
	"fmt"

	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/common/sparse"
)

// Status is the outcome of a backend operation. Every non-success value is
// also an error; operations return it annotated, so errors.Cause (or
// StatusOf) recovers it.
type Status int

const (
	StatusSuccess Status = iota
	StatusPartitionNotFound
	StatusDeviceNotFound
	StatusSizeAlignment
	StatusOverflow
	StatusInsufficientData
	StatusWrite
	StatusSparseHeader
	StatusChunkHeader
	StatusGPT
	StatusInvalidSlotIndex
	// StatusNotHandled is returned by a board override that declined the
	// request.
	StatusNotHandled
	StatusUnknown
)

var statusNames = map[Status]string{
	StatusSuccess:           "success",
	StatusPartitionNotFound: "partition not found",
	StatusDeviceNotFound:    "device not found",
	StatusSizeAlignment:     "size alignment error",
	StatusOverflow:          "overflow error",
	StatusInsufficientData:  "insufficient data",
	StatusWrite:             "write error",
	StatusSparseHeader:      "sparse header error",
	StatusChunkHeader:       "chunk header error",
	StatusGPT:               "GPT error",
	StatusInvalidSlotIndex:  "invalid slot index",
	StatusNotHandled:        "not handled",
	StatusUnknown:           "unknown error",
}

func (s Status) Error() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status %d", int(s))
}

func (s Status) String() string {
	return s.Error()
}

// Kind groups statuses by what went wrong.
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindFormat
	KindBounds
	KindDevice
	KindSlot
	KindNotHandled
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not found"
	case KindFormat:
		return "format"
	case KindBounds:
		return "bounds"
	case KindDevice:
		return "device"
	case KindSlot:
		return "slot"
	case KindNotHandled:
		return "not handled"
	default:
		return "other"
	}
}

func (s Status) Kind() Kind {
	switch s {
	case StatusSuccess:
		return KindNone
	case StatusPartitionNotFound, StatusDeviceNotFound:
		return KindNotFound
	case StatusSparseHeader, StatusChunkHeader, StatusInsufficientData:
		return KindFormat
	case StatusSizeAlignment, StatusOverflow:
		return KindBounds
	case StatusWrite:
		return KindDevice
	case StatusGPT, StatusInvalidSlotIndex:
		return KindSlot
	case StatusNotHandled:
		return KindNotHandled
	default:
		return KindOther
	}
}

// StatusOf maps err to a Status. nil is StatusSuccess, errors that carry no
// status are StatusUnknown.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	switch c := errors.Cause(err); c {
	case sparse.ErrShortData:
		return StatusInsufficientData
	case sparse.ErrHeader:
		return StatusSparseHeader
	case sparse.ErrChunkHeader:
		return StatusChunkHeader
	default:
		if s, ok := c.(Status); ok {
			return s
		}
		return StatusUnknown
	}
}
