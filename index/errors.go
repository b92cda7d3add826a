// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package index

import (
	"errors"
	"fmt"

	"github.com/googlegenomics/htsindex/binning"
)

// Kinds of FormatError.
var (
	ErrBadMagic      = errors.New("bad magic")
	ErrUnexpectedEOF = errors.New("unexpected end of index data")
	ErrInvalidCount  = errors.New("invalid count")
	ErrInvalidHeader = errors.New("invalid header")
	ErrInvalidScheme = errors.New("invalid binning scheme")
	ErrTrailingData  = errors.New("trailing data")
)

// Kinds of ValidationError.
var (
	ErrInvalidBinID       = errors.New("invalid bin ID")
	ErrInvalidChunk       = errors.New("invalid chunk")
	ErrInvalidInterval    = binning.ErrInvalidInterval
	ErrInvalidReferenceID = errors.New("invalid reference ID")
	ErrIncompatibleFormat = errors.New("incompatible format")
)

// FormatError reports malformed or truncated index data.
type FormatError struct {
	// Kind is one of the FormatError kinds declared by this package.
	Kind   error
	Detail string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
}

// Unwrap returns the kind of the error so that errors.Is can match it.
func (e *FormatError) Unwrap() error {
	return e.Kind
}

// NewFormatError returns a FormatError of the given kind.
func NewFormatError(kind error, format string, args ...interface{}) error {
	return &FormatError{kind, fmt.Sprintf(format, args...)}
}

// ValidationError reports an index or query argument that violates the data
// model.
type ValidationError struct {
	// Kind is one of the ValidationError kinds declared by this package.
	Kind   error
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
}

// Unwrap returns the kind of the error so that errors.Is can match it.
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// NewValidationError returns a ValidationError of the given kind.
func NewValidationError(kind error, format string, args ...interface{}) error {
	return &ValidationError{kind, fmt.Sprintf(format, args...)}
}
