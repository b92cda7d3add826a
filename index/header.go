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
	"bytes"
	"encoding/binary"
	"math"
)

// Values of Header.Format.
const (
	FormatGeneric = 0
	FormatSAM     = 1
	FormatVCF     = 2
	// FormatZeroBased is set when the begin column holds 0-based positions.
	FormatZeroBased = 0x10000
)

// headerFieldsSize is the size of the fixed fields preceding the names.
const headerFieldsSize = 7 * 4

// Header holds the fixed tabix header describing the layout of the indexed
// text file.
type Header struct {
	Format         int32
	ColumnSequence int32
	ColumnBegin    int32
	ColumnEnd      int32
	// Meta is the character that starts comment lines.
	Meta int32
	// Skip is the number of leading lines to ignore.
	Skip  int32
	Names []string
}

// HeaderFields is the on-disk layout of the fixed header fields.
type HeaderFields struct {
	Format, ColumnSequence, ColumnBegin, ColumnEnd, Meta, Skip int32
	NamesLength                                                int32
}

// Fields returns the fixed fields of h, including the length of the encoded
// names.
func (h *Header) Fields() HeaderFields {
	return HeaderFields{
		Format:         h.Format,
		ColumnSequence: h.ColumnSequence,
		ColumnBegin:    h.ColumnBegin,
		ColumnEnd:      h.ColumnEnd,
		Meta:           h.Meta,
		Skip:           h.Skip,
		NamesLength:    int32(len(h.NameBlock())),
	}
}

// NewHeader returns a Header from its fixed fields and encoded names.
func NewHeader(fields HeaderFields, names []byte) (*Header, error) {
	parsed, err := ParseNames(names)
	if err != nil {
		return nil, err
	}
	return &Header{
		Format:         fields.Format,
		ColumnSequence: fields.ColumnSequence,
		ColumnBegin:    fields.ColumnBegin,
		ColumnEnd:      fields.ColumnEnd,
		Meta:           fields.Meta,
		Skip:           fields.Skip,
		Names:          parsed,
	}, nil
}

// NameBlock returns the names as concatenated NUL terminated strings.
func (h *Header) NameBlock() []byte {
	var block []byte
	for _, name := range h.Names {
		block = append(block, name...)
		block = append(block, 0)
	}
	return block
}

// ParseNames splits a block of NUL terminated strings.
func ParseNames(block []byte) ([]string, error) {
	if len(block) == 0 {
		return []string{}, nil
	}
	if block[len(block)-1] != 0 {
		return nil, NewFormatError(ErrInvalidHeader, "names are not NUL terminated")
	}
	fields := bytes.Split(block[:len(block)-1], []byte{0})
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = string(field)
	}
	return names, nil
}

// Encode returns the binary form of h, as stored in the auxiliary data of a
// CSI index.
func (h *Header) Encode() []byte {
	var buffer bytes.Buffer
	binary.Write(&buffer, binary.LittleEndian, h.Fields())
	buffer.Write(h.NameBlock())
	return buffer.Bytes()
}

// DecodeHeader parses a header produced by Encode.
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < headerFieldsSize {
		return nil, NewFormatError(ErrInvalidHeader, "header too short (%d bytes)", len(data))
	}
	var fields HeaderFields
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &fields); err != nil {
		return nil, NewFormatError(ErrInvalidHeader, "reading header fields: %v", err)
	}
	if fields.NamesLength < 0 || int(fields.NamesLength) != len(data)-headerFieldsSize {
		return nil, NewFormatError(ErrInvalidHeader, "names length %d does not match %d remaining bytes", fields.NamesLength, len(data)-headerFieldsSize)
	}
	return NewHeader(fields, data[headerFieldsSize:])
}

func (h *Header) validate() error {
	length := 0
	for _, name := range h.Names {
		if bytes.IndexByte([]byte(name), 0) >= 0 {
			return NewValidationError(ErrInvalidHeader, "name %q contains NUL", name)
		}
		length += len(name) + 1
	}
	if length > math.MaxInt32 {
		return NewValidationError(ErrInvalidCount, "names too long (%d bytes)", length)
	}
	return nil
}
