// Copyright 2017 Google Inc.
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

// Package bgzf provides support for BGZF virtual addresses and blocks.
package bgzf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

// LastAddress is the maximum valid BGZF address.
const LastAddress = Address(0xffffffffffffffff)

// MaximumBlockSize is the maximum BGZF block size.
const MaximumBlockSize = 65536

// EOFMarker is the empty block that terminates every BGZF stream.
var EOFMarker = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Address stores a BGZF "virtual address".  The lower 16 bits store the data
// offset inside the uncompressed stream and upper 48 bits store the block
// offset inside the compressed archive set.  Ordering two addresses as plain
// integers orders them by block and then by data offset.
type Address uint64

// BlockOffset returns the offset to the start of the compressed block.
func (v Address) BlockOffset() uint64 {
	return uint64(v >> 16)
}

// DataOffset returns the offset to the data in the uncompressed block.
func (v Address) DataOffset() uint16 {
	return uint16(v & 0xffff)
}

// String returns a representation of v that can be parsed with ParseAddress.
func (v Address) String() string {
	return strconv.FormatUint(uint64(v), 16)
}

// ParseAddress attempts to parse input into an Address.
func ParseAddress(input string) (Address, error) {
	v, err := strconv.ParseUint(input, 16, 64)
	return Address(v), err
}

// MarshalText encodes v as hexadecimal so that JSON consumers do not lose
// precision.
func (v Address) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// NewAddress returns a new Address with the provided offsets.
func NewAddress(blockOffset uint64, dataOffset uint16) Address {
	return Address(blockOffset<<16 | uint64(dataOffset))
}

// Chunk specifies a region from Start to End inside a BGZF file.
type Chunk struct {
	Start Address `json:"start"`
	End   Address `json:"end"`
}

// String returns a human readable description of the receiver.
func (v Chunk) String() string {
	return fmt.Sprintf("[%s-%s]", v.Start, v.End)
}

// Merge sorts chunks by start (then end) address and combines every chunk
// whose start is no further than slack past the end of the previous one.
// Merge will not join two chunks if their combined size could exceed
// sizeLimit; a zero sizeLimit disables the check.  The input is not modified.
func Merge(input []Chunk, slack, sizeLimit uint64) []Chunk {
	if len(input) == 0 {
		return nil
	}

	sorted := make([]Chunk, len(input))
	copy(sorted, input)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []Chunk{sorted[0]}
	for _, chunk := range sorted[1:] {
		output := &merged[len(merged)-1]
		if chunk.Start <= addSaturating(output.End, slack) && withinLimit(*output, chunk, sizeLimit) {
			if output.End < chunk.End {
				output.End = chunk.End
			}
			continue
		}
		merged = append(merged, chunk)
	}
	return merged
}

func addSaturating(v Address, n uint64) Address {
	if uint64(v) > math.MaxUint64-n {
		return LastAddress
	}
	return v + Address(n)
}

func withinLimit(output, next Chunk, sizeLimit uint64) bool {
	if sizeLimit == 0 {
		return true
	}
	end := output.End
	if next.End > end {
		end = next.End
	}
	var size uint64
	if end.BlockOffset() == output.Start.BlockOffset() {
		size = uint64(end.DataOffset() - output.Start.DataOffset())
	} else {
		// Estimate using the maximum size for the last block.
		size = end.BlockOffset() - output.Start.BlockOffset() + MaximumBlockSize
	}
	return size <= sizeLimit
}

// NewReader returns a reader that decompresses every block of the BGZF stream
// read from r.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("initializing gzip reader: %w", err)
	}
	return gzr, nil
}

// DecodeBlock decodes a single BGZF block from r and returns the uncompressed
// data and the original block size (or an error).  Note that DecodeBlock may
// read bytes past the end of the block if r does not implement io.ByteReader.
func DecodeBlock(r io.Reader) ([]byte, uint16, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("initializing gzip reader: %w", err)
	}
	defer gzr.Close()

	extra := gzr.Header.Extra
	if len(extra) < 6 {
		return nil, 0, fmt.Errorf("short extra field (%d bytes)", len(extra))
	}
	if extra[0] != 0x42 || extra[1] != 0x43 {
		return nil, 0, fmt.Errorf("unexpected extra ID: %x", extra[0:2])
	}
	if extra[2] != 2 || extra[3] != 0 {
		return nil, 0, fmt.Errorf("unexpected extra length: %x", extra[2:4])
	}

	gzr.Multistream(false)
	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, gzr); err != nil {
		return nil, 0, fmt.Errorf("decompressing data: %w", err)
	}
	return buffer.Bytes(), (uint16(extra[4]) | uint16(extra[5])<<8) + 1, nil
}

// EncodeBlock returns a single BGZF block that encodes the bytes in data.
func EncodeBlock(data []byte) ([]byte, error) {
	if len(data) > MaximumBlockSize {
		return nil, errors.New("data exceeds maximum block size")
	}

	var buffer bytes.Buffer
	gzw := gzip.NewWriter(&buffer)

	gzw.Header.Extra = []byte{
		0x42, 0x43, // Extra ID.
		0x02, 0x00, // Length of extra data (2 bytes).
		0x88, 0x88, // BSIZE (filled in after writing the archive).
	}
	if _, err := gzw.Write(data); err != nil {
		return nil, fmt.Errorf("writing compressed data: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing writer: %w", err)
	}
	if buffer.Len() > MaximumBlockSize {
		return nil, fmt.Errorf("compressed block too large (%d bytes)", buffer.Len())
	}
	bsize := buffer.Len() - 1
	encoded := buffer.Bytes()
	encoded[16] = byte(bsize)
	encoded[17] = byte(bsize >> 8)
	return encoded, nil
}
