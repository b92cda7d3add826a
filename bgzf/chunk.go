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

package bgzf

import (
	"bytes"
	"fmt"
	"io"
)

// blockHeaderSize is the size of the fixed gzip header (including the BC
// extra subfield) at the start of every block.
const blockHeaderSize = 18

// ReadChunk returns the decompressed bytes between the start and end
// addresses of chunk, reading blocks from r as needed.
func ReadChunk(r io.ReaderAt, chunk Chunk) ([]byte, error) {
	if chunk.End < chunk.Start {
		return nil, fmt.Errorf("chunk %s ends before it starts", chunk)
	}

	head, tail := chunk.Start.BlockOffset(), chunk.End.BlockOffset()

	var output []byte
	for offset := head; ; {
		data, size, err := readBlockAt(r, offset)
		if err != nil {
			return nil, fmt.Errorf("reading block at %d: %w", offset, err)
		}

		lo, hi := 0, len(data)
		if offset == head {
			lo = int(chunk.Start.DataOffset())
		}
		if offset == tail {
			hi = int(chunk.End.DataOffset())
		}
		if lo > hi || hi > len(data) {
			return nil, fmt.Errorf("chunk %s exceeds block data at %d (%d bytes)", chunk, offset, len(data))
		}
		output = append(output, data[lo:hi]...)

		if offset >= tail {
			break
		}
		offset += uint64(size)
	}
	return output, nil
}

func readBlockAt(r io.ReaderAt, offset uint64) ([]byte, uint16, error) {
	header := make([]byte, blockHeaderSize)
	if n, err := r.ReadAt(header, int64(offset)); n < len(header) {
		return nil, 0, fmt.Errorf("reading block header: %w", err)
	}
	if header[12] != 0x42 || header[13] != 0x43 {
		return nil, 0, fmt.Errorf("unexpected extra ID: %x", header[12:14])
	}
	bsize := (int(header[16]) | int(header[17])<<8) + 1

	block := make([]byte, bsize)
	if n, err := r.ReadAt(block, int64(offset)); n < len(block) {
		return nil, 0, fmt.Errorf("reading block: %w", err)
	}
	return DecodeBlock(bytes.NewReader(block))
}
