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
	"bufio"
	"errors"
	"io"
)

// Block is a decompressed BGZF block.
type Block struct {
	// Offset is the position of the compressed block in the stream.
	Offset uint64
	// Size is the size of the compressed block.
	Size uint16
	Data []byte
}

// Address returns the virtual address of the byte at offset in the
// decompressed data of b.
func (b *Block) Address(offset int) Address {
	return NewAddress(b.Offset, uint16(offset))
}

// BlockReader decodes the blocks of a BGZF stream one at a time.
type BlockReader struct {
	r      *bufio.Reader
	offset uint64
}

// NewBlockReader returns a BlockReader for the stream read from r.
func NewBlockReader(r io.Reader) *BlockReader {
	return &BlockReader{r: bufio.NewReader(r)}
}

// Next returns the next block.  Next returns io.EOF after the last block.
func (br *BlockReader) Next() (*Block, error) {
	if _, err := br.r.Peek(1); err == io.EOF {
		return nil, io.EOF
	}
	data, size, err := DecodeBlock(br.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	block := &Block{Offset: br.offset, Size: size, Data: data}
	br.offset += uint64(size)
	return block, nil
}
