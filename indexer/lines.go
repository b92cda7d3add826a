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

package indexer

import (
	"bytes"
	"io"

	"github.com/googlegenomics/htsindex/bgzf"
)

// lineReader splits a BGZF stream into lines and reports the virtual
// addresses each line occupies.  Addresses at the end of a block are reported
// as the start of the following block, so the end of one line always equals
// the start of the next.
type lineReader struct {
	blocks *bgzf.BlockReader
	block  *bgzf.Block
	pos    int
	eof    bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{blocks: bgzf.NewBlockReader(r)}
}

// next returns the next line without its terminator, and the chunk spanning
// the line and its terminator.
func (lr *lineReader) next() ([]byte, bgzf.Chunk, error) {
	if err := lr.fill(); err != nil {
		return nil, bgzf.Chunk{}, err
	}
	start := lr.address()

	var line []byte
	for {
		data := lr.block.Data[lr.pos:]
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line = append(line, data[:i]...)
			lr.pos += i + 1
			break
		}
		line = append(line, data...)
		lr.pos = len(lr.block.Data)
		if err := lr.fill(); err == io.EOF {
			break
		} else if err != nil {
			return nil, bgzf.Chunk{}, err
		}
	}

	if err := lr.fill(); err != nil && err != io.EOF {
		return nil, bgzf.Chunk{}, err
	}
	return line, bgzf.Chunk{Start: start, End: lr.address()}, nil
}

// fill advances to the next block holding unread data.
func (lr *lineReader) fill() error {
	for lr.block == nil || lr.pos >= len(lr.block.Data) {
		if lr.eof {
			return io.EOF
		}
		block, err := lr.blocks.Next()
		if err == io.EOF {
			lr.eof = true
			return io.EOF
		}
		if err != nil {
			return err
		}
		lr.block, lr.pos = block, 0
	}
	return nil
}

func (lr *lineReader) address() bgzf.Address {
	return lr.block.Address(lr.pos)
}
