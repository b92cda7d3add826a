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
	"errors"
	"fmt"
	"io"
)

// blockDataSize is the amount of uncompressed data placed in each block.  It
// leaves room for incompressible input to stay below MaximumBlockSize once
// the gzip framing is added.
const blockDataSize = 0xff00

// Writer compresses data written to it into a BGZF stream.  Close must be
// called to flush the final block and append the EOF marker.
type Writer struct {
	w       io.Writer
	buffer  []byte
	written uint64
	closed  bool
}

// NewWriter returns a Writer that writes BGZF blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buffer: make([]byte, 0, blockDataSize)}
}

// Write buffers p and emits a block each time blockDataSize bytes are pending.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed writer")
	}
	var n int
	for len(p) > 0 {
		space := blockDataSize - len(w.buffer)
		if space > len(p) {
			space = len(p)
		}
		w.buffer = append(w.buffer, p[:space]...)
		p = p[space:]
		n += space
		if len(w.buffer) == blockDataSize {
			if err := w.flush(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Address returns the virtual address of the next byte written to w.
func (w *Writer) Address() Address {
	return NewAddress(w.written, uint16(len(w.buffer)))
}

// Close flushes any buffered data and writes the EOF marker block.  It does
// not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if len(w.buffer) > 0 {
		if err := w.flush(); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(EOFMarker); err != nil {
		return fmt.Errorf("writing EOF marker: %w", err)
	}
	return nil
}

func (w *Writer) flush() error {
	block, err := EncodeBlock(w.buffer)
	if err != nil {
		return fmt.Errorf("encoding block: %w", err)
	}
	if _, err := w.w.Write(block); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	w.written += uint64(len(block))
	w.buffer = w.buffer[:0]
	return nil
}
