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

package codec

import (
	"fmt"
	"io"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/binning"
	"github.com/googlegenomics/htsindex/index"
	"github.com/googlegenomics/htsindex/internal/binary"
)

// batchSize bounds the number of values read at once so that a corrupt count
// cannot force a large allocation before the data runs out.
const batchSize = 4096

func readReference(r io.Reader, codec formatCodec, scheme binning.Scheme) (*index.ReferenceIndex, error) {
	bins, err := readCount(r, "bin count")
	if err != nil {
		return nil, err
	}

	ref := index.NewReferenceIndex()
	for j := 0; j < bins; j++ {
		id, offset, err := codec.readBin(r)
		if err != nil {
			return nil, err
		}
		count, err := readCount(r, "chunk count")
		if err != nil {
			return nil, err
		}
		chunks, err := readValues[bgzf.Chunk](r, count, "chunks")
		if err != nil {
			return nil, err
		}

		if id == scheme.MetadataBinID() {
			if ref.Metadata != nil {
				return nil, index.NewValidationError(index.ErrInvalidBinID, "duplicate metadata bin %d", id)
			}
			if count != 2 {
				return nil, index.NewFormatError(index.ErrInvalidCount, "metadata bin has %d chunks (wanted 2)", count)
			}
			ref.Metadata = &index.Metadata{
				Start:    chunks[0].Start,
				End:      chunks[0].End,
				Mapped:   uint64(chunks[1].Start),
				Unmapped: uint64(chunks[1].End),
			}
			continue
		}
		if !scheme.Valid(id) {
			return nil, index.NewValidationError(index.ErrInvalidBinID, "bin %d outside [0, %d)", id, scheme.BinCount())
		}
		if _, ok := ref.Bins[id]; ok {
			return nil, index.NewValidationError(index.ErrInvalidBinID, "duplicate bin %d", id)
		}
		ref.Bins[id] = &index.Bin{ID: id, Offset: offset, Chunks: chunks}
	}

	if codec.linearIndex() {
		intervals, err := readCount(r, "interval count")
		if err != nil {
			return nil, err
		}
		ref.Intervals, err = readValues[bgzf.Address](r, intervals, "intervals")
		if err != nil {
			return nil, err
		}
	}
	return ref, nil
}

// readValues reads count little endian values of a fixed-size type.
func readValues[T any](r io.Reader, count int, what string) ([]T, error) {
	values := make([]T, 0, min(count, batchSize))
	for len(values) < count {
		batch := make([]T, min(count-len(values), batchSize))
		if err := binary.Read(r, batch); err != nil {
			return nil, readError(what, err)
		}
		values = append(values, batch...)
	}
	return values, nil
}

func writeReference(w io.Writer, codec formatCodec, scheme binning.Scheme, ref *index.ReferenceIndex) error {
	bins := int32(len(ref.Bins))
	if ref.Metadata != nil {
		bins++
	}
	if err := binary.Write(w, bins); err != nil {
		return fmt.Errorf("writing bin count: %w", err)
	}

	for _, bin := range ref.SortedBins() {
		if err := writeBin(w, codec, bin.ID, bin.Offset, bin.Chunks); err != nil {
			return err
		}
	}
	if m := ref.Metadata; m != nil {
		chunks := []bgzf.Chunk{
			{Start: m.Start, End: m.End},
			{Start: bgzf.Address(m.Mapped), End: bgzf.Address(m.Unmapped)},
		}
		if err := writeBin(w, codec, scheme.MetadataBinID(), 0, chunks); err != nil {
			return err
		}
	}

	if codec.linearIndex() {
		if err := binary.Write(w, int32(len(ref.Intervals))); err != nil {
			return fmt.Errorf("writing interval count: %w", err)
		}
		if err := binary.Write(w, ref.Intervals); err != nil {
			return fmt.Errorf("writing intervals: %w", err)
		}
	}
	return nil
}

func writeBin(w io.Writer, codec formatCodec, id uint32, offset bgzf.Address, chunks []bgzf.Chunk) error {
	if err := codec.writeBin(w, id, offset); err != nil {
		return fmt.Errorf("writing bin %d: %w", id, err)
	}
	if err := binary.Write(w, int32(len(chunks))); err != nil {
		return fmt.Errorf("writing bin %d chunk count: %w", id, err)
	}
	if err := binary.Write(w, chunks); err != nil {
		return fmt.Errorf("writing bin %d chunks: %w", id, err)
	}
	return nil
}
