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

// tabix handles the fixed-scheme tabix format.  The reference count comes
// first, followed by the description of the indexed text file.
type tabix struct{}

func (tabix) magic() string {
	return tabixMagic
}

func (tabix) readHeader(r io.Reader, idx *index.Index) (int, error) {
	references, err := readCount(r, "reference count")
	if err != nil {
		return 0, err
	}

	var fields index.HeaderFields
	if err := binary.Read(r, &fields); err != nil {
		return 0, readError("tabix header", err)
	}
	if fields.NamesLength < 0 {
		return 0, index.NewFormatError(index.ErrInvalidCount, "negative names length (%d)", fields.NamesLength)
	}
	names, err := readBlob(r, int(fields.NamesLength), "reference names")
	if err != nil {
		return 0, err
	}
	header, err := index.NewHeader(fields, names)
	if err != nil {
		return 0, err
	}
	if len(header.Names) != references {
		return 0, index.NewFormatError(index.ErrInvalidHeader, "%d names for %d references", len(header.Names), references)
	}

	idx.Format = index.FormatTabix
	idx.MinShift = binning.TabixScheme.MinShift
	idx.Depth = binning.TabixScheme.Depth
	idx.Header = header
	return references, nil
}

func (tabix) writeHeader(w io.Writer, idx *index.Index) error {
	if err := binary.Write(w, int32(len(idx.References))); err != nil {
		return fmt.Errorf("writing reference count: %w", err)
	}
	if err := binary.Write(w, idx.Header.Fields()); err != nil {
		return fmt.Errorf("writing tabix header: %w", err)
	}
	if _, err := w.Write(idx.Header.NameBlock()); err != nil {
		return fmt.Errorf("writing reference names: %w", err)
	}
	return nil
}

func (tabix) readBin(r io.Reader) (uint32, bgzf.Address, error) {
	var id uint32
	if err := binary.Read(r, &id); err != nil {
		return 0, 0, readError("bin ID", err)
	}
	return id, 0, nil
}

func (tabix) writeBin(w io.Writer, id uint32, _ bgzf.Address) error {
	return binary.Write(w, id)
}

func (tabix) linearIndex() bool {
	return true
}
