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
	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/binning"
)

// Convert returns a copy of idx in the requested format.  Converting to CSI
// derives each bin's offset from the linear index and moves the tabix header
// into the auxiliary data.  Converting to tabix requires the tabix scheme and
// a tabix header in the auxiliary data; the linear index is rebuilt from the
// bin offsets.
func Convert(idx *Index, format Format) (*Index, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	if idx.Format == format {
		return idx, nil
	}

	out := &Index{
		Format:     format,
		MinShift:   idx.MinShift,
		Depth:      idx.Depth,
		References: make([]*ReferenceIndex, len(idx.References)),
		Unplaced:   idx.Unplaced,
	}

	switch format {
	case FormatCSI:
		out.Aux = idx.Header.Encode()
		for i, ref := range idx.References {
			out.References[i] = ref.WithBinOffsets(idx.Scheme())
		}
	case FormatTabix:
		if idx.Scheme() != binning.TabixScheme {
			return nil, NewValidationError(ErrIncompatibleFormat, "tabix requires scheme %s, got %s", binning.TabixScheme, idx.Scheme())
		}
		header, err := DecodeHeader(idx.Aux)
		if err != nil {
			return nil, NewValidationError(ErrIncompatibleFormat, "auxiliary data is not a tabix header: %v", err)
		}
		if len(header.Names) != len(idx.References) {
			return nil, NewValidationError(ErrInvalidCount, "header has %d names for %d references", len(header.Names), len(idx.References))
		}
		out.Header = header
		for i, ref := range idx.References {
			out.References[i] = toTabix(idx.Scheme(), ref)
		}
	default:
		return nil, NewValidationError(ErrIncompatibleFormat, "unknown format %v", format)
	}
	return out, nil
}

// WithBinOffsets returns a copy of ref without a linear index, whose bins
// instead carry the linear index entry of the start of their window.
func (ref *ReferenceIndex) WithBinOffsets(scheme binning.Scheme) *ReferenceIndex {
	out := &ReferenceIndex{Bins: make(map[uint32]*Bin, len(ref.Bins)), Metadata: ref.Metadata}
	for id, bin := range ref.Bins {
		var offset bgzf.Address
		if n := len(ref.Intervals); n > 0 {
			start, _ := scheme.Window(id)
			window := start >> uint(scheme.MinShift)
			if window >= int64(n) {
				window = int64(n - 1)
			}
			offset = ref.Intervals[window]
		}
		out.Bins[id] = &Bin{ID: id, Offset: offset, Chunks: bin.Chunks}
	}
	return out
}

func toTabix(scheme binning.Scheme, ref *ReferenceIndex) *ReferenceIndex {
	out := &ReferenceIndex{Bins: make(map[uint32]*Bin, len(ref.Bins)), Metadata: ref.Metadata}

	offsets := make(map[int64]bgzf.Address)
	windows := int64(0)
	for id, bin := range ref.Bins {
		out.Bins[id] = &Bin{ID: id, Chunks: bin.Chunks}

		start, _ := scheme.Window(id)
		window := start >> uint(scheme.MinShift)
		if current, ok := offsets[window]; !ok || bin.Offset < current {
			offsets[window] = bin.Offset
		}
		if window+1 > windows {
			windows = window + 1
		}
	}

	if windows > 0 {
		out.Intervals = make([]bgzf.Address, windows)
		for i := range out.Intervals {
			if offset, ok := offsets[int64(i)]; ok {
				out.Intervals[i] = offset
			} else if i > 0 {
				out.Intervals[i] = out.Intervals[i-1]
			}
		}
	}
	return out
}
