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

// Package index contains the in-memory model of a tabix or CSI index and the
// region query algorithm that runs against it.
//
// An Index is either produced by the codec package or assembled field by
// field by an index builder.  Once complete it is never modified by this
// package, so a single Index may be queried from many goroutines at once.
package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/binning"
)

// Format identifies the on-disk variant of an index.
type Format int

const (
	// FormatTabix is the fixed-scheme tabix format (magic "TBI\1").
	FormatTabix Format = iota
	// FormatCSI is the coordinate-sorted index format (magic "CSI\1").
	FormatCSI
)

func (f Format) String() string {
	switch f {
	case FormatTabix:
		return "TBI"
	case FormatCSI:
		return "CSI"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Index holds the contents of a tabix or CSI index.
type Index struct {
	Format Format
	// MinShift and Depth describe the binning scheme.  Tabix indexes always
	// use 14 and 5.
	MinShift, Depth int
	// Header is the tabix header.  It is only set for FormatTabix; CSI indexes
	// of tabix-style data carry the same information encoded in Aux.
	Header *Header
	// Aux is the CSI auxiliary data.
	Aux []byte
	// References are in the same order as the references of the indexed file.
	References []*ReferenceIndex
	// Unplaced is the number of unplaced unmapped records, if recorded.
	Unplaced *uint64
}

// ReferenceIndex holds the index data for a single reference sequence.
type ReferenceIndex struct {
	// Bins maps bin IDs to bins.  Bins without records are absent.
	Bins map[uint32]*Bin
	// Intervals is the tabix linear index: entry i is the lowest address of
	// any record in the 1<<MinShift sized window i or later.
	Intervals []bgzf.Address
	// Metadata holds the contents of the metadata pseudo-bin, if any.
	Metadata *Metadata
}

// Bin represents a contiguous genomic region.
type Bin struct {
	// ID is an identifier for the bin.
	ID uint32
	// Offset is the (virtual) file offset of the first overlapping record.
	// Only CSI indexes record it.
	Offset bgzf.Address
	// Chunks are the ranges of the file holding records assigned to the bin.
	Chunks []bgzf.Chunk
}

// Metadata is the per-reference summary stored in the metadata pseudo-bin.
type Metadata struct {
	Start, End bgzf.Address
	Mapped     uint64
	Unmapped   uint64
}

// NewReferenceIndex returns an empty ReferenceIndex.
func NewReferenceIndex() *ReferenceIndex {
	return &ReferenceIndex{Bins: make(map[uint32]*Bin)}
}

// MappedRecordCount returns the number of mapped records, if recorded.
func (ref *ReferenceIndex) MappedRecordCount() (uint64, bool) {
	if ref.Metadata == nil {
		return 0, false
	}
	return ref.Metadata.Mapped, true
}

// UnmappedRecordCount returns the number of unmapped records placed on the
// reference, if recorded.
func (ref *ReferenceIndex) UnmappedRecordCount() (uint64, bool) {
	if ref.Metadata == nil {
		return 0, false
	}
	return ref.Metadata.Unmapped, true
}

// SortedBins returns the bins ordered by ID.
func (ref *ReferenceIndex) SortedBins() []*Bin {
	bins := make([]*Bin, 0, len(ref.Bins))
	for _, bin := range ref.Bins {
		bins = append(bins, bin)
	}
	sort.Slice(bins, func(i, j int) bool {
		return bins[i].ID < bins[j].ID
	})
	return bins
}

// Scheme returns the binning scheme of the index.
func (idx *Index) Scheme() binning.Scheme {
	return binning.Scheme{MinShift: idx.MinShift, Depth: idx.Depth}
}

// Validate checks that idx satisfies every invariant required to serialize it
// in its format.
func (idx *Index) Validate() error {
	scheme := idx.Scheme()
	if err := scheme.Validate(); err != nil {
		return NewValidationError(ErrInvalidScheme, "%v", err)
	}
	if len(idx.References) > math.MaxInt32 {
		return NewValidationError(ErrInvalidCount, "too many references (%d)", len(idx.References))
	}

	switch idx.Format {
	case FormatTabix:
		if scheme != binning.TabixScheme {
			return NewValidationError(ErrIncompatibleFormat, "tabix requires scheme %s, got %s", binning.TabixScheme, scheme)
		}
		if idx.Header == nil {
			return NewValidationError(ErrIncompatibleFormat, "tabix index has no header")
		}
		if idx.Aux != nil {
			return NewValidationError(ErrIncompatibleFormat, "tabix index cannot hold auxiliary data")
		}
		if got, want := len(idx.Header.Names), len(idx.References); got != want {
			return NewValidationError(ErrInvalidCount, "header has %d names for %d references", got, want)
		}
		if err := idx.Header.validate(); err != nil {
			return err
		}
	case FormatCSI:
		if idx.Header != nil {
			return NewValidationError(ErrIncompatibleFormat, "CSI index stores its header in the auxiliary data")
		}
		if len(idx.Aux) > math.MaxInt32 {
			return NewValidationError(ErrInvalidCount, "auxiliary data too long (%d bytes)", len(idx.Aux))
		}
	default:
		return NewValidationError(ErrIncompatibleFormat, "unknown format %v", idx.Format)
	}

	for i, ref := range idx.References {
		if err := idx.validateReference(ref); err != nil {
			return fmt.Errorf("reference %d: %w", i, err)
		}
	}
	return nil
}

func (idx *Index) validateReference(ref *ReferenceIndex) error {
	if ref == nil {
		return NewValidationError(ErrInvalidReferenceID, "missing reference index")
	}
	scheme := idx.Scheme()
	if len(ref.Bins) >= math.MaxInt32 {
		return NewValidationError(ErrInvalidCount, "too many bins (%d)", len(ref.Bins))
	}
	for id, bin := range ref.Bins {
		if bin == nil || bin.ID != id {
			return NewValidationError(ErrInvalidBinID, "bin stored under ID %d has a different ID", id)
		}
		if !scheme.Valid(id) {
			return NewValidationError(ErrInvalidBinID, "bin %d outside [0, %d)", id, scheme.BinCount())
		}
		if idx.Format == FormatTabix && bin.Offset != 0 {
			return NewValidationError(ErrIncompatibleFormat, "tabix bin %d cannot hold an offset", id)
		}
		if len(bin.Chunks) > math.MaxInt32 {
			return NewValidationError(ErrInvalidCount, "bin %d has too many chunks (%d)", id, len(bin.Chunks))
		}
		for _, chunk := range bin.Chunks {
			if chunk.End < chunk.Start {
				return NewValidationError(ErrInvalidChunk, "bin %d chunk %s ends before it starts", id, chunk)
			}
		}
	}
	if len(ref.Intervals) > math.MaxInt32 {
		return NewValidationError(ErrInvalidCount, "too many intervals (%d)", len(ref.Intervals))
	}
	if idx.Format == FormatCSI && len(ref.Intervals) > 0 {
		return NewValidationError(ErrIncompatibleFormat, "CSI index cannot hold a linear index")
	}
	return nil
}

// ReferenceNames returns the names of the indexed references, taken from the
// tabix header or from the auxiliary data of a CSI index.  It returns nil if
// the index does not record names.
func (idx *Index) ReferenceNames() []string {
	if idx.Header != nil {
		return idx.Header.Names
	}
	if header, err := DecodeHeader(idx.Aux); err == nil {
		return header.Names
	}
	return nil
}

// ReferenceID returns the position of the named reference.
func (idx *Index) ReferenceID(name string) (int, error) {
	return LookupReference(idx.ReferenceNames(), name)
}

// LookupReference returns the position of name in names.  It is used with
// names read from the header of the indexed file when the index has none.
func LookupReference(names []string, name string) (int, error) {
	for i, n := range names {
		if n == name {
			return i, nil
		}
	}
	return 0, NewValidationError(ErrInvalidReferenceID, "no reference named %q", name)
}
