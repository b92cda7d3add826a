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

// Package indexer builds tabix and CSI indexes for BGZF compressed,
// coordinate sorted, tab delimited text files.
package indexer

import (
	"errors"
	"fmt"
	"io"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/binning"
	"github.com/googlegenomics/htsindex/index"
)

var (
	// ErrUnsorted is returned when the records are not grouped by reference
	// and sorted by start position.
	ErrUnsorted = errors.New("records are not sorted")
	// ErrInvalidRecord is returned when a record cannot be parsed.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUnknownPreset is returned by Preset for unrecognized names.
	ErrUnknownPreset = errors.New("unknown preset")
)

var presets = map[string]index.Header{
	"vcf": {Format: index.FormatVCF, ColumnSequence: 1, ColumnBegin: 2, Meta: '#'},
	"bed": {Format: index.FormatGeneric | index.FormatZeroBased, ColumnSequence: 1, ColumnBegin: 2, ColumnEnd: 3, Meta: '#'},
	"gff": {Format: index.FormatGeneric, ColumnSequence: 1, ColumnBegin: 4, ColumnEnd: 5, Meta: '#'},
	"sam": {Format: index.FormatSAM, ColumnSequence: 3, ColumnBegin: 4, Meta: '@'},
}

// Preset returns the column layout of a well known file type: one of vcf,
// bed, gff or sam.
func Preset(name string) (index.Header, error) {
	header, ok := presets[name]
	if !ok {
		return index.Header{}, fmt.Errorf("%w %q", ErrUnknownPreset, name)
	}
	return header, nil
}

// Options configures Build.
type Options struct {
	// Header describes the columns of the input.  Its Names are ignored.
	Header index.Header
	// Format selects the output format.
	Format index.Format
	// Scheme is the binning scheme of a CSI index.  The zero value selects
	// the tabix scheme.
	Scheme binning.Scheme
}

// Build reads a BGZF compressed text file from r and returns an index of its
// records.
func Build(r io.Reader, options Options) (*index.Index, error) {
	scheme := options.Scheme
	if scheme == (binning.Scheme{}) {
		scheme = binning.TabixScheme
	}
	if err := scheme.Validate(); err != nil {
		return nil, index.NewValidationError(index.ErrInvalidScheme, "%v", err)
	}
	if options.Format == index.FormatTabix && scheme != binning.TabixScheme {
		return nil, index.NewValidationError(index.ErrIncompatibleFormat, "tabix requires scheme %s, got %s", binning.TabixScheme, scheme)
	}
	parser, err := newParser(options.Header)
	if err != nil {
		return nil, err
	}

	b := newBuilder(scheme)
	lines := newLineReader(r)
	for number := 1; ; number++ {
		line, chunk, err := lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", number, err)
		}
		if number <= int(options.Header.Skip) || len(line) == 0 {
			continue
		}
		if options.Header.Meta != 0 && line[0] == byte(options.Header.Meta) {
			continue
		}
		rec, err := parser.parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", number, err)
		}
		if err := b.add(rec, chunk); err != nil {
			return nil, fmt.Errorf("line %d: %w", number, err)
		}
	}
	return b.finish(options)
}

type builder struct {
	scheme     binning.Scheme
	names      []string
	seen       map[string]bool
	references []*index.ReferenceIndex
	current    *index.ReferenceIndex
	last       int64
}

func newBuilder(scheme binning.Scheme) *builder {
	return &builder{scheme: scheme, seen: make(map[string]bool)}
}

func (b *builder) add(r record, chunk bgzf.Chunk) error {
	if len(b.names) == 0 || b.names[len(b.names)-1] != r.name {
		if b.seen[r.name] {
			return fmt.Errorf("%w: reference %q appears in more than one block", ErrUnsorted, r.name)
		}
		b.seen[r.name] = true
		b.names = append(b.names, r.name)
		b.current = index.NewReferenceIndex()
		b.current.Metadata = &index.Metadata{Start: chunk.Start}
		b.references = append(b.references, b.current)
		b.last = 0
	}
	if r.start < b.last {
		return fmt.Errorf("%w: %s:%d follows position %d", ErrUnsorted, r.name, r.start+1, b.last+1)
	}
	b.last = r.start

	start, end := r.start, r.end
	if limit := b.scheme.MaxPosition(); end > limit {
		end = limit
	}
	if start >= end {
		return fmt.Errorf("%w: position %d beyond %d", ErrInvalidRecord, r.start+1, b.scheme.MaxPosition())
	}
	id, err := b.scheme.RegionToBin(start, end)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	ref := b.current
	bin, ok := ref.Bins[id]
	if !ok {
		bin = &index.Bin{ID: id}
		ref.Bins[id] = bin
	}
	if n := len(bin.Chunks); n > 0 && bin.Chunks[n-1].End == chunk.Start {
		bin.Chunks[n-1].End = chunk.End
	} else {
		bin.Chunks = append(bin.Chunks, chunk)
	}

	shift := uint(b.scheme.MinShift)
	first, last := start>>shift, (end-1)>>shift
	for int64(len(ref.Intervals)) <= last {
		ref.Intervals = append(ref.Intervals, bgzf.LastAddress)
	}
	for window := first; window <= last; window++ {
		if ref.Intervals[window] > chunk.Start {
			ref.Intervals[window] = chunk.Start
		}
	}

	ref.Metadata.End = chunk.End
	ref.Metadata.Mapped++
	return nil
}

func (b *builder) finish(options Options) (*index.Index, error) {
	for _, ref := range b.references {
		fillIntervals(ref)
	}

	header := options.Header
	header.Names = b.names
	if header.Names == nil {
		header.Names = []string{}
	}

	idx := &index.Index{
		Format:     options.Format,
		MinShift:   b.scheme.MinShift,
		Depth:      b.scheme.Depth,
		References: b.references,
	}
	switch options.Format {
	case index.FormatTabix:
		idx.Header = &header
	case index.FormatCSI:
		idx.Aux = header.Encode()
		for i, ref := range b.references {
			idx.References[i] = ref.WithBinOffsets(b.scheme)
		}
	}
	if idx.References == nil {
		idx.References = []*index.ReferenceIndex{}
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// fillIntervals replaces the entries of windows without records with the
// entry of the previous window, or the start of the reference for leading
// windows.
func fillIntervals(ref *index.ReferenceIndex) {
	previous := ref.Metadata.Start
	for i, offset := range ref.Intervals {
		if offset == bgzf.LastAddress {
			ref.Intervals[i] = previous
		} else {
			previous = offset
		}
	}
}
