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

import "github.com/googlegenomics/htsindex/bgzf"

// Summary describes the contents of an index.
type Summary struct {
	Format     string             `json:"format"`
	MinShift   int                `json:"minShift"`
	Depth      int                `json:"depth"`
	References []ReferenceSummary `json:"references"`
	Unplaced   *uint64            `json:"unplaced,omitempty"`
}

// ReferenceSummary describes the index of a single reference.
type ReferenceSummary struct {
	Name      string  `json:"name,omitempty"`
	Bins      int     `json:"bins"`
	Chunks    int     `json:"chunks"`
	Intervals int     `json:"intervals"`
	Mapped    *uint64 `json:"mapped,omitempty"`
	Unmapped  *uint64 `json:"unmapped,omitempty"`
	// Span covers every chunk of the reference.  It is empty if the reference
	// has no chunks.
	Span bgzf.Chunk `json:"span"`
}

// Summarize returns a summary of idx.
func (idx *Index) Summarize() Summary {
	names := idx.ReferenceNames()
	summary := Summary{
		Format:     idx.Format.String(),
		MinShift:   idx.MinShift,
		Depth:      idx.Depth,
		References: make([]ReferenceSummary, len(idx.References)),
		Unplaced:   idx.Unplaced,
	}
	for i, ref := range idx.References {
		rs := &summary.References[i]
		if i < len(names) {
			rs.Name = names[i]
		}
		rs.Bins = len(ref.Bins)
		rs.Intervals = len(ref.Intervals)
		if n, ok := ref.MappedRecordCount(); ok {
			rs.Mapped = &n
		}
		if n, ok := ref.UnmappedRecordCount(); ok {
			rs.Unmapped = &n
		}

		first := true
		for _, bin := range ref.Bins {
			rs.Chunks += len(bin.Chunks)
			for _, chunk := range bin.Chunks {
				if first || chunk.Start < rs.Span.Start {
					rs.Span.Start = chunk.Start
				}
				if first || chunk.End > rs.Span.End {
					rs.Span.End = chunk.End
				}
				first = false
			}
		}
	}
	return summary
}

// Size returns an upper bound on the number of compressed bytes covered by
// chunk.
func Size(chunk bgzf.Chunk) uint64 {
	if chunk.End <= chunk.Start {
		return 0
	}
	return chunk.End.BlockOffset() - chunk.Start.BlockOffset() + bgzf.MaximumBlockSize
}
