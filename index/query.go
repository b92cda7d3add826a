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
)

// QueryOption configures a query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	slack     uint64
	sizeLimit uint64
}

// WithSlack merges chunks separated by at most slack (in virtual address
// units), trading over-fetching for fewer seeks.  The default is zero: only
// overlapping or touching chunks are merged.
func WithSlack(slack uint64) QueryOption {
	return func(o *queryOptions) {
		o.slack = slack
	}
}

// WithSizeLimit prevents merging chunks when the merged chunk could span more
// than limit compressed bytes.  Zero, the default, disables the limit.
func WithSizeLimit(limit uint64) QueryOption {
	return func(o *queryOptions) {
		o.sizeLimit = limit
	}
}

// Query returns the sorted, merged chunks of the indexed file that may hold
// records of the reference overlapping [start, end).  The chunks are a
// superset: callers must still check each record they decode.
func (idx *Index) Query(referenceID int, start, end int64, opts ...QueryOption) ([]bgzf.Chunk, error) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	if referenceID < 0 || referenceID >= len(idx.References) {
		return nil, NewValidationError(ErrInvalidReferenceID, "reference %d outside [0, %d)", referenceID, len(idx.References))
	}
	scheme := idx.Scheme()
	if start < 0 || end <= start || start >= scheme.MaxPosition() {
		return nil, NewValidationError(ErrInvalidInterval, "[%d, %d) with maximum position %d", start, end, scheme.MaxPosition())
	}

	bins, err := scheme.RegionToBins(start, end)
	if err != nil {
		return nil, NewValidationError(ErrInvalidInterval, "%v", err)
	}

	ref := idx.References[referenceID]
	if ref == nil {
		return nil, nil
	}
	threshold := idx.minimumOffset(ref, start)

	var candidates []bgzf.Chunk
	for _, id := range bins {
		bin, ok := ref.Bins[id]
		if !ok {
			continue
		}
		for _, chunk := range bin.Chunks {
			if chunk.End > threshold {
				candidates = append(candidates, chunk)
			}
		}
	}
	return bgzf.Merge(candidates, o.slack, o.sizeLimit), nil
}

// minimumOffset returns the address below which no record overlapping start
// can begin.  Tabix indexes use the linear index; CSI indexes use the offset
// of the finest bin containing start, or of its closest recorded ancestor.
func (idx *Index) minimumOffset(ref *ReferenceIndex, start int64) bgzf.Address {
	if n := len(ref.Intervals); n > 0 {
		i := start >> uint(idx.MinShift)
		if i >= int64(n) {
			i = int64(n - 1)
		}
		return ref.Intervals[i]
	}

	scheme := idx.Scheme()
	for bin := scheme.FinestBin(start); ; bin = scheme.Parent(bin) {
		if b, ok := ref.Bins[bin]; ok {
			return b.Offset
		}
		if bin == 0 {
			return 0
		}
	}
}
