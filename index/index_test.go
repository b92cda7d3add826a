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
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/googlegenomics/htsindex/bgzf"
)

func tabixIndex(refs ...*ReferenceIndex) *Index {
	names := make([]string, len(refs))
	for i := range refs {
		names[i] = fmt.Sprintf("chr%d", i+1)
	}
	return &Index{
		Format:     FormatTabix,
		MinShift:   14,
		Depth:      5,
		Header:     &Header{Format: FormatVCF, ColumnSequence: 1, ColumnBegin: 2, ColumnEnd: 0, Meta: '#', Names: names},
		References: refs,
	}
}

func reference(intervals []bgzf.Address, bins ...*Bin) *ReferenceIndex {
	ref := NewReferenceIndex()
	for _, bin := range bins {
		ref.Bins[bin.ID] = bin
	}
	ref.Intervals = intervals
	return ref
}

func TestQuery(t *testing.T) {
	idx := tabixIndex(
		reference([]bgzf.Address{50},
			&Bin{ID: 4681, Chunks: []bgzf.Chunk{{Start: 100, End: 200}, {Start: 205, End: 300}, {Start: 500, End: 600}}}),
	)

	got, err := idx.Query(0, 0, 16384, WithSlack(5))
	if err != nil {
		t.Fatalf("Query() returned unexpected error: %v", err)
	}
	want := []bgzf.Chunk{{Start: 100, End: 300}, {Start: 500, End: 600}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Query() mismatch (-want +got):\n%s", diff)
	}

	got, err = idx.Query(0, 0, 16384)
	if err != nil {
		t.Fatalf("Query() returned unexpected error: %v", err)
	}
	want = []bgzf.Chunk{{Start: 100, End: 200}, {Start: 205, End: 300}, {Start: 500, End: 600}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Query() without slack mismatch (-want +got):\n%s", diff)
	}
}

func TestQuery_Regions(t *testing.T) {
	a := bgzf.NewAddress
	idx := tabixIndex(
		reference(
			[]bgzf.Address{a(0, 10), a(100, 0), a(200, 0), a(300, 0)},
			&Bin{ID: 0, Chunks: []bgzf.Chunk{{Start: a(0, 10), End: a(0, 90)}, {Start: a(400, 0), End: a(400, 50)}}},
			&Bin{ID: 4681, Chunks: []bgzf.Chunk{{Start: a(0, 90), End: a(100, 0)}}},
			&Bin{ID: 4682, Chunks: []bgzf.Chunk{{Start: a(100, 0), End: a(200, 0)}}},
			&Bin{ID: 4683, Chunks: []bgzf.Chunk{{Start: a(200, 0), End: a(300, 0)}}},
			&Bin{ID: 4684, Chunks: []bgzf.Chunk{{Start: a(300, 0), End: a(400, 0)}}},
		),
		reference(nil),
	)

	testCases := []struct {
		name       string
		ref        int
		start, end int64
		want       []bgzf.Chunk
	}{
		{"first window", 0, 0, 100, []bgzf.Chunk{{Start: a(0, 10), End: a(100, 0)}, {Start: a(400, 0), End: a(400, 50)}}},
		{"second window prunes level zero chunk", 0, 1 << 14, 1<<14 + 1, []bgzf.Chunk{{Start: a(100, 0), End: a(200, 0)}, {Start: a(400, 0), End: a(400, 50)}}},
		{"third window prunes everything earlier", 0, 2 << 14, 3 << 14, []bgzf.Chunk{{Start: a(200, 0), End: a(300, 0)}, {Start: a(400, 0), End: a(400, 50)}}},
		{"spanning windows merges", 0, 0, 4 << 14, []bgzf.Chunk{{Start: a(0, 10), End: a(400, 50)}}},
		{"past the linear index clamps", 0, 100 << 14, 101 << 14, []bgzf.Chunk{{Start: a(400, 0), End: a(400, 50)}}},
		{"reference without records", 1, 0, 1 << 20, nil},
		{"point at end of reference", 0, 1<<29 - 1, 1 << 29, []bgzf.Chunk{{Start: a(400, 0), End: a(400, 50)}}},
		{"end beyond maximum position", 0, 3 << 14, 1 << 40, []bgzf.Chunk{{Start: a(300, 0), End: a(400, 50)}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := idx.Query(tc.ref, tc.start, tc.end)
			if err != nil {
				t.Fatalf("Query() returned unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Query() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuery_OutsideRecordedBins(t *testing.T) {
	idx := tabixIndex(reference(nil, &Bin{ID: 4681, Chunks: []bgzf.Chunk{{Start: 1, End: 2}}}))
	got, err := idx.Query(0, 10<<14, 11<<14)
	if err != nil {
		t.Fatalf("Query() returned unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Query(): got %v, want no chunks", got)
	}
}

func TestQuery_Errors(t *testing.T) {
	idx := tabixIndex(reference(nil))
	testCases := []struct {
		name       string
		ref        int
		start, end int64
		want       error
	}{
		{"negative reference", -1, 0, 10, ErrInvalidReferenceID},
		{"reference out of range", 1, 0, 10, ErrInvalidReferenceID},
		{"empty interval", 0, 10, 10, ErrInvalidInterval},
		{"reversed interval", 0, 10, 5, ErrInvalidInterval},
		{"negative start", 0, -5, 5, ErrInvalidInterval},
		{"start beyond maximum position", 0, 1 << 29, 1<<29 + 5, ErrInvalidInterval},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := idx.Query(tc.ref, tc.start, tc.end)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Query(): got error %v, want %v", err, tc.want)
			}
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Errorf("Query(): got error of type %T, want *ValidationError", err)
			}
		})
	}
}

func TestQuery_CSIBinOffsets(t *testing.T) {
	a := bgzf.NewAddress
	idx := &Index{
		Format:   FormatCSI,
		MinShift: 14,
		Depth:    5,
		References: []*ReferenceIndex{reference(nil,
			&Bin{ID: 585, Offset: a(10, 0), Chunks: []bgzf.Chunk{{Start: a(10, 0), End: a(20, 0)}}},
			&Bin{ID: 4681, Offset: a(10, 0), Chunks: []bgzf.Chunk{{Start: a(20, 0), End: a(30, 0)}}},
			&Bin{ID: 4683, Offset: a(40, 0), Chunks: []bgzf.Chunk{{Start: a(40, 0), End: a(50, 0)}}},
		)},
	}

	testCases := []struct {
		name       string
		start, end int64
		want       []bgzf.Chunk
	}{
		{"finest bin present", 2 << 14, 3 << 14, []bgzf.Chunk{{Start: a(40, 0), End: a(50, 0)}}},
		{"finest bin absent uses parent", 1 << 14, 2 << 14, []bgzf.Chunk{{Start: a(10, 0), End: a(20, 0)}}},
		{"first window", 0, 1, []bgzf.Chunk{{Start: a(10, 0), End: a(30, 0)}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := idx.Query(0, tc.start, tc.end)
			if err != nil {
				t.Fatalf("Query() returned unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Query() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuery_Concurrent(t *testing.T) {
	idx := tabixIndex(reference([]bgzf.Address{0},
		&Bin{ID: 4681, Chunks: []bgzf.Chunk{{Start: 100, End: 200}, {Start: 150, End: 300}}}))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunks, err := idx.Query(0, 0, 1000)
			if err != nil {
				errs <- err
				return
			}
			if len(chunks) != 1 || chunks[0] != (bgzf.Chunk{Start: 100, End: 300}) {
				errs <- fmt.Errorf("unexpected chunks %v", chunks)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if got := idx.References[0].Bins[4681].Chunks; len(got) != 2 {
		t.Errorf("Query modified the index: %v", got)
	}
}

func TestRecordCounts(t *testing.T) {
	ref := NewReferenceIndex()
	if _, ok := ref.MappedRecordCount(); ok {
		t.Errorf("MappedRecordCount() reported a count without metadata")
	}
	ref.Metadata = &Metadata{Start: 1, End: 2, Mapped: 55, Unmapped: 3}
	if got, ok := ref.MappedRecordCount(); !ok || got != 55 {
		t.Errorf("MappedRecordCount(): got (%d, %v), want (55, true)", got, ok)
	}
	if got, ok := ref.UnmappedRecordCount(); !ok || got != 3 {
		t.Errorf("UnmappedRecordCount(): got (%d, %v), want (3, true)", got, ok)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Index)
		want   error
	}{
		{"valid", func(*Index) {}, nil},
		{"bin ID beyond the scheme", func(idx *Index) {
			idx.References[0].Bins[999999] = &Bin{ID: 999999}
		}, ErrInvalidBinID},
		{"metadata bin stored as a bin", func(idx *Index) {
			idx.References[0].Bins[37450] = &Bin{ID: 37450}
		}, ErrInvalidBinID},
		{"bin keyed by another ID", func(idx *Index) {
			idx.References[0].Bins[1] = &Bin{ID: 2}
		}, ErrInvalidBinID},
		{"reversed chunk", func(idx *Index) {
			idx.References[0].Bins[4681].Chunks = []bgzf.Chunk{{Start: 10, End: 5}}
		}, ErrInvalidChunk},
		{"missing names", func(idx *Index) {
			idx.Header.Names = nil
		}, ErrInvalidCount},
		{"missing header", func(idx *Index) {
			idx.Header = nil
		}, ErrIncompatibleFormat},
		{"tabix with another scheme", func(idx *Index) {
			idx.MinShift = 12
		}, ErrIncompatibleFormat},
		{"tabix with bin offsets", func(idx *Index) {
			idx.References[0].Bins[4681].Offset = 5
		}, ErrIncompatibleFormat},
		{"CSI with linear index", func(idx *Index) {
			idx.Format = FormatCSI
			idx.Header = nil
		}, ErrIncompatibleFormat},
		{"zero depth", func(idx *Index) {
			idx.Depth = 0
		}, ErrInvalidScheme},
		{"nil reference", func(idx *Index) {
			idx.References[0] = nil
		}, ErrInvalidReferenceID},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			idx := tabixIndex(reference([]bgzf.Address{1},
				&Bin{ID: 4681, Chunks: []bgzf.Chunk{{Start: 1, End: 2}}}))
			tc.modify(idx)
			err := idx.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Validate() returned unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Validate(): got error %v, want %v", err, tc.want)
			}
		})
	}
}

func TestReferenceNames(t *testing.T) {
	idx := tabixIndex(reference(nil), reference(nil))
	if id, err := idx.ReferenceID("chr2"); err != nil || id != 1 {
		t.Errorf("ReferenceID(chr2): got (%d, %v), want (1, nil)", id, err)
	}
	if _, err := idx.ReferenceID("chrX"); !errors.Is(err, ErrInvalidReferenceID) {
		t.Errorf("ReferenceID(chrX): got error %v, want %v", err, ErrInvalidReferenceID)
	}

	csi := &Index{Format: FormatCSI, MinShift: 14, Depth: 5, Aux: idx.Header.Encode()}
	if diff := cmp.Diff([]string{"chr1", "chr2"}, csi.ReferenceNames()); diff != "" {
		t.Errorf("ReferenceNames() from aux mismatch (-want +got):\n%s", diff)
	}
	csi.Aux = []byte{1, 2, 3}
	if got := csi.ReferenceNames(); got != nil {
		t.Errorf("ReferenceNames() from opaque aux: got %v, want nil", got)
	}
}

func TestHeader_EncodeDecode(t *testing.T) {
	header := &Header{Format: FormatVCF | FormatZeroBased, ColumnSequence: 1, ColumnBegin: 2, ColumnEnd: 3, Meta: '#', Skip: 1, Names: []string{"1", "", "chrUn_gl000220"}}
	got, err := DecodeHeader(header.Encode())
	if err != nil {
		t.Fatalf("DecodeHeader() returned unexpected error: %v", err)
	}
	if diff := cmp.Diff(header, got); diff != "" {
		t.Errorf("DecodeHeader() mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseNames([]byte("chr1\x00chr2")); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("ParseNames() of unterminated names: got error %v, want %v", err, ErrInvalidHeader)
	}
	if _, err := DecodeHeader(header.Encode()[:10]); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("DecodeHeader() of short data: got error %v, want %v", err, ErrInvalidHeader)
	}
}

func TestConvert(t *testing.T) {
	a := bgzf.NewAddress
	tabix := tabixIndex(reference(
		[]bgzf.Address{a(1, 0), a(2, 0), a(3, 0)},
		&Bin{ID: 4681, Chunks: []bgzf.Chunk{{Start: a(1, 0), End: a(2, 0)}}},
		&Bin{ID: 4682, Chunks: []bgzf.Chunk{{Start: a(2, 0), End: a(3, 0)}}},
		&Bin{ID: 4683, Chunks: []bgzf.Chunk{{Start: a(3, 0), End: a(4, 0)}}},
		&Bin{ID: 585, Chunks: []bgzf.Chunk{{Start: a(1, 5), End: a(3, 5)}}},
	))
	unplaced := uint64(7)
	tabix.Unplaced = &unplaced

	csi, err := Convert(tabix, FormatCSI)
	if err != nil {
		t.Fatalf("Convert() to CSI returned unexpected error: %v", err)
	}
	if err := csi.Validate(); err != nil {
		t.Fatalf("Converted CSI index is invalid: %v", err)
	}
	if got, want := csi.References[0].Bins[4682].Offset, a(2, 0); got != want {
		t.Errorf("Bin offset: got %s, want %s", got, want)
	}

	back, err := Convert(csi, FormatTabix)
	if err != nil {
		t.Fatalf("Convert() to tabix returned unexpected error: %v", err)
	}
	if diff := cmp.Diff(tabix, back); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}

	for start := int64(0); start < 4<<14; start += 1 << 13 {
		want, err := tabix.Query(0, start, start+100)
		if err != nil {
			t.Fatalf("Query() returned unexpected error: %v", err)
		}
		got, err := csi.Query(0, start, start+100)
		if err != nil {
			t.Fatalf("Query() returned unexpected error: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Query(%d) differs after conversion (-tabix +csi):\n%s", start, diff)
		}
	}
}

func TestConvert_Errors(t *testing.T) {
	csi := &Index{Format: FormatCSI, MinShift: 12, Depth: 6, References: []*ReferenceIndex{reference(nil)}}
	if _, err := Convert(csi, FormatTabix); !errors.Is(err, ErrIncompatibleFormat) {
		t.Errorf("Convert() with CSI scheme: got error %v, want %v", err, ErrIncompatibleFormat)
	}
	csi.MinShift, csi.Depth = 14, 5
	if _, err := Convert(csi, FormatTabix); !errors.Is(err, ErrIncompatibleFormat) {
		t.Errorf("Convert() without header: got error %v, want %v", err, ErrIncompatibleFormat)
	}
}
