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

// Package binning implements the hierarchical binning scheme shared by the
// tabix and CSI index formats (http://samtools.github.io/hts-specs/CSIv1.pdf).
//
// A scheme with minimum shift m and depth d has d+1 levels.  Level 0 holds a
// single bin spanning 2^(m+3d) positions and every level below it splits each
// bin of the previous level into eight.  Bins of level l are numbered
// contiguously starting at ((1<<3l)-1)/7, so the parent of bin b is (b-1)>>3.
package binning

import (
	"errors"
	"fmt"
)

// ErrInvalidInterval is returned for intervals that cannot be binned.
var ErrInvalidInterval = errors.New("invalid interval")

// TabixScheme is the fixed scheme used by tabix and BAI indexes.
var TabixScheme = Scheme{MinShift: 14, Depth: 5}

// Scheme describes a binning index layout.
type Scheme struct {
	// MinShift is the number of bits for the minimal interval.
	MinShift int
	// Depth is the depth of the binning index.
	Depth int
}

// RegionToBin returns the smallest bin of the scheme with the given
// parameters that contains [start, end).
func RegionToBin(minShift, depth int, start, end int64) (uint32, error) {
	return Scheme{minShift, depth}.RegionToBin(start, end)
}

// RegionToBins returns every bin of the scheme with the given parameters that
// overlaps [start, end).
func RegionToBins(minShift, depth int, start, end int64) ([]uint32, error) {
	return Scheme{minShift, depth}.RegionToBins(start, end)
}

// String returns a human readable description of the receiver.
func (s Scheme) String() string {
	return fmt.Sprintf("[min_shift:%d, depth:%d]", s.MinShift, s.Depth)
}

// Validate reports whether the scheme parameters are usable.
func (s Scheme) Validate() error {
	if s.MinShift <= 0 || s.Depth <= 0 {
		return fmt.Errorf("scheme %s: parameters must be positive", s)
	}
	// Bin IDs are stored as uint32 and positions as int64.
	if s.Depth > 9 || s.MinShift+3*s.Depth > 62 {
		return fmt.Errorf("scheme %s: parameters too large", s)
	}
	return nil
}

// BinCount returns the number of bins addressable by the scheme.
func (s Scheme) BinCount() uint32 {
	return uint32(((1 << (3 * uint(s.Depth+1))) - 1) / 7)
}

// MetadataBinID returns the ID of the pseudo-bin used to store reference
// metadata.
func (s Scheme) MetadataBinID() uint32 {
	return s.BinCount() + 1
}

// MaxPosition returns the (exclusive) upper bound for positions.
func (s Scheme) MaxPosition() int64 {
	return 1 << uint(s.MinShift+3*s.Depth)
}

// Valid reports whether bin is an ordinary bin of the scheme.
func (s Scheme) Valid(bin uint32) bool {
	return bin < s.BinCount()
}

// Level returns the level of bin, 0 being the coarsest.
func (s Scheme) Level(bin uint32) int {
	level := 0
	for level < s.Depth && bin >= firstBin(level+1) {
		level++
	}
	return level
}

// Parent returns the bin containing bin at the level above.  The parent of
// bin 0 is 0.
func (s Scheme) Parent(bin uint32) uint32 {
	if bin == 0 {
		return 0
	}
	return (bin - 1) >> 3
}

// Window returns the half-open range of positions covered by bin.
func (s Scheme) Window(bin uint32) (int64, int64) {
	level := s.Level(bin)
	shift := uint(s.MinShift + 3*(s.Depth-level))
	index := int64(bin - firstBin(level))
	return index << shift, (index + 1) << shift
}

// FinestBin returns the bin of the finest level containing position.
func (s Scheme) FinestBin(position int64) uint32 {
	return firstBin(s.Depth) + uint32(position>>uint(s.MinShift))
}

// RegionToBin returns the smallest bin that fully contains [start, end).  An
// empty region is treated as the single position start.
func (s Scheme) RegionToBin(start, end int64) (uint32, error) {
	start, end, err := s.clamp(start, end)
	if err != nil {
		return 0, err
	}

	// This follows the reg2bin reference code published with the CSI format.
	end--
	shift := uint(s.MinShift)
	for level := s.Depth; level > 0; level-- {
		if start>>shift == end>>shift {
			return firstBin(level) + uint32(start>>shift), nil
		}
		shift += 3
	}
	return 0, nil
}

// RegionToBins returns, in ascending order, every bin at every level whose
// window overlaps [start, end).  Bin 0 is always included.
func (s Scheme) RegionToBins(start, end int64) ([]uint32, error) {
	start, end, err := s.clamp(start, end)
	if err != nil {
		return nil, err
	}

	end--
	var bins []uint32
	shift := uint(s.MinShift + 3*s.Depth)
	for level := 0; level <= s.Depth; level++ {
		offset := firstBin(level)
		for i := offset + uint32(start>>shift); i <= offset+uint32(end>>shift); i++ {
			bins = append(bins, i)
		}
		shift -= 3
	}
	return bins, nil
}

func (s Scheme) clamp(start, end int64) (int64, int64, error) {
	if start < 0 || end < start {
		return 0, 0, fmt.Errorf("%w: [%d, %d)", ErrInvalidInterval, start, end)
	}
	if start >= s.MaxPosition() {
		return 0, 0, fmt.Errorf("%w: start %d exceeds maximum position %d", ErrInvalidInterval, start, s.MaxPosition())
	}
	if end == start {
		end = start + 1
	}
	if end > s.MaxPosition() {
		end = s.MaxPosition()
	}
	return start, end, nil
}

// firstBin returns the ID of the first bin at level.
func firstBin(level int) uint32 {
	return uint32(((1 << (3 * uint(level))) - 1) / 7)
}
