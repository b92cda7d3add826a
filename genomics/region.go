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

// Package genomics contains definitions related to Genomic data.
package genomics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRegion is returned (wrapped) when a region cannot be parsed.
var ErrInvalidRegion = errors.New("invalid region")

// Region defines a region of genomic interest.
type Region struct {
	// ReferenceName specifies the reference to match.
	ReferenceName string
	// Start and End specify the 0-based, half open range (in base pairs)
	// relative to the reference.  If End is zero, it is treated as though it
	// was set to the last possible position.
	Start, End int64
}

// Bounds returns the interval covered by region, substituting limit for an
// unset End.
func (region Region) Bounds(limit int64) (int64, int64) {
	if region.End == 0 {
		return region.Start, limit
	}
	return region.Start, region.End
}

// String returns region in the form accepted by ParseRegion.
func (region Region) String() string {
	switch {
	case region.End != 0:
		return fmt.Sprintf("%s:%d-%d", region.ReferenceName, region.Start+1, region.End)
	case region.Start != 0:
		return fmt.Sprintf("%s:%d", region.ReferenceName, region.Start+1)
	}
	return region.ReferenceName
}

// ParseRegion parses regions written as "name", "name:start" or
// "name:start-end", where positions are 1-based and inclusive and may contain
// thousands separators.
func ParseRegion(input string) (Region, error) {
	name, span, found := strings.Cut(input, ":")
	if name == "" {
		return Region{}, fmt.Errorf("%w: missing reference name in %q", ErrInvalidRegion, input)
	}
	region := Region{ReferenceName: name}
	if !found {
		return region, nil
	}

	first, last, ranged := strings.Cut(span, "-")
	start, err := parsePosition(first)
	if err != nil {
		return Region{}, fmt.Errorf("%w: start of %q: %v", ErrInvalidRegion, input, err)
	}
	region.Start = start - 1
	if !ranged {
		return region, nil
	}

	end, err := parsePosition(last)
	if err != nil {
		return Region{}, fmt.Errorf("%w: end of %q: %v", ErrInvalidRegion, input, err)
	}
	if end < start {
		return Region{}, fmt.Errorf("%w: %q ends before it starts", ErrInvalidRegion, input)
	}
	region.End = end
	return region, nil
}

func parsePosition(text string) (int64, error) {
	position, err := strconv.ParseInt(strings.ReplaceAll(text, ",", ""), 10, 64)
	if err != nil {
		return 0, err
	}
	if position < 1 {
		return 0, fmt.Errorf("position %d is not positive", position)
	}
	return position, nil
}
