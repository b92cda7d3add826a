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

package indexer

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/googlegenomics/htsindex/index"
)

// Columns read from SAM and VCF records in addition to the header columns.
const (
	samCigarColumn = 6
	vcfRefColumn   = 4
	vcfInfoColumn  = 8
)

// record is the position of a single line, in 0-based half open coordinates.
type record struct {
	name       string
	start, end int64
}

type parser struct {
	header    index.Header
	zeroBased bool
	kind      int32
	columns   int
}

func newParser(header index.Header) (*parser, error) {
	if header.ColumnSequence < 1 || header.ColumnBegin < 1 || header.ColumnEnd < 0 {
		return nil, index.NewValidationError(index.ErrInvalidHeader, "invalid columns (sequence %d, begin %d, end %d)", header.ColumnSequence, header.ColumnBegin, header.ColumnEnd)
	}
	p := &parser{
		header:    header,
		zeroBased: header.Format&index.FormatZeroBased != 0,
		kind:      header.Format &^ index.FormatZeroBased,
	}
	for _, column := range []int32{header.ColumnSequence, header.ColumnBegin, header.ColumnEnd} {
		if int(column) > p.columns {
			p.columns = int(column)
		}
	}
	switch p.kind {
	case index.FormatSAM:
		p.columns = max(p.columns, samCigarColumn)
	case index.FormatVCF:
		p.columns = max(p.columns, vcfInfoColumn)
	}
	return p, nil
}

// parse extracts the position of line.  Missing trailing SAM and VCF columns
// are tolerated; the header columns are required.
func (p *parser) parse(line []byte) (record, error) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	fields := bytes.SplitN(line, []byte{'\t'}, p.columns+1)
	column := func(n int32) []byte {
		if n < 1 || int(n) > len(fields) {
			return nil
		}
		return fields[n-1]
	}

	var r record
	name := column(p.header.ColumnSequence)
	if len(name) == 0 {
		return record{}, fmt.Errorf("%w: missing sequence name in column %d", ErrInvalidRecord, p.header.ColumnSequence)
	}
	r.name = string(name)

	begin, err := parsePosition(column(p.header.ColumnBegin))
	if err != nil {
		return record{}, fmt.Errorf("%w: begin column %d: %v", ErrInvalidRecord, p.header.ColumnBegin, err)
	}
	r.start = begin
	if !p.zeroBased {
		r.start--
	}
	if r.start < 0 {
		return record{}, fmt.Errorf("%w: begin %d out of range", ErrInvalidRecord, begin)
	}
	r.end = r.start + 1

	switch {
	case p.kind == index.FormatSAM:
		if length := referenceLength(column(samCigarColumn)); length > 0 {
			r.end = r.start + length
		}
	case p.kind == index.FormatVCF:
		if ref := column(vcfRefColumn); len(ref) > 0 {
			r.end = r.start + int64(len(ref))
		}
		if end, ok := infoEnd(column(vcfInfoColumn)); ok && end > r.start {
			r.end = end
		}
	case p.header.ColumnEnd > 0:
		end, err := parsePosition(column(p.header.ColumnEnd))
		if err != nil {
			return record{}, fmt.Errorf("%w: end column %d: %v", ErrInvalidRecord, p.header.ColumnEnd, err)
		}
		if end > r.start {
			r.end = end
		}
	}
	return r, nil
}

func parsePosition(field []byte) (int64, error) {
	if len(field) == 0 {
		return 0, errors.New("missing value")
	}
	return strconv.ParseInt(string(field), 10, 64)
}

// referenceLength returns the number of reference bases covered by a CIGAR
// string, or 0 if it is unavailable.
func referenceLength(cigar []byte) int64 {
	var length, n int64
	for _, c := range cigar {
		switch {
		case c >= '0' && c <= '9':
			n = n*10 + int64(c-'0')
		case c == 'M' || c == 'D' || c == 'N' || c == '=' || c == 'X':
			length += n
			n = 0
		default:
			n = 0
		}
	}
	return length
}

// infoEnd returns the value of the END key of a VCF INFO column.
func infoEnd(info []byte) (int64, bool) {
	for _, entry := range bytes.Split(info, []byte{';'}) {
		value, ok := bytes.CutPrefix(entry, []byte("END="))
		if !ok {
			continue
		}
		end, err := strconv.ParseInt(string(value), 10, 64)
		return end, err == nil
	}
	return 0, false
}
