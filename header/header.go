// Copyright 2017 Google Inc.
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

// Package header reads the names of reference sequences from the headers of
// BAM, BCF, VCF and SAM files.  CSI indexes of binary formats do not record
// these names themselves.
package header

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/internal/binary"
)

const (
	bamMagic = "BAM\x01"
	bcfMagic = "BCF\x02"

	// This is just to prevent arbitrarily long allocations due to malformed
	// data.  No reference name should be longer than this in practice.
	maximumNameLength = 1024
)

// ErrUnknownFormat is returned when the data is not BAM, BCF, VCF or SAM.
var ErrUnknownFormat = errors.New("unknown data format")

// ReferenceNames returns the names of the reference sequences declared by the
// header of the data read from r, ordered by reference ID.  The data may be
// BGZF compressed.
func ReferenceNames(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(2); err == nil && bytes.Equal(prefix, []byte{0x1f, 0x8b}) {
		zr, err := bgzf.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	}

	magic, err := br.Peek(len(bamMagic))
	if len(magic) == 0 {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	switch {
	case string(magic) == bamMagic:
		return readBAM(br)
	case string(magic) == bcfMagic:
		return readBCF(br)
	case magic[0] == '#':
		return readVCF(br)
	case magic[0] == '@':
		return readSAM(br)
	}
	return nil, ErrUnknownFormat
}

func readBAM(r io.Reader) ([]string, error) {
	if err := binary.ExpectBytes(r, []byte(bamMagic)); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	var length int32
	if err := binary.Read(r, &length); err != nil {
		return nil, fmt.Errorf("reading SAM header length: %w", err)
	}
	if length < 0 {
		return nil, fmt.Errorf("invalid SAM header length (%d bytes)", length)
	}
	if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
		return nil, fmt.Errorf("reading past SAM header: %w", err)
	}
	var count int32
	if err := binary.Read(r, &count); err != nil {
		return nil, fmt.Errorf("reading references count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid references count (%d)", count)
	}

	var names []string
	for i := int32(0); i < count; i++ {
		if err := binary.Read(r, &length); err != nil {
			return nil, fmt.Errorf("reading name length: %w", err)
		}
		// The name length includes a null terminating character.
		if length < 1 || length > maximumNameLength {
			return nil, fmt.Errorf("invalid name length (%d bytes)", length)
		}
		name := make([]byte, length)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("reading name: %w", err)
		}
		names = append(names, string(name[:length-1]))
		// Read and discard the reference length.
		if err := binary.Read(r, &length); err != nil {
			return nil, fmt.Errorf("reading reference length: %w", err)
		}
	}
	return names, nil
}

func readBCF(r io.Reader) ([]string, error) {
	var magic struct {
		Magic        [4]byte
		MinorVersion uint8
		TextLength   uint32
	}
	if err := binary.Read(r, &magic); err != nil {
		return nil, fmt.Errorf("reading BCF header: %w", err)
	}
	return readVCF(io.LimitReader(r, int64(magic.TextLength)))
}

// readVCF collects the IDs of the contig lines of a VCF header.  An IDX field
// overrides the position of the contig.
func readVCF(r io.Reader) ([]string, error) {
	var names []string
	err := scanHeader(r, '#', func(line string) error {
		if !strings.HasPrefix(line, "##contig=") {
			return nil
		}
		id := contigField(line, "ID")
		if id == "" {
			return fmt.Errorf("contig line without ID: %q", line)
		}
		position := len(names)
		if idx := contigField(line, "IDX"); idx != "" {
			n, err := strconv.Atoi(idx)
			if err != nil || n < 0 || n > 1<<20 {
				return fmt.Errorf("invalid contig IDX %q", idx)
			}
			position = n
		}
		for len(names) <= position {
			names = append(names, "")
		}
		names[position] = id
		return nil
	})
	return names, err
}

// readSAM collects the SN tags of the @SQ lines of a SAM header.
func readSAM(r io.Reader) ([]string, error) {
	var names []string
	err := scanHeader(r, '@', func(line string) error {
		if !strings.HasPrefix(line, "@SQ\t") {
			return nil
		}
		for _, field := range strings.Split(line, "\t")[1:] {
			if name, ok := strings.CutPrefix(field, "SN:"); ok {
				names = append(names, name)
				return nil
			}
		}
		return fmt.Errorf("@SQ line without SN tag: %q", line)
	})
	return names, err
}

// scanHeader calls fn for every line starting with prefix until the first
// line that does not.
func scanHeader(r io.Reader, prefix byte, fn func(string) error) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if line[0] != prefix {
				return nil
			}
			if err := fn(strings.TrimRight(line, "\r\n\x00")); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
	}
}

func contigField(input, name string) string {
	field := name + "="
	for {
		start := strings.Index(input, field)
		if start == -1 {
			return ""
		}
		if start > 0 && !isDelimiter(input[start-1]) {
			input = input[start+len(field):]
			continue
		}
		input = input[start+len(field):]
		if end := strings.IndexAny(input, ",>"); end >= 0 {
			return input[:end]
		}
		return input
	}
}

func isDelimiter(chr byte) bool {
	return chr == ',' || chr == '<'
}
