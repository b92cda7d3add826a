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

// Package codec reads and writes tabix (http://samtools.github.io/hts-specs/tabix.pdf)
// and CSI (http://samtools.github.io/hts-specs/CSIv1.pdf) index data.
//
// Both formats share the encoding of each reference: a list of bins, each with
// a list of chunks, optionally followed by a linear index.  They differ in the
// header and in whether bins carry an offset; formatCodec captures those
// differences.
package codec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/index"
	"github.com/googlegenomics/htsindex/internal/binary"
)

const (
	tabixMagic = "TBI\x01"
	csiMagic   = "CSI\x01"
)

// formatCodec reads and writes the format specific parts of index data.
type formatCodec interface {
	// magic returns the four bytes starting the index data.
	magic() string
	// readHeader reads everything between the magic and the first reference
	// into idx and returns the number of references.
	readHeader(r io.Reader, idx *index.Index) (int, error)
	writeHeader(w io.Writer, idx *index.Index) error
	// readBin reads the fields preceding the chunk count of a bin.
	readBin(r io.Reader) (uint32, bgzf.Address, error)
	writeBin(w io.Writer, id uint32, offset bgzf.Address) error
	// linearIndex indicates whether references end with a linear index.
	linearIndex() bool
}

func codecFor(format index.Format) (formatCodec, error) {
	switch format {
	case index.FormatTabix:
		return tabix{}, nil
	case index.FormatCSI:
		return csi{}, nil
	}
	return nil, index.NewValidationError(index.ErrIncompatibleFormat, "unknown format %v", format)
}

// Read reads uncompressed tabix or CSI index data from r.  The format is
// selected by the magic bytes.
func Read(r io.Reader) (*index.Index, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, readError("magic", err)
	}

	var codec formatCodec
	switch string(magic) {
	case tabixMagic:
		codec = tabix{}
	case csiMagic:
		codec = csi{}
	default:
		return nil, index.NewFormatError(index.ErrBadMagic, "got %q (wanted %q or %q)", magic, tabixMagic, csiMagic)
	}

	idx := new(index.Index)
	references, err := codec.readHeader(br, idx)
	if err != nil {
		return nil, err
	}

	scheme := idx.Scheme()
	idx.References = make([]*index.ReferenceIndex, 0, min(references, 1024))
	for i := 0; i < references; i++ {
		ref, err := readReference(br, codec, scheme)
		if err != nil {
			return nil, fmt.Errorf("reference %d: %w", i, err)
		}
		idx.References = append(idx.References, ref)
	}

	var unplaced uint64
	switch err := binary.Read(br, &unplaced); err {
	case nil:
		idx.Unplaced = &unplaced
	case io.EOF:
	default:
		return nil, readError("unplaced record count", err)
	}

	if _, err := br.ReadByte(); err == nil {
		return nil, index.NewFormatError(index.ErrTrailingData, "after unplaced record count")
	} else if err != io.EOF {
		return nil, readError("end of data", err)
	}
	return idx, nil
}

// ReadContext is like Read but stops with ctx.Err() as soon as ctx is done.
func ReadContext(ctx context.Context, r io.Reader) (*index.Index, error) {
	return Read(binary.ContextReader(ctx, r))
}

// ReadCompressed reads BGZF compressed index data, the form in which index
// files are stored.
func ReadCompressed(r io.Reader) (*index.Index, error) {
	zr, err := bgzf.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening compressed index: %w", err)
	}
	defer zr.Close()
	return Read(zr)
}

// ReadAuto reads index data from r, decompressing it first if it is a BGZF
// stream.
func ReadAuto(r io.Reader) (*index.Index, error) {
	br := bufio.NewReader(r)
	prefix, err := br.Peek(2)
	if err != nil {
		return nil, readError("data prefix", err)
	}
	if bytes.Equal(prefix, []byte{0x1f, 0x8b}) {
		return ReadCompressed(br)
	}
	return Read(br)
}

// ReadFile reads the index stored in the named file.  Both compressed and
// uncompressed files are accepted.
func ReadFile(path string) (*index.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAuto(f)
}

// Write validates idx and writes it, uncompressed, to w.  Nothing is written
// if idx is invalid.
func Write(w io.Writer, idx *index.Index) error {
	if err := idx.Validate(); err != nil {
		return err
	}
	codec, err := codecFor(idx.Format)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(codec.magic()); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := codec.writeHeader(bw, idx); err != nil {
		return err
	}
	for i, ref := range idx.References {
		if err := writeReference(bw, codec, idx.Scheme(), ref); err != nil {
			return fmt.Errorf("reference %d: %w", i, err)
		}
	}
	if idx.Unplaced != nil {
		if err := binary.Write(bw, *idx.Unplaced); err != nil {
			return fmt.Errorf("writing unplaced record count: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing index: %w", err)
	}
	return nil
}

// WriteCompressed writes idx to w as a BGZF stream.
func WriteCompressed(w io.Writer, idx *index.Index) error {
	if err := idx.Validate(); err != nil {
		return err
	}
	zw := bgzf.NewWriter(w)
	if err := Write(zw, idx); err != nil {
		return err
	}
	return zw.Close()
}

// WriteFile writes idx to the named file in compressed form.
func WriteFile(path string, idx *index.Index) error {
	if err := idx.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCompressed(f, idx); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readError converts premature ends of input into index.ErrUnexpectedEOF
// format errors and adds context to any other error.
func readError(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return index.NewFormatError(index.ErrUnexpectedEOF, "reading %s", what)
	}
	return fmt.Errorf("reading %s: %w", what, err)
}

// readCount reads a signed 32-bit count.
func readCount(r io.Reader, what string) (int, error) {
	var count int32
	if err := binary.Read(r, &count); err != nil {
		return 0, readError(what, err)
	}
	if count < 0 {
		return 0, index.NewFormatError(index.ErrInvalidCount, "negative %s (%d)", what, count)
	}
	return int(count), nil
}

// readBlob reads length bytes without trusting length for the allocation.
func readBlob(r io.Reader, length int, what string) ([]byte, error) {
	var buffer bytes.Buffer
	if _, err := io.CopyN(&buffer, r, int64(length)); err != nil {
		return nil, readError(what, err)
	}
	return buffer.Bytes(), nil
}
