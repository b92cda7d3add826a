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

package codec

import (
	"fmt"
	"io"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/binning"
	"github.com/googlegenomics/htsindex/index"
	"github.com/googlegenomics/htsindex/internal/binary"
)

// csi handles the CSI format, whose header carries the binning scheme and
// whose bins carry the offset of their first record in place of a linear
// index.
type csi struct{}

type csiHeader struct {
	MinShift  int32
	Depth     int32
	AuxLength int32
}

type csiBin struct {
	ID     uint32
	Offset bgzf.Address
}

func (csi) magic() string {
	return csiMagic
}

func (csi) readHeader(r io.Reader, idx *index.Index) (int, error) {
	var header csiHeader
	if err := binary.Read(r, &header); err != nil {
		return 0, readError("CSI header", err)
	}
	scheme := binning.Scheme{MinShift: int(header.MinShift), Depth: int(header.Depth)}
	if err := scheme.Validate(); err != nil {
		return 0, index.NewFormatError(index.ErrInvalidScheme, "%v", err)
	}
	if header.AuxLength < 0 {
		return 0, index.NewFormatError(index.ErrInvalidCount, "negative auxiliary data length (%d)", header.AuxLength)
	}
	aux, err := readBlob(r, int(header.AuxLength), "auxiliary data")
	if err != nil {
		return 0, err
	}

	idx.Format = index.FormatCSI
	idx.MinShift = scheme.MinShift
	idx.Depth = scheme.Depth
	if len(aux) > 0 {
		idx.Aux = aux
	}
	return readCount(r, "reference count")
}

func (csi) writeHeader(w io.Writer, idx *index.Index) error {
	header := csiHeader{
		MinShift:  int32(idx.MinShift),
		Depth:     int32(idx.Depth),
		AuxLength: int32(len(idx.Aux)),
	}
	if err := binary.Write(w, header); err != nil {
		return fmt.Errorf("writing CSI header: %w", err)
	}
	if _, err := w.Write(idx.Aux); err != nil {
		return fmt.Errorf("writing auxiliary data: %w", err)
	}
	if err := binary.Write(w, int32(len(idx.References))); err != nil {
		return fmt.Errorf("writing reference count: %w", err)
	}
	return nil
}

func (csi) readBin(r io.Reader) (uint32, bgzf.Address, error) {
	var bin csiBin
	if err := binary.Read(r, &bin); err != nil {
		return 0, 0, readError("bin header", err)
	}
	return bin.ID, bin.Offset, nil
}

func (csi) writeBin(w io.Writer, id uint32, offset bgzf.Address) error {
	return binary.Write(w, csiBin{id, offset})
}

func (csi) linearIndex() bool {
	return false
}
