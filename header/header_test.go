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

package header

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/internal/binary"
)

const vcfHeader = "##fileformat=VCFv4.2\n" +
	"##contig=<ID=chr1,length=248956422>\n" +
	"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Depth\">\n" +
	"##contig=<length=100,ID=chr2>\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
	"chr1\t100\t.\tA\tC\t.\t.\t.\n"

func encode(t *testing.T, values ...interface{}) []byte {
	t.Helper()
	var buffer bytes.Buffer
	for _, v := range values {
		if err := binary.Write(&buffer, v); err != nil {
			t.Fatalf("binary.Write(%v): %v", v, err)
		}
	}
	return buffer.Bytes()
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	w := bgzf.NewWriter(&buffer)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write(): %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}
	return buffer.Bytes()
}

func TestReferenceNames(t *testing.T) {
	text := "@HD\tVN:1.6\n@SQ\tSN:chrA\tLN:10\n"
	bam := encode(t,
		[]byte(bamMagic), int32(len(text)), []byte(text),
		int32(2),
		int32(5), []byte("chrA\x00"), int32(10),
		int32(5), []byte("chrB\x00"), int32(20),
	)
	bcfText := "##fileformat=VCFv4.3\n##contig=<ID=b,IDX=1>\n##contig=<ID=a,IDX=0>\n#CHROM\n\x00"
	bcf := encode(t, []byte("BCF\x02\x02"), uint32(len(bcfText)), []byte(bcfText))

	testCases := []struct {
		name string
		data []byte
		want []string
	}{
		{"bam", compress(t, bam), []string{"chrA", "chrB"}},
		{"bcf", compress(t, bcf), []string{"a", "b"}},
		{"vcf", []byte(vcfHeader), []string{"chr1", "chr2"}},
		{"compressed vcf", compress(t, []byte(vcfHeader)), []string{"chr1", "chr2"}},
		{"sam", []byte("@HD\tVN:1.6\n@SQ\tSN:1\tLN:5\n@SQ\tLN:7\tSN:2\nr1\t0\t1\n"), []string{"1", "2"}},
		{"vcf without contigs", []byte("##fileformat=VCFv4.2\n#CHROM\n"), nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ReferenceNames(bytes.NewReader(tc.data))
			if err != nil {
				t.Fatalf("ReferenceNames() returned unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ReferenceNames() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReferenceNames_Errors(t *testing.T) {
	if _, err := ReferenceNames(bytes.NewReader([]byte("chr1\t100\n"))); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ReferenceNames() returned %v, want %v", err, ErrUnknownFormat)
	}

	testCases := map[string][]byte{
		"empty":             nil,
		"truncated bam":     compress(t, encode(t, []byte(bamMagic), int32(100))),
		"long bam name":     compress(t, encode(t, []byte(bamMagic), int32(0), int32(1), int32(5000))),
		"contig without ID": []byte("##contig=<length=5>\n"),
		"sq without SN":     []byte("@SQ\tLN:5\n"),
		"invalid IDX":       []byte("##contig=<ID=a,IDX=x>\n"),
	}
	for name, data := range testCases {
		if _, err := ReferenceNames(bytes.NewReader(data)); err == nil {
			t.Errorf("%s: ReferenceNames() succeeded", name)
		}
	}
}

func TestContigField(t *testing.T) {
	testCases := []struct {
		input, name, want string
	}{
		{"##contig=<ID=chr1,length=5>", "ID", "chr1"},
		{"##contig=<length=5,ID=chr1>", "ID", "chr1"},
		{"##contig=<XID=foo,ID=chr1>", "ID", "chr1"},
		{"##contig=<ID=chr1>", "IDX", ""},
		{"##contig=<ID=chr1,IDX=3>", "IDX", "3"},
	}
	for _, tc := range testCases {
		if got := contigField(tc.input, tc.name); got != tc.want {
			t.Errorf("contigField(%q, %q): got %q, want %q", tc.input, tc.name, got, tc.want)
		}
	}
}
