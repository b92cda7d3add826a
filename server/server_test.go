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

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/codec"
	"github.com/googlegenomics/htsindex/index"
	"github.com/googlegenomics/htsindex/indexer"
	"github.com/googlegenomics/htsindex/source"
	"github.com/googlegenomics/htsindex/source/file"
)

const records = "chr1\t100\tA\nchr1\t200\tC\n"

func init() {
	gin.SetMode(gin.TestMode)
}

// writeTestData writes a compressed data file holding records and a tabix
// index for it to dir.
func writeTestData(t *testing.T, dir string) {
	t.Helper()

	f, err := os.Create(filepath.Join(dir, "sample.vcf.gz"))
	require.NoError(t, err)
	w := bgzf.NewWriter(f)
	start := w.Address()
	_, err = io.WriteString(w, records)
	require.NoError(t, err)
	end := w.Address()
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	ref := index.NewReferenceIndex()
	ref.Bins[4681] = &index.Bin{ID: 4681, Chunks: []bgzf.Chunk{{Start: start, End: end}}}
	ref.Intervals = []bgzf.Address{start}
	ref.Metadata = &index.Metadata{Start: start, End: end, Mapped: 2}
	idx := &index.Index{
		Format:     index.FormatTabix,
		MinShift:   14,
		Depth:      5,
		Header:     &index.Header{Format: index.FormatVCF, ColumnSequence: 1, ColumnBegin: 2, Meta: '#', Names: []string{"chr1", "chr2"}},
		References: []*index.ReferenceIndex{ref, index.NewReferenceIndex()},
	}
	require.NoError(t, codec.WriteFile(filepath.Join(dir, "sample.vcf.gz.tbi"), idx))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.tbi"), []byte("not an index"), 0o644))
}

func setupServer(t *testing.T, options ...Option) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	writeTestData(t, dir)

	opener := file.New(dir)
	server, err := NewServer(func(*http.Request) (source.Opener, error) {
		return opener, nil
	}, options...)
	require.NoError(t, err)
	return server.Handler(), dir
}

func get(handler http.Handler, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", url, nil)
	handler.ServeHTTP(w, req)
	return w
}

type errorResponse struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestSummaryRoute(t *testing.T) {
	handler, _ := setupServer(t)

	w := get(handler, "/indexes/sample.vcf.gz.tbi")
	require.Equal(t, http.StatusOK, w.Code)

	var summary index.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "TBI", summary.Format)
	assert.Equal(t, 14, summary.MinShift)
	require.Len(t, summary.References, 2)
	assert.Equal(t, "chr1", summary.References[0].Name)
	assert.Equal(t, 1, summary.References[0].Bins)
	require.NotNil(t, summary.References[0].Mapped)
	assert.Equal(t, uint64(2), *summary.References[0].Mapped)
}

func TestQueryRoute(t *testing.T) {
	handler, _ := setupServer(t)

	w := get(handler, "/indexes/sample.vcf.gz.tbi/query?referenceName=chr1&start=0&end=1000")
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Format string `json:"format"`
		Chunks []struct {
			Start bgzf.Address `json:"start"`
			End   bgzf.Address `json:"end"`
			URL   string       `json:"url"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "TBI", response.Format)
	require.Len(t, response.Chunks, 1)

	chunk := response.Chunks[0]
	assert.Equal(t, bgzf.Address(0), chunk.Start)
	assert.Equal(t, bgzf.NewAddress(0, uint16(len(records))), chunk.End)

	w = get(handler, chunk.URL)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, records, w.Body.String())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
}

func TestQueryRoute_Empty(t *testing.T) {
	handler, _ := setupServer(t)

	w := get(handler, "/indexes/sample.vcf.gz.tbi/query?referenceName=chr2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"format":"TBI","referenceName":"chr2","chunks":[]}`, w.Body.String())

	w = get(handler, "/indexes/sample.vcf.gz.tbi/query?referenceId=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"format":"TBI","chunks":[]}`, w.Body.String())
}

func TestQueryRoute_NamesFromData(t *testing.T) {
	handler, dir := setupServer(t)

	var data bytes.Buffer
	w := bgzf.NewWriter(&data)
	_, err := io.WriteString(w, "##contig=<ID=chrX>\n#CHROM\tPOS\n"+"chrX\t100\tA\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contigs.vcf.gz"), data.Bytes(), 0o644))

	preset, err := indexer.Preset("vcf")
	require.NoError(t, err)
	idx, err := indexer.Build(bytes.NewReader(data.Bytes()), indexer.Options{Header: preset, Format: index.FormatCSI})
	require.NoError(t, err)
	idx.Aux = nil
	require.NoError(t, codec.WriteFile(filepath.Join(dir, "contigs.vcf.gz.csi"), idx))

	resp := get(handler, "/indexes/contigs.vcf.gz.csi/query?referenceName=chrX")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"referenceName":"chrX"`)
	assert.Contains(t, resp.Body.String(), `"url":"/data/contigs.vcf.gz?`)

	resp = get(handler, "/indexes/contigs.vcf.gz.csi/query?referenceName=chr1")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestErrors(t *testing.T) {
	handler, _ := setupServer(t)

	testCases := []struct {
		name, url string
		code      int
		kind      string
	}{
		{"missing index", "/indexes/missing.tbi", http.StatusNotFound, "NotFound"},
		{"escaping index name", "/indexes/..", http.StatusForbidden, "PermissionDenied"},
		{"corrupt index", "/indexes/garbage.tbi", http.StatusUnprocessableEntity, "InvalidIndex"},
		{"missing reference", "/indexes/sample.vcf.gz.tbi/query", http.StatusBadRequest, "InvalidInput"},
		{"unknown reference", "/indexes/sample.vcf.gz.tbi/query?referenceName=chrX", http.StatusBadRequest, "InvalidInput"},
		{"reference out of range", "/indexes/sample.vcf.gz.tbi/query?referenceId=5", http.StatusBadRequest, "InvalidInput"},
		{"invalid start", "/indexes/sample.vcf.gz.tbi/query?referenceName=chr1&start=x", http.StatusBadRequest, "InvalidInput"},
		{"invalid slack", "/indexes/sample.vcf.gz.tbi/query?referenceName=chr1&slack=-1", http.StatusBadRequest, "InvalidInput"},
		{"inverted interval", "/indexes/sample.vcf.gz.tbi/query?referenceName=chr1&start=10&end=5", http.StatusBadRequest, "InvalidRange"},
		{"invalid address", "/data/sample.vcf.gz?start=xyz&end=0", http.StatusBadRequest, "InvalidInput"},
		{"inverted chunk", "/data/sample.vcf.gz?start=10&end=5", http.StatusBadRequest, "InvalidRange"},
		{"missing data", "/data/missing.vcf.gz?start=0&end=10", http.StatusNotFound, "NotFound"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(handler, tc.url)
			assert.Equal(t, tc.code, w.Code)

			var response errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tc.kind, response.Error.Kind)
			assert.NotEmpty(t, response.Error.Message)
		})
	}
}

func TestSizeLimit(t *testing.T) {
	handler, _ := setupServer(t, WithSizeLimit(1024))

	w := get(handler, "/data/sample.vcf.gz?start=0&end=10")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCache(t *testing.T) {
	handler, dir := setupServer(t)
	require.Equal(t, http.StatusOK, get(handler, "/indexes/sample.vcf.gz.tbi").Code)

	require.NoError(t, os.Remove(filepath.Join(dir, "sample.vcf.gz.tbi")))
	assert.Equal(t, http.StatusOK, get(handler, "/indexes/sample.vcf.gz.tbi").Code)
}

func TestCache_Disabled(t *testing.T) {
	handler, dir := setupServer(t, WithCacheSize(0))
	require.Equal(t, http.StatusOK, get(handler, "/indexes/sample.vcf.gz.tbi").Code)

	require.NoError(t, os.Remove(filepath.Join(dir, "sample.vcf.gz.tbi")))
	assert.Equal(t, http.StatusNotFound, get(handler, "/indexes/sample.vcf.gz.tbi").Code)
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler, _ := setupServer(t, WithLogger(zap.New(core)))

	w := get(handler, "/indexes/missing.tbi")
	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	entries := logs.FilterMessage("Handled request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, id, fields["request_id"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Contains(t, fields["error"], "object not found")
}

func TestForwardOrigin(t *testing.T) {
	handler, _ := setupServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/indexes/sample.vcf.gz.tbi", nil)
	req.Header.Set("Origin", "https://example.com")
	handler.ServeHTTP(w, req)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDataName(t *testing.T) {
	testCases := map[string]string{
		"sample.vcf.gz.tbi": "sample.vcf.gz",
		"sample.bed.gz.csi": "sample.bed.gz",
		"sample.idx":        "",
		".tbi":              "",
	}
	for id, want := range testCases {
		assert.Equal(t, want, dataName(id), "dataName(%q)", id)
	}
}
