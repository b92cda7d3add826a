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

package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/googlegenomics/htsindex/source"
)

func setup(t *testing.T) *Opener {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.txt"), []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile(): %v", err)
	}
	return New(dir)
}

func readAll(t *testing.T, rc io.ReadCloser, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("open returned unexpected error: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll(): %v", err)
	}
	return string(data)
}

func TestOpen(t *testing.T) {
	opener := setup(t)
	ctx := context.Background()

	rc, err := opener.Open(ctx, "data.txt")
	if got, want := readAll(t, rc, err), "0123456789"; got != want {
		t.Errorf("Open(): got %q, want %q", got, want)
	}

	testCases := []struct {
		offset, length int64
		want           string
	}{
		{0, 3, "012"},
		{4, 2, "45"},
		{8, 10, "89"},
		{5, -1, "56789"},
		{20, 5, ""},
	}
	for _, tc := range testCases {
		rc, err := opener.OpenRange(ctx, "data.txt", tc.offset, tc.length)
		if got := readAll(t, rc, err); got != tc.want {
			t.Errorf("OpenRange(%d, %d): got %q, want %q", tc.offset, tc.length, got, tc.want)
		}
	}
}

func TestOpen_Errors(t *testing.T) {
	opener := setup(t)

	testCases := []struct {
		name string
		want error
	}{
		{"missing.txt", source.ErrNotFound},
		{"../data.txt", source.ErrPermissionDenied},
		{"/etc/passwd", source.ErrPermissionDenied},
	}
	for _, tc := range testCases {
		if _, err := opener.Open(context.Background(), tc.name); !errors.Is(err, tc.want) {
			t.Errorf("Open(%q) returned %v, want %v", tc.name, err, tc.want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := opener.Open(ctx, "data.txt"); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() with canceled context returned %v, want %v", err, context.Canceled)
	}
}

func TestReaderAt(t *testing.T) {
	r := source.ReaderAt(context.Background(), setup(t), "data.txt")

	buffer := make([]byte, 4)
	if n, err := r.ReadAt(buffer, 3); err != nil || string(buffer[:n]) != "3456" {
		t.Errorf("ReadAt(3): got (%q, %v), want (%q, nil)", buffer[:n], err, "3456")
	}
	if n, err := r.ReadAt(buffer, 8); err != io.EOF || string(buffer[:n]) != "89" {
		t.Errorf("ReadAt(8): got (%q, %v), want (%q, %v)", buffer[:n], err, "89", io.EOF)
	}
}
