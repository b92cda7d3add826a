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

// Package source provides access to index and data files held in a storage
// backend.
package source

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned (wrapped) when the requested object does not
	// exist.
	ErrNotFound = errors.New("object not found")
	// ErrPermissionDenied is returned (wrapped) when the caller may not read
	// the requested object.
	ErrPermissionDenied = errors.New("permission denied")
)

// Opener is an interface to the storage backend in use.
type Opener interface {
	// Open returns a reader for the entire named object.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// OpenRange returns a reader for length bytes of the named object starting
	// at offset.  A length of -1 reads to the end of the object.
	OpenRange(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error)
}

// ReaderAt returns an io.ReaderAt that reads the named object through ranged
// requests.
func ReaderAt(ctx context.Context, opener Opener, name string) io.ReaderAt {
	return &readerAt{ctx, opener, name}
}

type readerAt struct {
	ctx    context.Context
	opener Opener
	name   string
}

func (r *readerAt) ReadAt(p []byte, offset int64) (int, error) {
	rc, err := r.opener.OpenRange(r.ctx, r.name, offset, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := io.ReadFull(rc, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}
