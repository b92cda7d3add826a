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

// Package file provides a source.Opener backed by a local directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/googlegenomics/htsindex/source"
)

// Opener opens files beneath a root directory.
type Opener struct {
	root string
}

// New returns an Opener for the files beneath root.
func New(root string) *Opener {
	return &Opener{root: root}
}

// Open implements source.Opener.
func (o *Opener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return o.OpenRange(ctx, name, 0, -1)
}

// OpenRange implements source.Opener.
func (o *Opener) OpenRange(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := o.path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, openError(name, err)
	}
	if offset != 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seeking %q to %d: %w", name, offset, err)
		}
	}
	if length < 0 {
		return f, nil
	}
	return rangeReader{io.LimitReader(f, length), f}, nil
}

// path resolves name beneath the root, rejecting names that would escape it.
func (o *Opener) path(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q is outside the source directory", source.ErrPermissionDenied, name)
	}
	return filepath.Join(o.root, name), nil
}

func openError(name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %q", source.ErrNotFound, name)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %q", source.ErrPermissionDenied, name)
	}
	return fmt.Errorf("opening %q: %w", name, err)
}

// rangeReader reads a portion of a file and closes the file when done.
type rangeReader struct {
	io.Reader
	io.Closer
}
