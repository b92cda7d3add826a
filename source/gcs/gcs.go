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

// Package gcs provides a source.Opener backed by a Google Cloud Storage
// bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/googlegenomics/htsindex/source"
)

// ErrMissingOrInvalidToken is returned when a request does not carry a
// bearer token.
var ErrMissingOrInvalidToken = errors.New("missing or invalid bearer token")

// Opener opens objects in a single bucket.
type Opener struct {
	client *storage.Client
	bucket string
}

// New returns an Opener for bucket that uses client for all requests.
func New(client *storage.Client, bucket string) *Opener {
	return &Opener{client: client, bucket: bucket}
}

// NewDefault returns an Opener that uses the application default
// credentials.
func NewDefault(ctx context.Context, bucket string) (*Opener, error) {
	return newWithOptions(ctx, bucket)
}

// NewPublic returns an Opener that does not use any form of client
// authorization.  It can only be used to read publicly-readable objects.
func NewPublic(ctx context.Context, bucket string) (*Opener, error) {
	return newWithOptions(ctx, bucket, option.WithHTTPClient(http.DefaultClient))
}

// NewFromBearerToken returns an Opener that uses the OAuth2 bearer token in
// the authorization header value to make storage requests.
func NewFromBearerToken(ctx context.Context, bucket, authorization string) (*Opener, error) {
	token, err := ParseBearerToken(authorization)
	if err != nil {
		return nil, err
	}
	return newWithOptions(ctx, bucket, option.WithTokenSource(oauth2.StaticTokenSource(token)))
}

// ParseBearerToken extracts the token from an HTTP authorization header
// value.
func ParseBearerToken(authorization string) (*oauth2.Token, error) {
	fields := strings.Fields(authorization)
	if len(fields) != 2 || fields[0] != "Bearer" {
		return nil, ErrMissingOrInvalidToken
	}
	return &oauth2.Token{TokenType: fields[0], AccessToken: fields[1]}, nil
}

func newWithOptions(ctx context.Context, bucket string, opts ...option.ClientOption) (*Opener, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return New(client, bucket), nil
}

// Open implements source.Opener.
func (o *Opener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return o.OpenRange(ctx, name, 0, -1)
}

// OpenRange implements source.Opener.
func (o *Opener) OpenRange(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	r, err := o.client.Bucket(o.bucket).Object(name).NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, storageError(fmt.Sprintf("gs://%s/%s", o.bucket, name), err)
	}
	return r, nil
}

// Close releases the storage client.
func (o *Opener) Close() error {
	return o.client.Close()
}

// storageError maps storage failures onto the source errors.
func storageError(object string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %s", source.ErrNotFound, object)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %v", source.ErrPermissionDenied, object, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", source.ErrNotFound, object)
		}
	}
	return fmt.Errorf("reading %s: %w", object, err)
}
