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

// Package client provides access to a running index query server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/genomics"
	"github.com/googlegenomics/htsindex/index"
)

// Client issues requests to the server at a base URL.
type Client struct {
	base *url.URL
	http *http.Client
}

// Chunk is a chunk returned by a query, along with the location of its data
// if the server can serve it.
type Chunk struct {
	bgzf.Chunk
	URL string `json:"url"`
}

// Error is returned for responses with an unexpected status.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (err *Error) Error() string {
	if err.Kind == "" {
		return fmt.Sprintf("unexpected response status: %d %s", err.Status, http.StatusText(err.Status))
	}
	return fmt.Sprintf("%s (%d): %s", err.Kind, err.Status, err.Message)
}

// New returns a Client for the server at base that sends requests with
// httpClient.  A nil httpClient selects http.DefaultClient.
func New(base string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{parsed, httpClient}, nil
}

// Summary returns the summary of the index stored under id.
func (c *Client) Summary(ctx context.Context, id string) (*index.Summary, error) {
	var summary index.Summary
	if err := c.getJSON(ctx, "/indexes/"+url.PathEscape(id), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Query returns the chunks of the index stored under id that may hold records
// overlapping region.
func (c *Client) Query(ctx context.Context, id string, region genomics.Region, slack uint64) ([]Chunk, error) {
	values := url.Values{}
	values.Set("referenceName", region.ReferenceName)
	if region.Start != 0 {
		values.Set("start", strconv.FormatInt(region.Start, 10))
	}
	if region.End != 0 {
		values.Set("end", strconv.FormatInt(region.End, 10))
	}
	if slack != 0 {
		values.Set("slack", strconv.FormatUint(slack, 10))
	}

	var response struct {
		Chunks []Chunk `json:"chunks"`
	}
	if err := c.getJSON(ctx, "/indexes/"+url.PathEscape(id)+"/query", values, &response); err != nil {
		return nil, err
	}
	return response.Chunks, nil
}

// Fetch returns the decompressed data of chunk.
func (c *Client) Fetch(ctx context.Context, chunk Chunk) (io.ReadCloser, error) {
	if chunk.URL == "" {
		return nil, fmt.Errorf("chunk %s has no data URL", chunk.Chunk)
	}
	target, err := c.base.Parse(chunk.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing data URL: %w", err)
	}
	if c.base.Path != "" && strings.HasPrefix(chunk.URL, "/") {
		target.Path = c.base.Path + target.Path
	}
	resp, err := c.get(ctx, target.String())
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, v interface{}) error {
	target := c.base.String() + path
	if len(values) > 0 {
		target += "?" + values.Encode()
	}
	resp, err := c.get(ctx, target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}
	return resp, nil
}

func errorFromResponse(resp *http.Response) error {
	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	err := &Error{Status: resp.StatusCode}
	if json.NewDecoder(resp.Body).Decode(&body) == nil {
		err.Kind = body.Error.Kind
		err.Message = body.Error.Message
	}
	return err
}
