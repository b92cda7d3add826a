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

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/googlegenomics/htsindex/client"
	"github.com/googlegenomics/htsindex/genomics"
)

const scope = "https://www.googleapis.com/auth/devstorage.read_only"

func newRemoteCmd(a *app) *cobra.Command {
	var (
		googleAuth bool
		slack      uint64
		output     string
	)

	cmd := &cobra.Command{
		Use:   "remote <server> <index-id> <region>...",
		Short: "Fetch region data through an index query server",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			httpClient, err := newHTTPClient(ctx, a.logger, googleAuth)
			if err != nil {
				return err
			}
			c, err := client.New(args[0], httpClient)
			if err != nil {
				return err
			}

			w, err := createOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer w.Close()

			id := args[1]
			for _, text := range args[2:] {
				region, err := genomics.ParseRegion(text)
				if err != nil {
					return err
				}
				a.logger.Info("Fetching", zap.String("index", id), zap.Stringer("region", region))
				chunks, err := c.Query(ctx, id, region, slack)
				if err != nil {
					return fmt.Errorf("querying %s: %w", region, err)
				}
				a.logger.Info("Received chunks", zap.Int("count", len(chunks)))

				for i, chunk := range chunks {
					n, err := copyChunk(ctx, c, chunk, w)
					if err != nil {
						return fmt.Errorf("chunk %d: %w", i, err)
					}
					a.logger.Debug("Wrote chunk", zap.Int("chunk", i), zap.String("size", humanize.IBytes(uint64(n))))
				}
			}
			return w.Close()
		},
	}
	cmd.Flags().BoolVar(&googleAuth, "google_auth", false, "authenticate with the application default credentials")
	cmd.Flags().Uint64Var(&slack, "slack", 0, "merge chunks separated by at most this many bytes")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default standard output)")
	return cmd
}

func copyChunk(ctx context.Context, c *client.Client, chunk client.Chunk, w io.Writer) (int64, error) {
	r, err := c.Fetch(ctx, chunk)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return io.Copy(w, r)
}

// newHTTPClient returns the client used to reach the server.  For
// compatibility with other tools, the standard cURL certificate authority
// override is read from the environment.
func newHTTPClient(ctx context.Context, logger *zap.Logger, googleAuth bool) (*http.Client, error) {
	base := http.DefaultClient
	if bundle := os.Getenv("CURL_CA_BUNDLE"); bundle != "" {
		pem, err := os.ReadFile(bundle)
		if err != nil {
			return nil, fmt.Errorf("reading CA override file %q: %w", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("initializing system certificate pool: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("adding certificates from bundle %q", bundle)
		}
		base = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{RootCAs: pool},
			},
		}
		logger.Info("Using CA override bundle", zap.String("bundle", bundle))
	}
	if !googleAuth {
		return base, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	httpClient, err := google.DefaultClient(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("creating authenticated client: %w", err)
	}
	return httpClient, nil
}
