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

package main

import (
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/genomics"
	"github.com/googlegenomics/htsindex/index"
)

// queryFlags holds the flags shared by commands that run queries.
type queryFlags struct {
	slack     uint64
	sizeLimit string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.slack, "slack", 0, "merge chunks separated by at most this many bytes")
	cmd.Flags().StringVar(&f.sizeLimit, "size_limit", "", "soft limit on the size of merged chunks (for example 64MiB)")
}

func (f *queryFlags) options() ([]index.QueryOption, error) {
	options := []index.QueryOption{index.WithSlack(f.slack)}
	if f.sizeLimit != "" {
		limit, err := humanize.ParseBytes(f.sizeLimit)
		if err != nil {
			return nil, fmt.Errorf("parsing --size_limit: %w", err)
		}
		options = append(options, index.WithSizeLimit(limit))
	}
	return options, nil
}

// resolve parses text and returns the reference ID and interval to query.
// Names are looked up in idx unless names is not nil.
func resolve(idx *index.Index, names []string, text string) (int, int64, int64, error) {
	region, err := genomics.ParseRegion(text)
	if err != nil {
		return 0, 0, 0, err
	}
	if names == nil {
		names = idx.ReferenceNames()
	}
	id, err := index.LookupReference(names, region.ReferenceName)
	if err != nil {
		return 0, 0, 0, err
	}
	start, end := region.Bounds(idx.Scheme().MaxPosition())
	return id, start, end, nil
}

func newQueryCmd(a *app) *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "query <index> <region>...",
		Short: "Print the chunks that may hold records overlapping each region",
		Long: "Regions are written as name, name:start or name:start-end with 1-based, inclusive positions.\n" +
			"Queries run concurrently; results are printed in argument order.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := flags.options()
			if err != nil {
				return err
			}
			idx, err := a.loadIndex(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			regions := args[1:]
			results := make([][]bgzf.Chunk, len(regions))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, region := range regions {
				i, region := i, region
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					id, start, end, err := resolve(idx, nil, region)
					if err != nil {
						return fmt.Errorf("region %q: %w", region, err)
					}
					chunks, err := idx.Query(id, start, end, options...)
					if err != nil {
						return fmt.Errorf("region %q: %w", region, err)
					}
					a.logger.Debug("Queried region", zap.String("region", region), zap.Int("chunks", len(chunks)))
					results[i] = chunks
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			var rows [][]string
			for i, chunks := range results {
				for _, chunk := range chunks {
					rows = append(rows, []string{regions[i], chunk.Start.String(), chunk.End.String(), humanize.IBytes(index.Size(chunk))})
				}
			}
			p := &printer{cmd.OutOrStdout()}
			return p.table([]string{"REGION", "START", "END", "SIZE"}, rows)
		},
	}
	flags.register(cmd)
	return cmd
}
