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
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/header"
	"github.com/googlegenomics/htsindex/internal/binary"
	"github.com/googlegenomics/htsindex/source"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		flags  queryFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "fetch <data> <index> <region>",
		Short: "Write the decompressed data of every chunk overlapping a region",
		Long: "Fetch queries the index and copies the decompressed bytes of each returned chunk.\n" +
			"The data and index may be local paths or gs://bucket/object URLs.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			options, err := flags.options()
			if err != nil {
				return err
			}
			idx, err := a.loadIndex(ctx, args[1])
			if err != nil {
				return err
			}
			opener, name, release, err := openLocation(ctx, args[0])
			if err != nil {
				return err
			}
			defer release()

			var names []string
			if idx.ReferenceNames() == nil {
				if names, err = dataReferenceNames(ctx, opener, name); err != nil {
					return err
				}
				a.logger.Debug("Read reference names from data", zap.Int("references", len(names)))
			}
			id, start, end, err := resolve(idx, names, args[2])
			if err != nil {
				return err
			}
			chunks, err := idx.Query(id, start, end, options...)
			if err != nil {
				return err
			}
			data := source.ReaderAt(ctx, opener, name)

			w, err := createOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			var total uint64
			for i, chunk := range chunks {
				decoded, err := bgzf.ReadChunk(data, chunk)
				if err != nil {
					w.Close()
					return fmt.Errorf("chunk %d %s: %w", i, chunk, err)
				}
				if _, err := w.Write(decoded); err != nil {
					w.Close()
					return fmt.Errorf("writing chunk %d: %w", i, err)
				}
				total += uint64(len(decoded))
				a.logger.Debug("Fetched chunk", zap.Int("chunk", i), zap.Stringer("range", chunk), zap.String("size", humanize.IBytes(uint64(len(decoded)))))
			}
			a.logger.Info("Fetched region",
				zap.String("region", args[2]),
				zap.Int("chunks", len(chunks)),
				zap.String("size", humanize.IBytes(total)))
			return w.Close()
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default standard output)")
	return cmd
}

// dataReferenceNames reads the reference names from the header of the
// indexed file, for indexes that do not record them.
func dataReferenceNames(ctx context.Context, opener source.Opener, name string) ([]string, error) {
	rc, err := opener.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	names, err := header.ReferenceNames(binary.ContextReader(ctx, rc))
	if err != nil {
		return nil, fmt.Errorf("reading reference names from %s: %w", name, err)
	}
	return names, nil
}
