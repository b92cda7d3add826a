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
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/googlegenomics/htsindex/binning"
	"github.com/googlegenomics/htsindex/codec"
	"github.com/googlegenomics/htsindex/index"
	"github.com/googlegenomics/htsindex/indexer"
	"github.com/googlegenomics/htsindex/internal/binary"
)

type buildFlags struct {
	preset, format, output string
	minShift, depth        int
	sequence, begin, end   int32
	skip                   int32
	meta                   string
	zeroBased              bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.preset, "preset", "p", "", "column layout preset: vcf, bed, gff or sam")
	flags.StringVar(&f.format, "format", "tbi", "output format: tbi or csi")
	flags.StringVarP(&f.output, "output", "o", "", "output file (default: input with a .tbi or .csi suffix)")
	flags.IntVar(&f.minShift, "min_shift", binning.TabixScheme.MinShift, "CSI minimum shift")
	flags.IntVar(&f.depth, "depth", binning.TabixScheme.Depth, "CSI depth")
	flags.Int32VarP(&f.sequence, "sequence", "s", 1, "column of the sequence name")
	flags.Int32VarP(&f.begin, "begin", "b", 4, "column of the start position")
	flags.Int32VarP(&f.end, "end", "e", 5, "column of the end position (0 for none)")
	flags.Int32Var(&f.skip, "skip", 0, "number of leading lines to skip")
	flags.StringVarP(&f.meta, "comment", "c", "#", "character starting comment lines")
	flags.BoolVar(&f.zeroBased, "zero_based", false, "start positions are 0-based")
}

// options returns the indexer options, applying explicitly set column flags
// on top of the preset.
func (f *buildFlags) options(cmd *cobra.Command) (indexer.Options, error) {
	var options indexer.Options

	format, err := parseFormat(f.format)
	if err != nil {
		return options, err
	}
	options.Format = format
	if format == index.FormatCSI {
		options.Scheme = binning.Scheme{MinShift: f.minShift, Depth: f.depth}
	}

	header := index.Header{Format: index.FormatGeneric, ColumnSequence: 1, ColumnBegin: 4, ColumnEnd: 5, Meta: '#'}
	if f.preset != "" {
		if header, err = indexer.Preset(strings.ToLower(f.preset)); err != nil {
			return options, err
		}
	}
	changed := cmd.Flags().Changed
	if changed("sequence") {
		header.ColumnSequence = f.sequence
	}
	if changed("begin") {
		header.ColumnBegin = f.begin
	}
	if changed("end") {
		header.ColumnEnd = f.end
	}
	if changed("skip") {
		header.Skip = f.skip
	}
	if changed("comment") {
		switch len(f.meta) {
		case 0:
			header.Meta = 0
		case 1:
			header.Meta = int32(f.meta[0])
		default:
			return options, fmt.Errorf("comment must be a single character, got %q", f.meta)
		}
	}
	if changed("zero_based") {
		if f.zeroBased {
			header.Format |= index.FormatZeroBased
		} else {
			header.Format &^= index.FormatZeroBased
		}
	}
	options.Header = header
	return options, nil
}

func newBuildCmd(a *app) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build <data>",
		Short: "Build a tabix or CSI index for a BGZF compressed text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := flags.options(cmd)
			if err != nil {
				return err
			}
			output := flags.output
			if output == "" {
				if strings.HasPrefix(args[0], "gs://") {
					return fmt.Errorf("--output is required for %s", args[0])
				}
				output = args[0] + "." + strings.ToLower(options.Format.String())
			}

			ctx := cmd.Context()
			opener, name, release, err := openLocation(ctx, args[0])
			if err != nil {
				return err
			}
			defer release()
			rc, err := opener.Open(ctx, name)
			if err != nil {
				return err
			}
			defer rc.Close()

			idx, err := indexer.Build(binary.ContextReader(ctx, rc), options)
			if err != nil {
				return fmt.Errorf("indexing %s: %w", args[0], err)
			}
			if err := codec.WriteFile(output, idx); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			a.logger.Info("Built index",
				zap.String("data", args[0]),
				zap.String("output", output),
				zap.Stringer("format", idx.Format),
				zap.Stringer("scheme", idx.Scheme()),
				zap.Int("references", len(idx.References)))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
