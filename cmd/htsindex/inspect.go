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
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/googlegenomics/htsindex/index"
)

func newInspectCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <index>",
		Short: "Describe the contents of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.loadIndex(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			summary := idx.Summarize()

			p := &printer{cmd.OutOrStdout()}
			if asJSON {
				return p.json(summary)
			}

			unplaced := "-"
			if summary.Unplaced != nil {
				unplaced = humanize.Comma(int64(*summary.Unplaced))
			}
			if err := p.kv([][2]string{
				{"Format", summary.Format},
				{"Scheme", idx.Scheme().String()},
				{"References", strconv.Itoa(len(summary.References))},
				{"Unplaced", unplaced},
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())

			rows := make([][]string, len(summary.References))
			for i, ref := range summary.References {
				name := ref.Name
				if name == "" {
					name = "#" + strconv.Itoa(i)
				}
				rows[i] = []string{
					name,
					humanize.Comma(int64(ref.Bins)),
					humanize.Comma(int64(ref.Chunks)),
					humanize.Comma(int64(ref.Intervals)),
					count(ref.Mapped),
					count(ref.Unmapped),
					humanize.IBytes(index.Size(ref.Span)),
				}
			}
			return p.table([]string{"REFERENCE", "BINS", "CHUNKS", "INTERVALS", "MAPPED", "UNMAPPED", "SPAN"}, rows)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func count(n *uint64) string {
	if n == nil {
		return "-"
	}
	return humanize.Comma(int64(*n))
}
