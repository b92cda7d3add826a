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

	"github.com/googlegenomics/htsindex/codec"
	"github.com/googlegenomics/htsindex/index"
)

func parseFormat(name string) (index.Format, error) {
	switch strings.ToLower(name) {
	case "tbi", "tabix":
		return index.FormatTabix, nil
	case "csi":
		return index.FormatCSI, nil
	}
	return 0, fmt.Errorf("unknown format %q (wanted tbi or csi)", name)
}

func newConvertCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert an index between the tabix and CSI formats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseFormat(format)
			if err != nil {
				return err
			}
			idx, err := a.loadIndex(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			converted, err := index.Convert(idx, target)
			if err != nil {
				return err
			}
			if err := codec.WriteFile(args[1], converted); err != nil {
				return fmt.Errorf("writing %s: %w", args[1], err)
			}
			a.logger.Info("Converted index",
				zap.String("input", args[0]),
				zap.String("output", args[1]),
				zap.Stringer("from", idx.Format),
				zap.Stringer("to", target))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "output format: tbi or csi")
	cmd.MarkFlagRequired("format")
	return cmd
}
