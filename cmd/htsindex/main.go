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

// This binary inspects, queries and converts tabix and CSI indexes.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/googlegenomics/htsindex/codec"
	"github.com/googlegenomics/htsindex/index"
	"github.com/googlegenomics/htsindex/internal/binary"
	"github.com/googlegenomics/htsindex/source"
	"github.com/googlegenomics/htsindex/source/file"
	"github.com/googlegenomics/htsindex/source/gcs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by every command.
type app struct {
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	var (
		a          = &app{logger: zap.NewNop()}
		verbose    bool
		cpuProfile string
		profiler   interface{ Stop() }
	)

	root := &cobra.Command{
		Use:          "htsindex",
		Short:        "Inspect, query and convert tabix and CSI indexes",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewDevelopmentConfig()
			config.DisableStacktrace = true
			config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			a.logger = logger

			if cpuProfile != "" {
				profiler = profile.Start(profile.CPUProfile, profile.ProfilePath(cpuProfile), profile.Quiet)
				logger.Debug("Profiling", zap.String("directory", cpuProfile))
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if profiler != nil {
				profiler.Stop()
			}
			a.logger.Sync()
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	root.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile to this directory")

	root.AddCommand(
		newInspectCmd(a),
		newQueryCmd(a),
		newConvertCmd(a),
		newBuildCmd(a),
		newFetchCmd(a),
		newRemoteCmd(a),
	)
	return root
}

// openLocation returns the opener and object name for a local path or a
// gs://bucket/object URL.  The returned function releases the opener.
func openLocation(ctx context.Context, location string) (source.Opener, string, func(), error) {
	if rest, ok := strings.CutPrefix(location, "gs://"); ok {
		bucket, object, _ := strings.Cut(rest, "/")
		if bucket == "" || object == "" {
			return nil, "", nil, fmt.Errorf("invalid GCS location %q", location)
		}
		opener, err := gcs.NewDefault(ctx, bucket)
		if err != nil {
			return nil, "", nil, err
		}
		return opener, object, func() { opener.Close() }, nil
	}
	return file.New(filepath.Dir(location)), filepath.Base(location), func() {}, nil
}

// loadIndex reads the index stored at location.
func (a *app) loadIndex(ctx context.Context, location string) (*index.Index, error) {
	opener, name, release, err := openLocation(ctx, location)
	if err != nil {
		return nil, err
	}
	defer release()

	rc, err := opener.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	idx, err := codec.ReadAuto(binary.ContextReader(ctx, rc))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	a.logger.Debug("Loaded index",
		zap.String("location", location),
		zap.Stringer("format", idx.Format),
		zap.Int("references", len(idx.References)))
	return idx, nil
}

// createOutput returns the named file, or w if name is empty.
func createOutput(name string, w io.Writer) (io.WriteCloser, error) {
	if name == "" {
		return nopWriteCloser{w}, nil
	}
	return os.Create(name)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
