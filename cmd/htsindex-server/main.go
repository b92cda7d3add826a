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

// This binary provides an index query server that backs onto a local
// directory or a GCS bucket.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/googlegenomics/htsindex/server"
	"github.com/googlegenomics/htsindex/source"
	"github.com/googlegenomics/htsindex/source/file"
	"github.com/googlegenomics/htsindex/source/gcs"
)

var (
	port      = flag.Int("port", 80, "HTTP service port")
	sizeLimit = flag.Uint64("size_limit", 1024*1024*1024, "merged chunk size soft limit")
	cacheSize = flag.Int("cache_size", 64, "number of parsed indexes kept in memory")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode and forward client bearer tokens")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")

	directory = flag.String("directory", "", "directory that contains index and data files")
	bucket    = flag.String("bucket", "", "GCS bucket that contains index and data files")

	verbose = flag.Bool("verbose", false, "log debug messages")
)

func main() {
	flag.Parse()

	config := zap.NewProductionConfig()
	if *verbose {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("creating logger: %v", err))
	}
	defer logger.Sync()

	if *secure && (*httpsCert == "" || *httpsKey == "") {
		logger.Fatal("You must specify both -https_cert and -https_key in secure mode.")
	}

	newOpener, err := newOpenerFunc(context.Background())
	if err != nil {
		logger.Fatal("Failed to configure storage", zap.Error(err))
	}

	options := []server.Option{
		server.WithLogger(logger),
		server.WithSizeLimit(*sizeLimit),
		server.WithCacheSize(*cacheSize),
	}
	if *secure && *bucket != "" {
		// Indexes read with one client's token must not be served to another.
		options = append(options, server.WithCacheSize(0))
	}
	srv, err := server.NewServer(newOpener, options...)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	address := fmt.Sprintf(":%d", *port)
	logger.Info("Serving", zap.String("address", address), zap.Bool("secure", *secure))
	if *secure {
		if err := http.ListenAndServeTLS(address, *httpsCert, *httpsKey, srv.Handler()); err != nil {
			logger.Fatal("HTTPS server returned an error", zap.Error(err))
		}
	} else {
		if err := http.ListenAndServe(address, srv.Handler()); err != nil {
			logger.Fatal("HTTP server returned an error", zap.Error(err))
		}
	}
}

// newOpenerFunc selects the storage backend named by the flags.
func newOpenerFunc(ctx context.Context) (server.NewOpenerFunc, error) {
	switch {
	case *directory != "" && *bucket != "":
		return nil, fmt.Errorf("-directory and -bucket are mutually exclusive")
	case *directory != "":
		opener := file.New(*directory)
		return func(*http.Request) (source.Opener, error) {
			return opener, nil
		}, nil
	case *bucket != "" && *secure:
		return func(req *http.Request) (source.Opener, error) {
			return gcs.NewFromBearerToken(req.Context(), *bucket, req.Header.Get("Authorization"))
		}, nil
	case *bucket != "":
		opener, err := gcs.NewPublic(ctx, *bucket)
		if err != nil {
			return nil, err
		}
		return func(*http.Request) (source.Opener, error) {
			return opener, nil
		}, nil
	}
	return nil, fmt.Errorf("no -directory or -bucket specified")
}
