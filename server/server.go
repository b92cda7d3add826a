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

// Package server implements an HTTP service that answers region queries
// against tabix and CSI indexes held in a storage backend.
//
// The service exports three endpoints:
//
//	GET /indexes/:id                 summary of the index
//	GET /indexes/:id/query           chunks covering a region
//	GET /data/:id?start=...&end=...  decompressed bytes of one chunk
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/googlegenomics/htsindex/bgzf"
	"github.com/googlegenomics/htsindex/codec"
	"github.com/googlegenomics/htsindex/genomics"
	"github.com/googlegenomics/htsindex/header"
	"github.com/googlegenomics/htsindex/index"
	"github.com/googlegenomics/htsindex/internal/binary"
	"github.com/googlegenomics/htsindex/source"
)

const (
	// RequestIDHeader carries the identifier assigned to every request.
	RequestIDHeader = "X-Request-Id"

	defaultCacheSize = 64
)

// NewOpenerFunc is the type of function that constructs the source.Opener
// used to satisfy the incoming request.
type NewOpenerFunc func(*http.Request) (source.Opener, error)

// Server provides the index query service.  Must be created with NewServer.
type Server struct {
	newOpener NewOpenerFunc
	logger    *zap.Logger
	cache     *lru.Cache[string, *index.Index]
	sizeLimit uint64
}

// Option configures a Server.
type Option func(*Server) error

// WithCacheSize sets the number of parsed indexes kept in memory.  A size of
// zero disables caching, which is required when the opener depends on
// per-request credentials.
func WithCacheSize(size int) Option {
	return func(server *Server) error {
		if size <= 0 {
			server.cache = nil
			return nil
		}
		cache, err := lru.New[string, *index.Index](size)
		if err != nil {
			return fmt.Errorf("creating index cache: %w", err)
		}
		server.cache = cache
		return nil
	}
}

// WithSizeLimit sets the soft limit on the compressed size of merged chunks
// and the hard limit on the size of chunks served from the data endpoint.
func WithSizeLimit(limit uint64) Option {
	return func(server *Server) error {
		server.sizeLimit = limit
		return nil
	}
}

// WithLogger sets the logger used to record requests.
func WithLogger(logger *zap.Logger) Option {
	return func(server *Server) error {
		server.logger = logger
		return nil
	}
}

// NewServer returns a new Server that calls newOpener on each request to
// determine which storage backend to read.
func NewServer(newOpener NewOpenerFunc, options ...Option) (*Server, error) {
	server := &Server{newOpener: newOpener, logger: zap.NewNop()}
	options = append([]Option{WithCacheSize(defaultCacheSize)}, options...)
	for _, option := range options {
		if err := option(server); err != nil {
			return nil, err
		}
	}
	return server, nil
}

// Handler returns an http.Handler serving every endpoint of server.
func (server *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), server.logRequests, forwardOrigin)
	server.Export(router)
	return router
}

// Export registers the endpoints of server with router.
func (server *Server) Export(router gin.IRoutes) {
	router.GET("/indexes/:id", server.serveSummary)
	router.GET("/indexes/:id/query", server.serveQuery)
	router.GET("/data/:id", server.serveData)
}

func (server *Server) serveSummary(c *gin.Context) {
	idx, err := server.load(c, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idx.Summarize())
}

type queryResponse struct {
	Format        string          `json:"format"`
	ReferenceName string          `json:"referenceName,omitempty"`
	Chunks        []chunkResponse `json:"chunks"`
}

type chunkResponse struct {
	bgzf.Chunk
	URL string `json:"url,omitempty"`
}

func (server *Server) serveQuery(c *gin.Context) {
	id := c.Param("id")
	idx, err := server.load(c, id)
	if err != nil {
		writeError(c, err)
		return
	}

	referenceID, region, err := parseRegion(c, server.referenceNames(c, id, idx))
	if err != nil {
		writeError(c, err)
		return
	}
	slack, err := parseUint(c, "slack")
	if err != nil {
		writeError(c, err)
		return
	}

	start, end := region.Bounds(idx.Scheme().MaxPosition())
	chunks, err := idx.Query(referenceID, start, end, index.WithSlack(slack), index.WithSizeLimit(server.sizeLimit))
	if err != nil {
		writeError(c, err)
		return
	}

	data := dataName(id)
	response := queryResponse{
		Format:        idx.Format.String(),
		ReferenceName: region.ReferenceName,
		Chunks:        make([]chunkResponse, len(chunks)),
	}
	for i, chunk := range chunks {
		response.Chunks[i].Chunk = chunk
		if data != "" {
			response.Chunks[i].URL = fmt.Sprintf("/data/%s?start=%s&end=%s", data, chunk.Start, chunk.End)
		}
	}
	c.JSON(http.StatusOK, response)
}

func (server *Server) serveData(c *gin.Context) {
	var chunk bgzf.Chunk
	for _, param := range []struct {
		name    string
		address *bgzf.Address
	}{
		{"start", &chunk.Start},
		{"end", &chunk.End},
	} {
		address, err := bgzf.ParseAddress(c.Query(param.name))
		if err != nil {
			writeError(c, newInvalidInputError("parsing "+param.name, err))
			return
		}
		*param.address = address
	}
	if chunk.End < chunk.Start {
		writeError(c, newInvalidRangeError(fmt.Errorf("chunk %s ends before it starts", chunk)))
		return
	}
	if server.sizeLimit > 0 && index.Size(chunk) > server.sizeLimit {
		writeError(c, newInvalidRangeError(fmt.Errorf("chunk %s exceeds the size limit of %d bytes", chunk, server.sizeLimit)))
		return
	}

	opener, err := server.newOpener(c.Request)
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := bgzf.ReadChunk(source.ReaderAt(c.Request.Context(), opener, c.Param("id")), chunk)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// load returns the parsed index stored under id.
func (server *Server) load(c *gin.Context, id string) (*index.Index, error) {
	if server.cache != nil {
		if idx, ok := server.cache.Get(id); ok {
			return idx, nil
		}
	}

	opener, err := server.newOpener(c.Request)
	if err != nil {
		return nil, err
	}
	ctx := c.Request.Context()
	rc, err := opener.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	idx, err := codec.ReadAuto(binary.ContextReader(ctx, rc))
	if err != nil {
		return nil, fmt.Errorf("loading index %q: %w", id, err)
	}
	if server.cache != nil {
		server.cache.Add(id, idx)
	}
	server.logger.Debug("Loaded index",
		zap.String("id", id),
		zap.Stringer("format", idx.Format),
		zap.Int("references", len(idx.References)))
	return idx, nil
}

// referenceNames returns the reference names recorded by idx.  Indexes
// without names fall back to the header of the indexed data file, when its
// name can be derived from id and it can be read.
func (server *Server) referenceNames(c *gin.Context, id string, idx *index.Index) []string {
	names := idx.ReferenceNames()
	data := dataName(id)
	if names != nil || data == "" || c.Query("referenceName") == "" {
		return names
	}

	opener, err := server.newOpener(c.Request)
	if err != nil {
		return nil
	}
	ctx := c.Request.Context()
	rc, err := opener.Open(ctx, data)
	if err != nil {
		server.logger.Debug("Opening data for reference names", zap.String("data", data), zap.Error(err))
		return nil
	}
	defer rc.Close()
	if names, err = header.ReferenceNames(binary.ContextReader(ctx, rc)); err != nil {
		server.logger.Debug("Reading reference names", zap.String("data", data), zap.Error(err))
		return nil
	}
	return names
}

// parseRegion resolves the referenceName (or referenceId) parameter and the
// 0-based start and exclusive end parameters.
func parseRegion(c *gin.Context, names []string) (int, genomics.Region, error) {
	var (
		region genomics.Region
		id     int
		err    error
	)
	switch name, number := c.Query("referenceName"), c.Query("referenceId"); {
	case name != "":
		region.ReferenceName = name
		if id, err = index.LookupReference(names, name); err != nil {
			return 0, region, err
		}
	case number != "":
		if id, err = strconv.Atoi(number); err != nil {
			return 0, region, newInvalidInputError("parsing referenceId", err)
		}
	default:
		return 0, region, newInvalidInputError("parsing region", errMissingReference)
	}

	for _, param := range []struct {
		name  string
		value *int64
	}{
		{"start", &region.Start},
		{"end", &region.End},
	} {
		if text := c.Query(param.name); text != "" {
			n, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return 0, region, newInvalidInputError("parsing "+param.name, err)
			}
			*param.value = n
		}
	}
	return id, region, nil
}

func parseUint(c *gin.Context, name string) (uint64, error) {
	text := c.Query(name)
	if text == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, newInvalidInputError("parsing "+name, err)
	}
	return n, nil
}

// dataName returns the name of the data file indexed by the index named id,
// or the empty string if it cannot be derived.
func dataName(id string) string {
	for _, suffix := range []string{".tbi", ".csi"} {
		if data := strings.TrimSuffix(id, suffix); data != id && data != "" {
			return data
		}
	}
	return ""
}

// logRequests assigns every request an ID and logs it once handled.
func (server *Server) logRequests(c *gin.Context) {
	id := uuid.New().String()
	c.Header(RequestIDHeader, id)

	start := time.Now()
	c.Next()

	fields := []zap.Field{
		zap.String("request_id", id),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("latency", time.Since(start)),
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.String("error", c.Errors.String()))
	}
	server.logger.Info("Handled request", fields...)
}

func forwardOrigin(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
}
