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

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/googlegenomics/htsindex/index"
	"github.com/googlegenomics/htsindex/source"
	"github.com/googlegenomics/htsindex/source/gcs"
)

var errMissingReference = errors.New("no referenceName or referenceId specified")

// apiError is used to capture errors that have a name and status code.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func (err *apiError) Unwrap() error {
	return err.cause
}

func newAPIError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %w", context, err)}
}

func newInvalidInputError(context string, err error) error {
	return newAPIError("InvalidInput", http.StatusBadRequest, context, err)
}

func newInvalidRangeError(err error) error {
	return &apiError{"InvalidRange", http.StatusBadRequest, err}
}

// classify converts err into an apiError.
func classify(err error) *apiError {
	var named *apiError
	if errors.As(err, &named) {
		return named
	}

	var (
		validation *index.ValidationError
		format     *index.FormatError
	)
	switch {
	case errors.Is(err, index.ErrInvalidInterval):
		return &apiError{"InvalidRange", http.StatusBadRequest, err}
	case errors.As(err, &validation):
		return &apiError{"InvalidInput", http.StatusBadRequest, err}
	case errors.Is(err, source.ErrNotFound):
		return &apiError{"NotFound", http.StatusNotFound, err}
	case errors.Is(err, gcs.ErrMissingOrInvalidToken):
		return &apiError{"InvalidAuthentication", http.StatusUnauthorized, err}
	case errors.Is(err, source.ErrPermissionDenied):
		return &apiError{"PermissionDenied", http.StatusForbidden, err}
	case errors.As(err, &format):
		return &apiError{"InvalidIndex", http.StatusUnprocessableEntity, err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &apiError{"Canceled", http.StatusServiceUnavailable, err}
	}
	return &apiError{"InternalError", http.StatusInternalServerError, err}
}

// writeError writes a JSON object describing err and records err on the
// context for logging.
func writeError(c *gin.Context, err error) {
	c.Error(err)
	classified := classify(err)
	c.AbortWithStatusJSON(classified.code, gin.H{
		"error": gin.H{
			"kind":    classified.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(classified.code), classified.cause),
		},
	})
}
