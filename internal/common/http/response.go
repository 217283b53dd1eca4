// Package http holds the JSON request and response helpers of the public API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "roommate-match-workers/internal/common/errors"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the standard error envelope and returns the status
// written. Rate-limit errors also set Retry-After.
func WriteError(w http.ResponseWriter, err error, devMode bool) int {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr.Code)
	if stdErr.Code == apperrors.ErrCodeRateLimited {
		if secs, ok := stdErr.Metadata["retryAfterSeconds"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	}
	WriteJSON(w, status, stdErr.ToResponse(devMode))
	return status
}

// DecodeJSON reads one JSON object from the body into dst. Any failure is an
// InvalidRequest error.
func DecodeJSON(r *http.Request, w http.ResponseWriter, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperrors.NewInvalidRequestError("request body is empty")
		case errors.As(err, &maxErr):
			return apperrors.NewInvalidRequestError(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		default:
			return apperrors.NewInvalidRequestError("malformed JSON: " + err.Error())
		}
	}
	if dec.More() {
		return apperrors.NewInvalidRequestError("request body must hold a single JSON object")
	}
	return nil
}
