package middleware

import (
	"net/http"

	apperrors "github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/util"
)

const defaultMaxBodySize = 200 * util.MB

// BodySizeLimit returns middleware that restricts the request body to the given
// size string (e.g. "200MB", "512KB", "1GB"). Requests that declare a larger
// Content-Length are rejected up front with 413.
func BodySizeLimit(maxSize string) Middleware {
	size := util.ParseSize(maxSize, defaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > size {
				writeError(w, BodyTooLarge(size))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}

// BodyTooLarge is the 413 error for bodies over limit bytes. Handlers
// return it when a read hits the http.MaxBytesReader ceiling.
func BodyTooLarge(limit int64) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeInvalidInput,
		"Request body exceeds the "+util.FormatSize(limit)+" limit",
		http.StatusRequestEntityTooLarge).WithDetail("limit_bytes", limit)
}
