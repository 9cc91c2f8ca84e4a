package middleware

import (
	"net/http"

	apperrors "libris/pkg/errors"
	"libris/pkg/logger"
)

func MaxRequestSize(maxBytes int64, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				reject(w, log, r, apperrors.New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge))
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
