package middleware

import (
	"net/http"

	apperrors "libris/pkg/errors"
	httputil "libris/pkg/http"
	"libris/pkg/logger"
)

const (
	CodeRateLimited          = "RATE_LIMITED"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeRequestInProgress    = "REQUEST_IN_PROGRESS"
)

func reject(w http.ResponseWriter, log *logger.Logger, r *http.Request, err *apperrors.AppError) {
	log.Warn("Request rejected by middleware",
		"request_id", RequestIDFromContext(r.Context()),
		"code", err.Code,
		"reason", err.Message,
		"method", r.Method,
		"path", r.URL.Path,
	)
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		log.Error("failed to write error response", "middleware", err.Code, "error", writeErr)
	}
}
