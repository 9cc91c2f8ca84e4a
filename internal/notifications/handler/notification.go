package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"libris/internal/notifications/service"
	httputil "libris/pkg/http"
	"libris/pkg/logger"
	"libris/pkg/middleware"
)

type NotificationHandler struct {
	service service.NotificationService
	auth    *middleware.Authenticator
	log     *logger.Logger
}

func NewNotificationHandler(service service.NotificationService, auth *middleware.Authenticator, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		auth:    auth,
		log:     log,
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	principal, _ := middleware.PrincipalFromContext(r.Context())
	notifications, totalCount, err := h.service.List(r.Context(), principal, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, notifications, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *NotificationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *NotificationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/notifications", h.auth.Require(h.List))
}
