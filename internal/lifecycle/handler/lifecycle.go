package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"libris/internal/lifecycle/service"
	httputil "libris/pkg/http"
	"libris/pkg/logger"
	"libris/pkg/middleware"
	"libris/pkg/model"
)

type LifecycleHandler struct {
	service service.LifecycleService
	auth    *middleware.Authenticator
	log     *logger.Logger
}

func NewLifecycleHandler(service service.LifecycleService, auth *middleware.Authenticator, log *logger.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		service: service,
		auth:    auth,
		log:     log,
	}
}

func (h *LifecycleHandler) Rent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Rent", err)
		return
	}

	principal, _ := middleware.PrincipalFromContext(r.Context())
	record, err := h.service.Rent(r.Context(), principal, &req)
	if err != nil {
		h.writeError(w, "Rent", err)
		return
	}

	if err := httputil.WriteCreated(w, record); err != nil {
		h.log.Error("failed to write created response", "handler", "Rent", "operation", "WriteCreated", "error", err)
	}
}

func (h *LifecycleHandler) Return(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReturnRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Return", err)
		return
	}

	principal, _ := middleware.PrincipalFromContext(r.Context())
	result, err := h.service.Return(r.Context(), principal, &req)
	if err != nil {
		h.writeError(w, "Return", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Return", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LifecycleHandler) History(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	principal, _ := middleware.PrincipalFromContext(r.Context())
	records, totalCount, err := h.service.History(r.Context(), principal, limit, offset)
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	if err := httputil.WritePaginated(w, records, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "History", "operation", "WritePaginated", "error", err)
	}
}

func (h *LifecycleHandler) Reserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReserveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	principal, _ := middleware.PrincipalFromContext(r.Context())
	reservation, err := h.service.Reserve(r.Context(), principal, &req)
	if err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Reserve", "operation", "WriteCreated", "error", err)
	}
}

func (h *LifecycleHandler) ListReservations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListReservations", err)
		return
	}

	principal, _ := middleware.PrincipalFromContext(r.Context())
	reservations, totalCount, err := h.service.ListReservations(r.Context(), principal, limit, offset)
	if err != nil {
		h.writeError(w, "ListReservations", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListReservations", "operation", "WritePaginated", "error", err)
	}
}

func (h *LifecycleHandler) AcceptReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	acceptance, err := h.service.AcceptReservation(r.Context(), principal, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "AcceptReservation", err)
		return
	}

	if err := httputil.WriteMessage(w, "Reservation accepted", acceptance); err != nil {
		h.log.Error("failed to write success response", "handler", "AcceptReservation", "operation", "WriteMessage", "error", err)
	}
}

func (h *LifecycleHandler) RejectReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	reservation, err := h.service.RejectReservation(r.Context(), principal, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "RejectReservation", err)
		return
	}

	if err := httputil.WriteMessage(w, "Reservation rejected", reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "RejectReservation", "operation", "WriteMessage", "error", err)
	}
}

func (h *LifecycleHandler) ListFines(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListFines", err)
		return
	}

	principal, _ := middleware.PrincipalFromContext(r.Context())
	status := r.URL.Query().Get("status")
	fines, totalCount, err := h.service.ListFines(r.Context(), principal, status, limit, offset)
	if err != nil {
		h.writeError(w, "ListFines", err)
		return
	}

	if err := httputil.WritePaginated(w, fines, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListFines", "operation", "WritePaginated", "error", err)
	}
}

func (h *LifecycleHandler) PayFine(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	fine, err := h.service.PayFine(r.Context(), principal, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "PayFine", err)
		return
	}

	if err := httputil.WriteMessage(w, "Fine paid", fine); err != nil {
		h.log.Error("failed to write success response", "handler", "PayFine", "operation", "WriteMessage", "error", err)
	}
}

func (h *LifecycleHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *LifecycleHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/rentals", h.auth.Require(h.Rent))
	router.POST("/api/v1/rentals/return", h.auth.Require(h.Return))
	router.GET("/api/v1/rentals/history", h.auth.Require(h.History))

	router.GET("/api/v1/reservations", h.auth.Require(h.ListReservations))
	router.POST("/api/v1/reservations", h.auth.Require(h.Reserve))
	router.POST("/api/v1/reservations/id/:id/accept", h.auth.Require(h.AcceptReservation))
	router.POST("/api/v1/reservations/id/:id/reject", h.auth.RequireRole(model.RoleAdmin, h.RejectReservation))

	router.GET("/api/v1/fines", h.auth.Require(h.ListFines))
	router.POST("/api/v1/fines/id/:id/pay", h.auth.Require(h.PayFine))
}
