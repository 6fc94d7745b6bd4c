package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"chowline/internal/auth"
	"chowline/internal/domain"
	"chowline/internal/orders/repository"
	"chowline/internal/orders/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}
	var req domain.PlacementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	order, err := h.service.PlaceOrder(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	order, err := h.service.UpdateStatus(r.Context(), actor, r.PathValue("id"), domain.Status(body.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}
	orders, err := h.service.ListOwn(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}
	orders, err := h.service.ListAll(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// writeError maps the error taxonomy onto HTTP statuses so the client can
// map them back and offer the right recovery action.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	var aerr *domain.AuthorizationError
	var terr *domain.TransitionError
	switch {
	case errors.As(err, &verr):
		writeProblem(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.As(err, &aerr):
		writeProblem(w, http.StatusForbidden, "authorization_error", aerr.Error())
	case errors.As(err, &terr):
		writeProblem(w, http.StatusConflict, "transition_error", terr.Error())
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrRestaurantNotFound),
		errors.Is(err, repository.ErrMenuItemNotFound):
		writeProblem(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, repository.ErrStatusConflict):
		writeProblem(w, http.StatusConflict, "transition_error", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, code int, typ, detail string) {
	writeJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

func actorFrom(r *http.Request) (auth.Actor, bool) {
	actor, ok := r.Context().Value(actorKey{}).(auth.Actor)
	return actor, ok
}
