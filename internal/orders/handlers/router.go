package handlers

import (
	"context"
	"net/http"

	"chowline/internal/auth"
)

type actorKey struct{}

// Router wires the order endpoints behind bearer authentication.
func Router(h *OrderHandler, verifier *auth.Verifier) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /orders", authenticate(verifier, http.HandlerFunc(h.PlaceOrder)))
	mux.Handle("PUT /orders/{id}/status", authenticate(verifier, http.HandlerFunc(h.UpdateStatus)))
	mux.Handle("GET /orders", authenticate(verifier, http.HandlerFunc(h.ListOwn)))
	mux.Handle("GET /admin/orders", authenticate(verifier, http.HandlerFunc(h.ListAll)))
	return mux
}

func authenticate(verifier *auth.Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := verifier.Verify(r.Header.Get("Authorization"))
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}
