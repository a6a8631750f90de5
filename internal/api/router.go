package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/inferpipe/inferpipe/internal/api/middleware"
	"github.com/inferpipe/inferpipe/internal/api/response"
)

// Dependencies holds all handler dependencies for the router.
type Dependencies struct {
	SubmitHandler http.HandlerFunc
	GetJobHandler http.HandlerFunc
	HealthHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/health", orNotImplemented(deps.HealthHandler))

	r.Post("/job", orNotImplemented(deps.SubmitHandler))
	r.Get("/job/{jobID}", orNotImplemented(deps.GetJobHandler))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented")
	}
}
