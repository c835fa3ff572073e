package nrps

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quipper/lti/nrps/pkg/common/keys"
	"github.com/quipper/lti/nrps/pkg/common/logger"
	"github.com/quipper/lti/nrps/pkg/lti/validator"
	repoIface "github.com/quipper/lti/nrps/pkg/repositories/lti"
	rosterRepo "github.com/quipper/lti/nrps/pkg/repositories/roster"
)

type Handler struct {
	registrations repoIface.Repository
	roster        rosterRepo.Repository
	keys          *keys.KeyPair
	memberships   http.Handler
	publicBaseURL string
}

// NewHandler wires the HTTP surface. service serves the NRPS endpoint once the
// request scope is attached; publicBaseURL, when set, replaces the
// request-derived scheme://host in membership ids and page links.
func NewHandler(registrations repoIface.Repository, roster rosterRepo.Repository, platformKeys *keys.KeyPair, service *validator.ServiceServer, publicBaseURL string) *Handler {
	return &Handler{
		registrations: registrations,
		roster:        roster,
		keys:          platformKeys,
		memberships:   service,
		publicBaseURL: publicBaseURL,
	}
}

// Router returns a chi-based router for the /api endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/api/health", h.health)

	// Platform JWKS (verifies access tokens issued with the platform key)
	r.Get("/.well-known/jwks.json", h.jwks)

	r.Route("/api/registrations", func(r chi.Router) {
		r.Get("/", h.listRegistrations)
		r.Post("/", h.createRegistration)
		r.Get("/{id}", h.getRegistration)
		r.Delete("/{id}", h.deleteRegistration)
	})

	r.Route("/api/nrps/contexts/{contextId}", func(r chi.Router) {
		// NRPS membership container; method, media type and scope are enforced by the service server
		r.With(h.membershipScope).Handle("/memberships", h.memberships)
		// Sandbox helpers to manage the local roster. Not part of NRPS.
		r.Put("/", h.upsertContext)
		r.Post("/members", h.upsertMember)
		r.Delete("/members/{userId}", h.deleteMember)
		r.Post("/resource-links/{rlid}/members/{userId}", h.assignResourceLink)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.registrations.Health(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "unhealthy", "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// jwks serves the platform JWKS.
func (h *Handler) jwks(w http.ResponseWriter, r *http.Request) {
	data, err := h.keys.JWKSJSON()
	if err != nil {
		logger.Error("jwks: %v", err)
		http.Error(w, "failed to get JWKS", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
