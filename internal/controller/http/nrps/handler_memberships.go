package nrps

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quipper/lti/nrps/internal/membership"
	"github.com/quipper/lti/nrps/pkg/common/logger"
	"github.com/quipper/lti/nrps/pkg/nrps"
	rosterRepo "github.com/quipper/lti/nrps/pkg/repositories/roster"
)

// membershipScope tells the roster builder which context is asked for and
// the absolute URL pages are relative to.
func (h *Handler) membershipScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := membership.WithScope(r.Context(), membership.Scope{
			ContextID:    chi.URLParam(r, "contextId"),
			ContainerURL: h.absoluteURL(r),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Not part of LTI; provided for sandbox convenience.
// upsertContext PUT /api/nrps/contexts/{contextId}
func (h *Handler) upsertContext(w http.ResponseWriter, r *http.Request) {
	var c rosterRepo.Context
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalidJson", http.StatusBadRequest)
		return
	}
	c.ID = chi.URLParam(r, "contextId")
	if err := h.roster.UpsertContext(r.Context(), &c); err != nil {
		logger.Error("upsertContext: %v", err)
		http.Error(w, "failed to save context", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(c)
}

// Not part of LTI; provided for sandbox convenience.
// upsertMember POST /api/nrps/contexts/{contextId}/members
func (h *Handler) upsertMember(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextId")
	var m rosterRepo.Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "invalidJson", http.StatusBadRequest)
		return
	}
	if m.UserID == "" {
		http.Error(w, "userIdRequired", http.StatusBadRequest)
		return
	}
	switch m.Status {
	case "", nrps.StatusActive, nrps.StatusInactive, nrps.StatusDeleted:
	default:
		http.Error(w, "invalidStatus", http.StatusBadRequest)
		return
	}
	if err := h.roster.UpsertMember(r.Context(), contextID, &m); err != nil {
		logger.Error("upsertMember: context=%s user=%s: %v", contextID, m.UserID, err)
		http.Error(w, "failed to save member", http.StatusInternalServerError)
		return
	}
	logger.Debug("upsertMember: context=%s user=%s", contextID, m.UserID)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}

// Not part of LTI; provided for sandbox convenience.
// deleteMember DELETE /api/nrps/contexts/{contextId}/members/{userId}
func (h *Handler) deleteMember(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextId")
	userID := chi.URLParam(r, "userId")
	if err := h.roster.DeleteMember(r.Context(), contextID, userID); err != nil {
		logger.Error("deleteMember: context=%s user=%s: %v", contextID, userID, err)
		http.Error(w, "failed to delete member", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Not part of LTI; provided for sandbox convenience.
// assignResourceLink POST /api/nrps/contexts/{contextId}/resource-links/{rlid}/members/{userId}
func (h *Handler) assignResourceLink(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextId")
	rlid := chi.URLParam(r, "rlid")
	userID := chi.URLParam(r, "userId")
	if err := h.roster.AssignResourceLink(r.Context(), contextID, rlid, userID); err != nil {
		logger.Error("assignResourceLink: context=%s rlid=%s user=%s: %v", contextID, rlid, userID, err)
		http.Error(w, "failed to assign member", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// absoluteURL builds the absolute URL of the current request, query included,
// using PUBLIC_BASE_URL or X-Forwarded-* headers when present.
func (h *Handler) absoluteURL(r *http.Request) string {
	base := h.publicBaseURL
	if base == "" {
		scheme, host := schemeHost(r)
		base = scheme + "://" + host
	}
	u := base + r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	return u
}

func schemeHost(r *http.Request) (string, string) {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme, host
}
