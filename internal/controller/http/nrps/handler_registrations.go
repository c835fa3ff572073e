package nrps

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quipper/lti/nrps/pkg/common/logger"
	"github.com/quipper/lti/nrps/pkg/lti"
)

func (h *Handler) createRegistration(w http.ResponseWriter, r *http.Request) {
	logger.Debug("createRegistration: start")
	var req lti.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("createRegistration: invalid JSON: %v", err)
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	// Minimal validation
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.ClientID) == "" {
		http.Error(w, "name and client_id are required", http.StatusBadRequest)
		return
	}
	existing, err := h.registrations.GetRegistrationByClientID(r.Context(), req.ClientID)
	if err != nil {
		logger.Error("lookup registration client_id=%s: %v", req.ClientID, err)
		http.Error(w, "failed to create registration", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "client_id already registered", http.StatusConflict)
		return
	}
	req.ID = ""
	if err := h.registrations.CreateRegistration(r.Context(), &req); err != nil {
		logger.Error("create registration: %v", err)
		http.Error(w, "failed to create registration", http.StatusInternalServerError)
		return
	}
	logger.Debug("createRegistration: created id=%s name=%s client_id=%s", req.ID, req.Name, req.ClientID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(req)
}

func (h *Handler) listRegistrations(w http.ResponseWriter, r *http.Request) {
	items, err := h.registrations.ListRegistrations(r.Context())
	if err != nil {
		logger.Error("list registrations: %v", err)
		http.Error(w, "failed to list registrations", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*lti.Registration{}
	}
	logger.Debug("listRegistrations: returned %d items", len(items))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) getRegistration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.registrations.GetRegistration(r.Context(), id)
	if err != nil {
		logger.Error("get registration %s: %v", id, err)
		http.Error(w, "failed to get registration", http.StatusInternalServerError)
		return
	}
	if item == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

func (h *Handler) deleteRegistration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registrations.DeleteRegistration(r.Context(), id); err != nil {
		logger.Error("delete registration %s: %v", id, err)
		http.Error(w, "failed to delete registration", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logger.Debug("deleteRegistration: deleted id=%s", id)
}
