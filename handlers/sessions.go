package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/logging"
	"github.com/giygas/ems-interactions-api/metrics"
	"github.com/giygas/ems-interactions-api/sessions"
)

type addMedicationRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

var errNotSelected = errors.New("medication not selected")

// selectionError carries a validation failure out of a session update
type selectionError struct {
	err error
}

func (e *selectionError) Error() string { return e.err.Error() }
func (e *selectionError) Unwrap() error { return e.err }

// CreateSession opens an empty selection
func (h *HTTPHandlerImpl) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Create(r.Context())
	if err != nil {
		logging.Error("Failed to create session", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Could not create session")
		return
	}
	h.updateSessionGauge(r.Context())

	h.RespondWithJSON(w, http.StatusCreated, newSessionView(session))
}

// GetSession returns the current selection
func (h *HTTPHandlerImpl) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	h.RespondWithJSON(w, http.StatusOK, newSessionView(session))
}

// DeleteSession discards the selection when the checker closes
func (h *HTTPHandlerImpl) DeleteSession(w http.ResponseWriter, r *http.Request) {
	err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithSessionError(w, err)
		return
	}
	h.updateSessionGauge(r.Context())

	w.WriteHeader(http.StatusNoContent)
}

// AddSessionMedication adds a name to the selection; adding a selected name is a no-op
func (h *HTTPHandlerImpl) AddSessionMedication(w http.ResponseWriter, r *http.Request) {
	var req addMedicationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if err := h.validator.ValidateInput(name); err != nil {
		logging.Warn("Unusual user input", "name", name)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	added := false
	session, err := h.sessions.Update(r.Context(), chi.URLParam(r, "id"), func(s *interfaces.Session) error {
		added = false
		if s.Selection.Contains(name) {
			return nil
		}
		if err := h.validator.ValidateSelection(append(s.Selection.Names(), name)); err != nil {
			return &selectionError{err: err}
		}
		added = s.Selection.Add(name)
		return nil
	})
	if err != nil {
		h.respondWithSessionError(w, err)
		return
	}

	h.RespondWithJSON(w, http.StatusOK, addMedicationResponse{Session: newSessionView(session), Added: added})
}

// RemoveSessionMedication drops a name from the selection
func (h *HTTPHandlerImpl) RemoveSessionMedication(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || strings.TrimSpace(name) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid medication name")
		return
	}

	session, err := h.sessions.Update(r.Context(), chi.URLParam(r, "id"), func(s *interfaces.Session) error {
		if !s.Selection.Remove(name) {
			return errNotSelected
		}
		return nil
	})
	if err != nil {
		h.respondWithSessionError(w, err)
		return
	}

	h.RespondWithJSON(w, http.StatusOK, newSessionView(session))
}

// CheckSessionInteractions checks the current selection; ?sort=severity orders by severity
func (h *HTTPHandlerImpl) CheckSessionInteractions(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sort")
	if sortBy != "" && sortBy != "pairs" && sortBy != "severity" {
		h.RespondWithError(w, http.StatusBadRequest, "sort must be one of: pairs severity")
		return
	}

	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	h.respondWithReport(w, h.matcher.Check(session.Selection), sortBy)
}

func (h *HTTPHandlerImpl) loadSession(w http.ResponseWriter, r *http.Request) (*interfaces.Session, bool) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithSessionError(w, err)
		return nil, false
	}
	return session, true
}

func (h *HTTPHandlerImpl) respondWithSessionError(w http.ResponseWriter, err error) {
	var selErr *selectionError
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		h.RespondWithError(w, http.StatusNotFound, "Session not found")
		return
	case errors.Is(err, errNotSelected):
		h.RespondWithError(w, http.StatusNotFound, "Medication not selected")
		return
	case errors.As(err, &selErr):
		h.RespondWithError(w, http.StatusBadRequest, selErr.Error())
		return
	case errors.Is(err, sessions.ErrTooManyConflicts):
		h.RespondWithError(w, http.StatusConflict, "Session is being changed elsewhere, retry")
		return
	}
	logging.Error("Session store failure", "error", err)
	h.RespondWithError(w, http.StatusInternalServerError, "Session store unavailable")
}

func (h *HTTPHandlerImpl) updateSessionGauge(ctx context.Context) {
	metrics.SelectionSessionsActive.Set(float64(h.sessions.Count(ctx)))
}
