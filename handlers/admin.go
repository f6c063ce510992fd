package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
	"github.com/giygas/ems-interactions-api/logging"
	"github.com/giygas/ems-interactions-api/rulestore"
	"github.com/giygas/ems-interactions-api/scheduler"
)

// AdminRole is the role claim required on admin tokens
const AdminRole = "admin"

// AdminClaims are the JWT claims accepted by AdminAuth
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type createRuleRequest struct {
	DrugA           string `json:"drug_a" validate:"required,max=100"`
	DrugB           string `json:"drug_b" validate:"required,max=100"`
	Severity        string `json:"severity" validate:"required"`
	Description     string `json:"description" validate:"required,max=2000"`
	ClinicalEffects string `json:"clinical_effects" validate:"max=2000"`
	Management      string `json:"management" validate:"max=2000"`
}

// AdminAuth accepts HS256 bearer tokens signed with secret and carrying role=admin
func AdminAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims := &AdminClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				logging.Warn("Rejected admin token", "remote_addr", r.RemoteAddr, "error", err)
				respondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if claims.Role != AdminRole {
				respondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CreateInteractionRule stores a new rule and reloads the live table
func (h *HTTPHandlerImpl) CreateInteractionRule(w http.ResponseWriter, r *http.Request) {
	if h.ruleStore == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "Rule store not configured")
		return
	}

	var req createRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	severity, err := entities.ParseSeverity(req.Severity)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule := entities.InteractionRule{
		DrugA:           strings.TrimSpace(req.DrugA),
		DrugB:           strings.TrimSpace(req.DrugB),
		Severity:        severity,
		Description:     strings.TrimSpace(req.Description),
		ClinicalEffects: strings.TrimSpace(req.ClinicalEffects),
		Management:      strings.TrimSpace(req.Management),
		Source:          "admin",
	}
	if err := h.validator.ValidateRule(&rule); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.ruleStore.Create(r.Context(), &rule); err != nil {
		if errors.Is(err, rulestore.ErrDuplicatePair) {
			h.RespondWithError(w, http.StatusConflict, err.Error())
			return
		}
		logging.Error("Failed to create interaction rule", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Could not store rule")
		return
	}

	logging.Info("Interaction rule created", "id", rule.ID, "pair", rule.PairKey())
	h.reload()

	h.RespondWithJSON(w, http.StatusCreated, rule)
}

// DeleteInteractionRule deactivates a stored rule and reloads the live table
func (h *HTTPHandlerImpl) DeleteInteractionRule(w http.ResponseWriter, r *http.Request) {
	if h.ruleStore == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "Rule store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.ruleStore.Delete(r.Context(), id); err != nil {
		if errors.Is(err, rulestore.ErrRuleNotFound) {
			h.RespondWithError(w, http.StatusNotFound, "Rule not found")
			return
		}
		logging.Error("Failed to delete interaction rule", "id", id, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Could not delete rule")
		return
	}

	logging.Info("Interaction rule deleted", "id", id)
	h.reload()

	w.WriteHeader(http.StatusNoContent)
}

// RefreshData reloads the reference table and catalog now
func (h *HTTPHandlerImpl) RefreshData(w http.ResponseWriter, r *http.Request) {
	if err := h.refresh(); err != nil {
		if errors.Is(err, scheduler.ErrUpdateInProgress) {
			h.RespondWithError(w, http.StatusConflict, err.Error())
			return
		}
		logging.Error("Manual refresh failed", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Refresh failed, previous data kept")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]any{
		"status":      "refreshed",
		"rules":       len(h.dataStore.Rules()),
		"medications": len(h.dataStore.GetMedications()),
		"last_update": h.dataStore.GetLastUpdated(),
	})
}

// reload applies an admin edit to the live table; a failure leaves the edit
// stored for the next scheduled refresh
func (h *HTTPHandlerImpl) reload() {
	if err := h.refresh(); err != nil {
		logging.Warn("Reload after admin edit failed", "error", err)
	}
}
