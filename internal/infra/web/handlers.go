package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"billpay-wizard/internal/domain"
	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/infra/logging"
	"billpay-wizard/internal/infra/metrics"
	"billpay-wizard/internal/infra/redis"
)

// sessionView is what the host UI sees: progress, the current validation
// error, a busy flag, collected fields and the terminal result. The PIN is
// never echoed back.
type sessionView struct {
	ID              string               `json:"id"`
	Service         model.Service        `json:"service"`
	Step            model.StepID         `json:"step"`
	StepIndex       int                  `json:"step_index"`
	TotalSteps      int                  `json:"total_steps"`
	Phase           model.Phase          `json:"phase"`
	Busy            bool                 `json:"busy"`
	Error           string               `json:"error,omitempty"`
	AccountID       string               `json:"account_id,omitempty"`
	Charges         []model.Charge       `json:"charges,omitempty"`
	ChargesFetched  bool                 `json:"charges_fetched"`
	SelectedCharges []string             `json:"selected_charges,omitempty"`
	Plan            string               `json:"plan,omitempty"`
	ManualAmount    int64                `json:"manual_amount,omitempty"`
	Amount          int64                `json:"amount"`
	Channel         string               `json:"channel,omitempty"`
	Phone           string               `json:"phone,omitempty"`
	Result          *model.PaymentResult `json:"result,omitempty"`
}

func viewOf(s *model.WizardSession) sessionView {
	return sessionView{
		ID:              s.ID,
		Service:         s.Service,
		Step:            s.CurrentStep(),
		StepIndex:       s.StepIndex,
		TotalSteps:      s.TotalSteps(),
		Phase:           s.Phase,
		Busy:            s.Busy(),
		Error:           s.LastError,
		AccountID:       s.AccountID,
		Charges:         s.Charges,
		ChargesFetched:  s.ChargesFetched,
		SelectedCharges: s.SelectedCharges,
		Plan:            s.PlanName,
		ManualAmount:    s.ManualAmount,
		Amount:          s.Amount,
		Channel:         s.Channel,
		Phone:           s.Phone,
		Result:          s.Result,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrServiceUnavailable):
		http.Error(w, "Service not available", http.StatusNotFound)
	case errors.Is(err, domain.ErrCatalogUnavailable):
		http.Error(w, "Service catalog unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrSessionTerminal), errors.Is(err, domain.ErrSubmissionInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrRateLimited):
		http.Error(w, "Too many attempts", http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "Invalid request", http.StatusBadRequest)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func (s *Server) mintTokenHandler(w http.ResponseWriter, r *http.Request) {
	if s.mintKey == "" || r.Header.Get("X-Api-Key") != s.mintKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var req struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	token, err := s.auth.Mint(req.Subject)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) listServicesHandler(w http.ResponseWriter, r *http.Request) {
	services, err := s.catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	auth := authFromContext(r.Context())

	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), redis.SessionStartKey(auth.Subject), s.rate.Limit, s.rate.Window)
		if err != nil {
			logging.With(r.Context(), s.log).Error().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			writeError(w, domain.ErrRateLimited)
			return
		}
	}

	var req struct {
		Hints []string `json:"hints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Hints) == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := s.wizard.Start(r.Context(), auth.Subject, req.Hints)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncWizardSession(sess.Service.Slug)
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.wizard.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) cancelSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.wizard.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setFieldHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Field == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := s.wizard.SetField(r.Context(), chi.URLParam(r, "id"), req.Field, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) toggleChargeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChargeID string `json:"charge_id"`
		Selected bool   `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChargeID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := s.wizard.ToggleCharge(r.Context(), chi.URLParam(r, "id"), req.ChargeID, req.Selected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) nextHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.wizard.Next(r.Context(), authFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.LastError == "" {
		metrics.IncWizardStep(string(sess.CurrentStep()))
		logging.With(r.Context(), s.log).Debug().Str("step", string(sess.CurrentStep())).Msg("step advanced")
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) previousHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.wizard.Previous(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncWizardStep(string(sess.CurrentStep()))
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) listReceiptsHandler(w http.ResponseWriter, r *http.Request) {
	if s.receipts == nil {
		http.Error(w, "Receipt history disabled", http.StatusNotFound)
		return
	}
	auth := authFromContext(r.Context())
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	receipts, err := s.receipts.ListBySubject(r.Context(), auth.Subject, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts, "limit": limit, "offset": offset})
}
