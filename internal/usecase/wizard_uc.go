package usecase

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"billpay-wizard/internal/domain"
	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/domain/ports/adapter"
	"billpay-wizard/internal/domain/ports/repository"
	"billpay-wizard/internal/infra/logging"
)

// Field names accepted by SetField.
const (
	FieldAccount = "account"
	FieldAmount  = "amount"
	FieldPlan    = "plan"
	FieldChannel = "channel"
	FieldPhone   = "phone"
	FieldPIN     = "pin"
)

// WizardUseCase is the step sequencer: it orders data collection, resolver
// calls and the single submission into a per-service step list, validating
// each step before advancing. All session mutations for one session are
// serialized through a per-session mutex; the only work done outside the
// lock is network I/O (charge lookups, submission).
type WizardUseCase struct {
	catalog  *CatalogUseCase
	charges  *ChargesUseCase
	backend  adapter.BillingBackend
	sessions repository.SessionRepository
	receipts repository.ReceiptRepository // optional; nil disables history
	rules    map[string]model.ServiceRules
	currency string
	log      *zerolog.Logger

	locks sync.Map // session id -> *sync.Mutex
}

// NewWizardUseCase constructs the sequencer. rules maps service slugs to
// their wizard rules; services without an entry get defaults.
func NewWizardUseCase(
	catalog *CatalogUseCase,
	charges *ChargesUseCase,
	backend adapter.BillingBackend,
	sessions repository.SessionRepository,
	receipts repository.ReceiptRepository,
	rules map[string]model.ServiceRules,
	currency string,
	logger *zerolog.Logger,
) *WizardUseCase {
	return &WizardUseCase{
		catalog:  catalog,
		charges:  charges,
		backend:  backend,
		sessions: sessions,
		receipts: receipts,
		rules:    rules,
		currency: currency,
		log:      logger,
	}
}

func (uc *WizardUseCase) lockFor(id string) *sync.Mutex {
	mu, _ := uc.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Start resolves the service from hint tokens and opens a fresh session at
// the first step. Catalog or service resolution failures block session
// creation entirely.
func (uc *WizardUseCase) Start(ctx context.Context, subject string, hints []string) (*model.WizardSession, error) {
	defer logging.TraceDuration(uc.log, "WizardUseCase.Start")()
	svc, err := uc.catalog.Resolve(ctx, hints)
	if err != nil {
		return nil, err
	}
	rules, ok := uc.rules[svc.Slug]
	if !ok {
		rules = model.DefaultServiceRules()
	}
	sess := model.NewWizardSession(newSessionID(), subject, *svc, rules)
	if err := uc.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	uc.log.Info().Str("session_id", sess.ID).Str("service", svc.Slug).Msg("wizard session opened")
	return sess, nil
}

// Get returns the current session state.
func (uc *WizardUseCase) Get(ctx context.Context, id string) (*model.WizardSession, error) {
	return uc.sessions.Find(ctx, id)
}

// Cancel destroys the session. Rejected while a submission is in flight.
func (uc *WizardUseCase) Cancel(ctx context.Context, id string) error {
	mu := uc.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := uc.sessions.Find(ctx, id)
	if err != nil {
		return err
	}
	if sess.Busy() {
		return domain.ErrSubmissionInFlight
	}
	if err := uc.sessions.Delete(ctx, id); err != nil {
		return err
	}
	// The lock entry goes only after the row is gone: a caller that mints a
	// fresh mutex for this id can no longer find a session behind it.
	uc.locks.Delete(id)
	return nil
}

// SetField records user input on the current step. Amount, plan and charge
// selection changes recompute the payable amount immediately. Changing the
// account identifier discards previously fetched charges; if the session is
// already on the item-selection step the lookup is re-run with
// last-request-wins semantics.
func (uc *WizardUseCase) SetField(ctx context.Context, id, field, value string) (*model.WizardSession, error) {
	mu := uc.lockFor(id)
	mu.Lock()

	sess, err := uc.loadMutable(ctx, id)
	if err != nil {
		mu.Unlock()
		return nil, err
	}

	refetch := false
	switch field {
	case FieldAccount:
		if value != sess.AccountID {
			sess.AccountID = value
			sess.ResetCharges()
			sess.FetchSeq++
			recomputeAmount(sess)
			refetch = sess.CurrentStep() == model.StepItems && sess.Rules.MatchIdentifier(value)
		}
	case FieldAmount:
		if sess.Service.Mode == model.BillingModePlan {
			uc.stayInvalid(sess, validationf(FieldAmount, "manual amount entry is not permitted for %s", sess.Service.Name))
			return uc.saveAndUnlock(ctx, sess, mu)
		}
		if len(sess.SelectedCharges) > 0 {
			uc.stayInvalid(sess, validationf(FieldAmount, "manual amount is disabled while charges are selected"))
			return uc.saveAndUnlock(ctx, sess, mu)
		}
		n, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil || n < 0 {
			uc.stayInvalid(sess, validationf(FieldAmount, "amount must be a whole number"))
			return uc.saveAndUnlock(ctx, sess, mu)
		}
		sess.ManualAmount = n
		recomputeAmount(sess)
	case FieldPlan:
		if sess.Service.Mode != model.BillingModePlan {
			uc.stayInvalid(sess, validationf(FieldPlan, "%s has no plans to choose from", sess.Service.Name))
			return uc.saveAndUnlock(ctx, sess, mu)
		}
		sess.PlanName = value
		recomputeAmount(sess)
	case FieldChannel:
		sess.Channel = value
	case FieldPhone:
		sess.Phone = value
	case FieldPIN:
		sess.PIN = value
	default:
		mu.Unlock()
		return nil, domain.ErrInvalidArgument
	}

	sess.LastError = ""
	sess.UpdatedAt = time.Now()
	if err := uc.sessions.Save(ctx, sess); err != nil {
		mu.Unlock()
		return nil, err
	}
	if !refetch {
		mu.Unlock()
		return sess, nil
	}
	// Identifier changed while on the selection step: re-run the lookup.
	return uc.fetchCharges(ctx, mu, sess, false)
}

// ToggleCharge selects or deselects an outstanding charge. Selecting any
// charge supersedes manual amount entry until the selection is emptied.
func (uc *WizardUseCase) ToggleCharge(ctx context.Context, id, chargeID string, selected bool) (*model.WizardSession, error) {
	mu := uc.lockFor(id)
	mu.Lock()

	sess, err := uc.loadMutable(ctx, id)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if sess.Service.Mode != model.BillingModeCharge || !sess.ChargesFetched {
		mu.Unlock()
		return nil, domain.ErrInvalidArgument
	}
	if selected {
		sess.SelectCharge(chargeID)
	} else {
		sess.DeselectCharge(chargeID)
	}
	recomputeAmount(sess)
	sess.LastError = ""
	sess.UpdatedAt = time.Now()
	return uc.saveAndUnlock(ctx, sess, mu)
}

// Next validates the current step and advances. On the account step of a
// charge-based service a passing validation triggers the charge lookup
// before advancing; on the credentials step it triggers the submission
// instead of a plain advance. Every intermediate step is reachable only by
// passing validation of all prior steps in order.
func (uc *WizardUseCase) Next(ctx context.Context, auth adapter.AuthContext, id string) (*model.WizardSession, error) {
	defer logging.TraceDuration(uc.log, "WizardUseCase.Next")()
	mu := uc.lockFor(id)
	mu.Lock()

	sess, err := uc.loadMutable(ctx, id)
	if err != nil {
		mu.Unlock()
		return nil, err
	}

	step := sess.CurrentStep()
	if verr := stepValidators[step](sess); verr != nil {
		uc.stayInvalid(sess, verr)
		return uc.saveAndUnlock(ctx, sess, mu)
	}
	sess.LastError = ""

	switch {
	case step == model.StepAccount && sess.Service.Mode == model.BillingModeCharge && !sess.ChargesFetched:
		return uc.fetchCharges(ctx, mu, sess, true)
	case step == model.StepCredentials:
		return uc.submit(ctx, mu, auth, sess)
	default:
		uc.advance(sess)
		return uc.saveAndUnlock(ctx, sess, mu)
	}
}

// Previous moves one step back, clearing any error but preserving collected
// field values. A no-op on the first step.
func (uc *WizardUseCase) Previous(ctx context.Context, id string) (*model.WizardSession, error) {
	mu := uc.lockFor(id)
	mu.Lock()

	sess, err := uc.loadMutable(ctx, id)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if sess.StepIndex > 0 {
		sess.StepIndex--
		sess.LastError = ""
		sess.UpdatedAt = time.Now()
	}
	return uc.saveAndUnlock(ctx, sess, mu)
}

// loadMutable fetches a session that may still accept events.
func (uc *WizardUseCase) loadMutable(ctx context.Context, id string) (*model.WizardSession, error) {
	sess, err := uc.sessions.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Terminal() {
		return nil, domain.ErrSessionTerminal
	}
	if sess.Busy() {
		return nil, domain.ErrSubmissionInFlight
	}
	return sess, nil
}

func (uc *WizardUseCase) stayInvalid(sess *model.WizardSession, verr *ValidationError) {
	sess.LastError = verr.Msg
	sess.UpdatedAt = time.Now()
	uc.log.Debug().Str("session_id", sess.ID).Str("field", verr.Field).Str("step", string(sess.CurrentStep())).Msg("validation rejected")
}

func (uc *WizardUseCase) advance(sess *model.WizardSession) {
	if sess.StepIndex < len(sess.Steps)-1 {
		sess.StepIndex++
	}
	sess.UpdatedAt = time.Now()
}

func (uc *WizardUseCase) saveAndUnlock(ctx context.Context, sess *model.WizardSession, mu *sync.Mutex) (*model.WizardSession, error) {
	err := uc.sessions.Save(ctx, sess)
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// fetchCharges runs the outstanding-charge lookup outside the session lock
// and applies the result only if the triggering identifier is still current
// (last-request-wins). advance moves past the account step on success.
func (uc *WizardUseCase) fetchCharges(ctx context.Context, mu *sync.Mutex, sess *model.WizardSession, advance bool) (*model.WizardSession, error) {
	seq := sess.FetchSeq
	accountID := sess.AccountID
	serviceID := sess.Service.ID
	id := sess.ID
	if err := uc.sessions.Save(ctx, sess); err != nil {
		mu.Unlock()
		return nil, err
	}
	mu.Unlock()

	charges, ferr := uc.charges.Fetch(ctx, serviceID, accountID)

	mu.Lock()
	cur, err := uc.sessions.Find(ctx, id)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if cur.FetchSeq != seq || cur.AccountID != accountID {
		// A newer identifier superseded this lookup; discard it.
		uc.log.Debug().Str("session_id", id).Str("account", logging.Redact(accountID, false)).Msg("stale charge lookup discarded")
		mu.Unlock()
		return cur, nil
	}
	if advance && (cur.ChargesFetched || cur.CurrentStep() != model.StepAccount) {
		// A parallel lookup for the same identifier already applied; the
		// advance past the account step happens at most once.
		mu.Unlock()
		return cur, nil
	}
	if ferr != nil {
		cur.LastError = "could not look up outstanding charges, please try again"
		cur.UpdatedAt = time.Now()
		return uc.saveAndUnlock(ctx, cur, mu)
	}
	cur.Charges = charges
	cur.ChargesFetched = true
	cur.SelectedCharges = nil
	recomputeAmount(cur)
	if advance {
		uc.advance(cur)
	} else {
		cur.UpdatedAt = time.Now()
	}
	return uc.saveAndUnlock(ctx, cur, mu)
}

// submit builds the payment request exactly once and performs the single
// mutating backend call. While the session is in Submitting all navigation
// and resubmission events are rejected, so rapid repeated "next" events
// cannot produce duplicate charges.
func (uc *WizardUseCase) submit(ctx context.Context, mu *sync.Mutex, auth adapter.AuthContext, sess *model.WizardSession) (*model.WizardSession, error) {
	req, err := model.NewPaymentRequest(uuid.NewString(), sess)
	if err != nil {
		uc.stayInvalid(sess, validationf("request", "payment details are incomplete"))
		return uc.saveAndUnlock(ctx, sess, mu)
	}

	sess.Phase = model.PhaseSubmitting
	sess.UpdatedAt = time.Now()
	if err := uc.sessions.Save(ctx, sess); err != nil {
		mu.Unlock()
		return nil, err
	}
	id := sess.ID
	mu.Unlock()

	result, serr := uc.backend.SubmitPayment(ctx, auth, req)
	if serr != nil || result == nil {
		result = model.Failure(model.FailureNetwork, "payment could not be sent, please check your connection and retry")
	}

	mu.Lock()
	defer mu.Unlock()
	// The Submitting phase shields the session from concurrent mutation, so
	// the in-memory state is still authoritative here.
	uc.interpret(sess, result)
	if err := uc.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	if sess.Terminal() {
		uc.writeReceipt(ctx, sess)
	}
	uc.log.Info().
		Str("session_id", id).
		Str("service", sess.Service.Slug).
		Str("phase", string(sess.Phase)).
		Str("phone", logging.Redact(sess.Phone, false)).
		Int64("amount", sess.Amount).
		Msg("submission finished")
	return sess, nil
}

// interpret maps a submission result onto the session state machine. The two
// billing modes have different success contracts: a plan-based (prepaid)
// payment must carry an activation token, a charge-based (postpaid) payment
// is complete without one.
func (uc *WizardUseCase) interpret(sess *model.WizardSession, result *model.PaymentResult) {
	if result.Succeeded && sess.Service.Mode == model.BillingModePlan && result.Token == "" {
		result = model.Failure(model.FailureMalformed, "payment response was missing the activation token")
	}

	sess.UpdatedAt = time.Now()
	if result.Succeeded {
		sess.Phase = model.PhaseSucceeded
		sess.Result = result
		sess.StepIndex = len(sess.Steps) - 1
		sess.PIN = ""
		return
	}

	switch result.Class {
	case model.FailureNetwork, model.FailureRejected:
		// Recoverable: stay on the credentials step with the error attached
		// so earlier steps survive. The PIN is cleared; resubmission
		// requires fresh credential entry.
		sess.Phase = model.PhaseAwaitingInput
		sess.LastError = result.Reason
		sess.PIN = ""
	default:
		sess.Phase = model.PhaseFailed
		sess.Result = result
		sess.PIN = ""
	}
}

func (uc *WizardUseCase) writeReceipt(ctx context.Context, sess *model.WizardSession) {
	if uc.receipts == nil {
		return
	}
	status := "failed"
	token := ""
	reason := ""
	if sess.Result != nil {
		if sess.Result.Succeeded {
			status = "succeeded"
		}
		token = sess.Result.Token
		reason = sess.Result.Reason
	}
	rec := &model.Receipt{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		Subject:     sess.Subject,
		ServiceID:   sess.Service.ID,
		ServiceName: sess.Service.Name,
		Mode:        sess.Service.Mode,
		Amount:      sess.Amount,
		Currency:    uc.currency,
		Channel:     sess.Channel,
		Phone:       maskPhone(sess.Phone),
		Token:       token,
		Status:      status,
		Reason:      reason,
		CreatedAt:   time.Now(),
	}
	if err := uc.receipts.Save(ctx, rec); err != nil {
		uc.log.Error().Err(err).Str("session_id", sess.ID).Msg("receipt write failed")
	}
}

func maskPhone(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func newSessionID() string { return ulid.Make().String() }
