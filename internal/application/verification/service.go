package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kset/verifikator/internal/domain"
	"github.com/kset/verifikator/internal/pkg/token"
)

// attemptTTL bounds how long a record may linger in the store after
// creation. It only covers hygiene (DynamoDB TTL, memstore purge); the
// logical verification window is Window.
const attemptTTL = 24 * time.Hour

// AttemptRepository is the keyed store of verification attempts.
type AttemptRepository interface {
	// Upsert inserts a pending attempt, overwriting any prior record for
	// the same state (re-issuance resets to pending).
	Upsert(ctx context.Context, a *domain.VerificationAttempt) error
	Get(ctx context.Context, state string) (*domain.VerificationAttempt, error)
	// Transition moves a pending attempt to a terminal status. Under
	// concurrent callers racing on the same state exactly one wins; the
	// others get domain.ErrAlreadyResolved.
	Transition(ctx context.Context, state string, to domain.AttemptStatus, resolvedEmail string) (*domain.VerificationAttempt, error)
}

// Roster is the point-lookup view of the roster cache.
type Roster interface {
	Lookup(email string) (*domain.MemberRecord, error)
}

// Exchanger wraps the identity provider's authorization-code exchange.
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (email string, err error)
}

// Mailer sends the post-verification notification email. Fire-and-forget.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// Publisher emits terminal-transition events for downstream consumers.
// Fire-and-forget.
type Publisher interface {
	PublishResolved(ctx context.Context, a *domain.VerificationAttempt) error
}

// ReceiptSigner signs verification receipts returned on successful polls.
type ReceiptSigner interface {
	Sign(state, email, origin string) (string, error)
}

// ServiceDeps holds the state machine's collaborators. Mailer, Publisher and
// Receipts are optional.
type ServiceDeps struct {
	Attempts  AttemptRepository
	Roster    Roster
	Exchanger Exchanger
	Mailer    Mailer
	Publisher Publisher
	Receipts  ReceiptSigner
	Window    time.Duration
	Now       func() time.Time
}

type StartRequest struct {
	Email  *string `json:"email" validate:"omitempty,email"`
	State  *string `json:"state"`
	Origin string  `json:"origin"`
}

type StartResult struct {
	State    string
	OAuthURL string
}

type StatusResult struct {
	Status  domain.AttemptStatus
	Email   string
	Member  *domain.MemberRecord
	Receipt string
}

// ResolveOutcome classifies the terminal result of a callback.
type ResolveOutcome string

const (
	ResolveSuccess      ResolveOutcome = "success"
	ResolveFail         ResolveOutcome = "fail"
	ResolveExpired      ResolveOutcome = "expired"
	ResolveAlreadyUsed  ResolveOutcome = "already_used"
	ResolveUnknownState ResolveOutcome = "unknown_state"
)

type ResolveResult struct {
	Outcome ResolveOutcome
	Email   string
	Member  *domain.MemberRecord
}

// Service is the verification state machine: pending → success|fail|expired,
// terminal transitions one-way and exactly-once.
type Service interface {
	Start(ctx context.Context, req StartRequest) (*StartResult, error)
	Status(ctx context.Context, state string) (*StatusResult, error)
	Resolve(ctx context.Context, state, code string) (*ResolveResult, error)
}

type service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) Service {
	if deps.Window <= 0 {
		deps.Window = 5 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{deps: deps}
}

// Start creates (or resets) a pending attempt and returns the provider
// authorization URL. In email mode the address must be on the roster; in
// state mode the caller supplies its own identifier and origin tag.
func (s *service) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	var state, origin string

	switch {
	case req.Email != nil:
		if _, err := s.deps.Roster.Lookup(*req.Email); err != nil {
			return nil, err
		}
		minted, err := token.NewState()
		if err != nil {
			return nil, err
		}
		state = minted
		origin = req.Origin
		if origin == "" {
			origin = "web"
		}
	case req.State != nil:
		if *req.State == "" {
			return nil, fmt.Errorf("state must not be empty: %w", domain.ErrBadRequest)
		}
		if req.Origin == "" {
			return nil, fmt.Errorf("origin is required with a client-chosen state: %w", domain.ErrBadRequest)
		}
		state = *req.State
		origin = req.Origin
	default:
		return nil, fmt.Errorf("either email or state is required: %w", domain.ErrBadRequest)
	}

	now := s.deps.Now().UTC()
	attempt := &domain.VerificationAttempt{
		State:     state,
		Origin:    origin,
		Status:    domain.AttemptPending,
		CreatedAt: now,
		ExpiresAt: now.Add(attemptTTL).Unix(),
	}
	if err := s.deps.Attempts.Upsert(ctx, attempt); err != nil {
		return nil, err
	}

	slog.Info("verification attempt started", "origin", origin)
	return &StartResult{State: state, OAuthURL: s.deps.Exchanger.AuthCodeURL(state)}, nil
}

// Status reports the attempt's current state. A pending attempt past the
// window is lazily transitioned to expired here. Failed and expired attempts
// are both reported as a generic failure so pollers cannot distinguish a
// roster miss from a provider error.
func (s *service) Status(ctx context.Context, state string) (*StatusResult, error) {
	a, err := s.deps.Attempts.Get(ctx, state)
	if err != nil {
		return nil, err
	}

	if a.Status == domain.AttemptPending && s.pastWindow(a) {
		ta, terr := s.deps.Attempts.Transition(ctx, state, domain.AttemptExpired, "")
		switch {
		case terr == nil:
			a = ta
			s.notifyResolved(ctx, a)
		case errors.Is(terr, domain.ErrAlreadyResolved):
			// Lost the race against a concurrent callback; re-read.
			if a, err = s.deps.Attempts.Get(ctx, state); err != nil {
				return nil, err
			}
		default:
			return nil, terr
		}
	}

	res := &StatusResult{Status: a.Status}
	switch a.Status {
	case domain.AttemptSuccess:
		res.Email = a.ResolvedEmail
		if member, lerr := s.deps.Roster.Lookup(a.ResolvedEmail); lerr == nil {
			res.Member = member
		}
		if s.deps.Receipts != nil {
			receipt, serr := s.deps.Receipts.Sign(a.State, a.ResolvedEmail, a.Origin)
			if serr != nil {
				slog.Warn("could not sign verification receipt", "err", serr)
			} else {
				res.Receipt = receipt
			}
		}
	case domain.AttemptFail, domain.AttemptExpired:
		res.Status = domain.AttemptFail
	}
	return res, nil
}

// Resolve is the callback path. Every exit leaves the record terminal, or
// untouched when it already was.
func (s *service) Resolve(ctx context.Context, state, code string) (*ResolveResult, error) {
	a, err := s.deps.Attempts.Get(ctx, state)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &ResolveResult{Outcome: ResolveUnknownState}, nil
		}
		return nil, err
	}
	if a.Status.Terminal() {
		return &ResolveResult{Outcome: ResolveAlreadyUsed}, nil
	}

	if s.pastWindow(a) {
		outcome, err := s.terminate(ctx, state, domain.AttemptExpired, "")
		if err != nil {
			return nil, err
		}
		return &ResolveResult{Outcome: outcome}, nil
	}

	email, err := s.deps.Exchanger.Exchange(ctx, code)
	if err != nil {
		slog.Warn("code exchange failed", "origin", a.Origin, "err", err)
		outcome, ferr := s.terminate(ctx, state, domain.AttemptFail, "")
		if ferr != nil {
			return nil, ferr
		}
		return &ResolveResult{Outcome: outcome}, nil
	}

	email = domain.NormalizeEmail(email)
	member, err := s.deps.Roster.Lookup(email)
	if err != nil {
		slog.Warn("confirmed email not verifiable against roster", "err", err)
		outcome, ferr := s.terminate(ctx, state, domain.AttemptFail, "")
		if ferr != nil {
			return nil, ferr
		}
		return &ResolveResult{Outcome: outcome}, nil
	}

	ta, err := s.deps.Attempts.Transition(ctx, state, domain.AttemptSuccess, email)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) || errors.Is(err, domain.ErrNotFound) {
			return &ResolveResult{Outcome: ResolveAlreadyUsed}, nil
		}
		return nil, err
	}
	s.notifyResolved(ctx, ta)
	s.sendConfirmationMail(email)

	slog.Info("verification attempt resolved", "origin", ta.Origin, "status", ta.Status)
	return &ResolveResult{Outcome: ResolveSuccess, Email: email, Member: member}, nil
}

// terminate applies a terminal transition and maps a lost race to the
// already-used outcome.
func (s *service) terminate(ctx context.Context, state string, to domain.AttemptStatus, email string) (ResolveOutcome, error) {
	ta, err := s.deps.Attempts.Transition(ctx, state, to, email)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) || errors.Is(err, domain.ErrNotFound) {
			return ResolveAlreadyUsed, nil
		}
		return "", err
	}
	s.notifyResolved(ctx, ta)
	switch to {
	case domain.AttemptExpired:
		return ResolveExpired, nil
	default:
		return ResolveFail, nil
	}
}

func (s *service) pastWindow(a *domain.VerificationAttempt) bool {
	return s.deps.Now().Sub(a.CreatedAt) > s.deps.Window
}

func (s *service) notifyResolved(ctx context.Context, a *domain.VerificationAttempt) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.PublishResolved(ctx, a); err != nil {
		slog.Warn("could not publish attempt event", "status", a.Status, "err", err)
	}
}

func (s *service) sendConfirmationMail(to string) {
	if s.deps.Mailer == nil {
		return
	}
	body := "Hello,\n\nyour email address has been verified.\n\nKSET Bot"
	if err := s.deps.Mailer.SendEmail(to, "Verification successful", body); err != nil {
		slog.Warn("could not send confirmation email", "err", err)
	}
}
