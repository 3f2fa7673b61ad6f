package duoauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/venaticus/duoauth/internal"
	"github.com/venaticus/duoauth/internal/stores"
)

// SubmitCode runs the second authentication factor. It atomically consumes
// the account's live verification code and mints a session on a match. A
// missing, expired, already-used, or wrong code all collapse into
// [ErrCodeInvalidOrExpired]; the stored code survives a wrong guess and can
// still be consumed until its TTL runs out.
func (e *Engine) SubmitCode(ctx context.Context, identifier, code string) (*VerifyResult, error) {
	if e == nil || e.store == nil || e.vault == nil || e.issuer == nil {
		return nil, ErrEngineNotReady
	}
	if identifier == "" || code == "" {
		e.metricInc(MetricVerifyFailure)
		return nil, ErrCodeInvalidOrExpired
	}

	account, err := e.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricVerifyFailure)
			e.emitAudit(ctx, auditEventVerifyFailure, false, "", "", ErrInvalidUser, func() map[string]string {
				return map[string]string{"reason": "unknown_identifier"}
			})
			return nil, ErrInvalidUser
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := e.vault.Consume(ctx, account.UserID, internal.HashCode(code)); err != nil {
		switch {
		case errors.Is(err, stores.ErrCodeNotFound),
			errors.Is(err, stores.ErrCodeExpired),
			errors.Is(err, stores.ErrCodeMismatch):
			e.metricInc(MetricVerifyFailure)
			e.emitAudit(ctx, auditEventVerifyFailure, false, account.UserID, "", ErrCodeInvalidOrExpired, nil)
			return nil, ErrCodeInvalidOrExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
		}
	}

	session, err := e.issuer.Create(account.UserID)
	if err != nil {
		// The code is already spent at this point; the caller has to restart
		// the flow with a fresh one.
		e.emitAudit(ctx, auditEventVerifyFailure, false, account.UserID, "", ErrSessionCreationFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricVerifySuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventVerifySuccess, true, account.UserID, session.SessionID, nil, nil)

	return &VerifyResult{Session: session}, nil
}

// ResendCode supersedes the account's live verification code with a fresh
// one and dispatches it. The old code stops being consumable the instant the
// new one is installed. Attempt counters are untouched; a locked account
// cannot request a resend.
func (e *Engine) ResendCode(ctx context.Context, identifier string) (*LoginResult, error) {
	if e == nil || e.store == nil || e.vault == nil {
		return nil, ErrEngineNotReady
	}
	if identifier == "" {
		return nil, ErrInvalidUser
	}

	account, err := e.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventCodeResent, false, "", "", ErrInvalidUser, func() map[string]string {
				return map[string]string{"reason": "unknown_identifier"}
			})
			return nil, ErrInvalidUser
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if account.IsLocked {
		e.metricInc(MetricLoginLockedAttempt)
		e.emitAudit(ctx, auditEventCodeResent, false, account.UserID, "", ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	return e.issueAndDispatchCode(ctx, account, true)
}
