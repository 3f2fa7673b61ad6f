package duoauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/venaticus/duoauth/internal"
	"github.com/venaticus/duoauth/internal/policy"
	"github.com/venaticus/duoauth/notify"
)

// SubmitPassword runs the first authentication factor. On a correct password
// it resets the attempt counter, issues a fresh verification code
// (superseding any live one), and dispatches it on every configured channel;
// delivery failure never fails this step. On a wrong password it records the
// failure, applies the lockout policy, and returns a [*RejectedError]
// carrying the remaining attempts. A missing account is indistinguishable
// from a wrong password.
func (e *Engine) SubmitPassword(ctx context.Context, identifier, candidate string) (*LoginResult, error) {
	if e == nil || e.store == nil || e.vault == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	if identifier == "" || candidate == "" {
		e.metricInc(MetricLoginRejected)
		return nil, ErrInvalidCredentials
	}

	account, err := e.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricLoginRejected)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"reason": "unknown_identifier"}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if account.IsLocked {
		e.metricInc(MetricLoginLockedAttempt)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.UserID, "", ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	now := time.Now()

	ok, err := e.passwordHash.Verify(candidate, account.PasswordHash)
	if err != nil {
		// Unparseable stored hash is an operational fault, not a user error.
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !ok {
		lock := policy.ShouldLock(account.LoginAttempts)
		remaining := policy.AttemptsRemaining(account.LoginAttempts)

		if uerr := e.store.UpdateLoginState(ctx, account.UserID, account.LoginAttempts+1, lock, now); uerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, uerr)
		}

		e.metricInc(MetricLoginRejected)
		if lock {
			e.metricInc(MetricAccountLockout)
			e.emitAudit(ctx, auditEventAccountLockout, false, account.UserID, "", ErrAccountLocked, func() map[string]string {
				return map[string]string{"identifier": account.Identifier}
			})
			e.observeDelivery(e.gateway.SendLocked(ctx, account.Target()))
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, account.UserID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"attempts_remaining": fmt.Sprintf("%d", remaining)}
		})

		return nil, &RejectedError{AttemptsRemaining: remaining, Locked: lock}
	}

	if uerr := e.store.UpdateLoginState(ctx, account.UserID, 0, false, now); uerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, uerr)
	}

	result, err := e.issueAndDispatchCode(ctx, account, false)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.UserID, "", nil, nil)
	return result, nil
}

// issueAndDispatchCode mints a fresh code, installs it in the vault
// (superseding any live code for the account), and fans it out across every
// channel. When no channel delivers, the code is attached to the audit event
// so operators can recover it; the triggering operation still succeeds.
func (e *Engine) issueAndDispatchCode(ctx context.Context, account AccountRecord, resend bool) (*LoginResult, error) {
	code, err := internal.NewCode(e.config.Code.Digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}

	if err := e.vault.Issue(ctx, account.UserID, internal.HashCode(code), time.Now(), e.config.Code.TTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}

	e.metricInc(MetricCodeIssued)
	event := auditEventCodeIssued
	if resend {
		e.metricInc(MetricCodeResent)
		event = auditEventCodeResent
	}

	delivery := e.gateway.SendCode(ctx, account.Target(), code)
	e.observeDelivery(delivery)
	if delivery.AllFailed() {
		e.emitAudit(ctx, auditEventCodeDeliveryFailed, false, account.UserID, "", nil, func() map[string]string {
			return map[string]string{
				"identifier": account.Identifier,
				"code":       code,
				"delivery":   delivery.Summary(),
			}
		})
	}

	e.emitAudit(ctx, event, true, account.UserID, "", nil, func() map[string]string {
		return map[string]string{"delivery": delivery.Summary()}
	})

	return &LoginResult{
		UserID:   account.UserID,
		Delivery: delivery,
	}, nil
}

func (e *Engine) observeDelivery(results notify.Results) {
	for _, r := range results {
		if !r.Delivered() {
			e.metricInc(MetricDeliveryChannelFailure)
		}
	}
	if len(results) > 0 && results.AllFailed() {
		e.metricInc(MetricDeliveryAllFailed)
	}
}
