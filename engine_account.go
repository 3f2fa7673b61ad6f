package duoauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/venaticus/duoauth/notify"
)

// CreateAccount registers a new account. The email is normalized to lower
// case and doubles as the login identifier; the phone number, when present,
// is normalized to E.164-ish form and must validate. A duplicate identifier
// returns [ErrAccountExists]. When welcome messages are enabled the gateway
// fans one out; delivery failure never fails registration.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResult, error) {
	if e == nil || e.store == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.Enabled {
		return nil, ErrAccountCreationDisabled
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		e.emitAudit(ctx, auditEventAccountFailure, false, "", "", ErrAccountInvalid, func() map[string]string {
			return map[string]string{"reason": "invalid_email"}
		})
		return nil, ErrAccountInvalid
	}
	if req.Password == "" {
		e.emitAudit(ctx, auditEventAccountFailure, false, "", "", ErrPasswordPolicy, nil)
		return nil, ErrPasswordPolicy
	}

	phone := ""
	if strings.TrimSpace(req.PhoneNumber) != "" {
		phone = notify.FormatPhoneNumber(req.PhoneNumber)
		if !notify.IsValidPhoneNumber(phone) {
			e.emitAudit(ctx, auditEventAccountFailure, false, "", "", ErrAccountInvalid, func() map[string]string {
				return map[string]string{"reason": "invalid_phone"}
			})
			return nil, ErrAccountInvalid
		}
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		// Argon2 rejects passwords under its minimum length; anything else
		// from Hash is an internal fault, folded in as well to avoid a
		// second error surface on this path.
		e.emitAudit(ctx, auditEventAccountFailure, false, "", "", ErrPasswordPolicy, nil)
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	record := AccountRecord{
		Identifier:       email,
		PasswordHash:     hash,
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            email,
		PhoneNumber:      phone,
		LastLoginAttempt: time.Now(),
	}

	created, err := e.store.CreateAccount(ctx, record)
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountDuplicate, false, "", "", ErrAccountExists, func() map[string]string {
				return map[string]string{"identifier": email}
			})
			return nil, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventAccountFailure, false, "", "", ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result := &CreateAccountResult{
		UserID:     created.UserID,
		Identifier: created.Identifier,
	}

	if e.config.Account.SendWelcome {
		delivery := e.gateway.SendWelcome(ctx, created.Target())
		e.observeDelivery(delivery)
		result.Delivery = delivery
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreated, true, created.UserID, "", nil, func() map[string]string {
		return map[string]string{"identifier": created.Identifier}
	})

	return result, nil
}
