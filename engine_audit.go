package duoauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventAccountLockout     = "account_lockout"
	auditEventCodeIssued         = "code_issued"
	auditEventCodeResent         = "code_resent"
	auditEventCodeDeliveryFailed = "code_delivery_failed"
	auditEventVerifySuccess      = "verify_success"
	auditEventVerifyFailure      = "verify_failure"
	auditEventSessionValidated   = "session_validated"
	auditEventSessionRejected    = "session_rejected"
	auditEventSessionRefreshed   = "session_refreshed"
	auditEventAccountCreated     = "account_created"
	auditEventAccountDuplicate   = "account_creation_duplicate"
	auditEventAccountFailure     = "account_creation_failure"
)

// AuditErrorCode is the normalized error tag stamped into audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrCodeInvalid        AuditErrorCode = "code_invalid_or_expired"
	auditErrSessionInvalid     AuditErrorCode = "session_invalid"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrInvalidUser),
		errors.Is(err, ErrAccountNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrCodeInvalidOrExpired):
		return auditErrCodeInvalid
	case errors.Is(err, ErrSessionInvalid):
		return auditErrSessionInvalid
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrDuplicateIdentifier):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrAccountInvalid):
		return auditErrInvalidRequest
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrVaultUnavailable),
		errors.Is(err, ErrSessionCreationFailed):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
