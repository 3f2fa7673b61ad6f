package duoauth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers both a missing account and a wrong
	// password. The two cases are deliberately indistinguishable so the
	// login path cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is terminal until external intervention; nothing in
	// this engine unlocks an account.
	ErrAccountLocked = errors.New("account is locked")
	// ErrAccountExists is returned when the identifier is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountCreationDisabled is returned when registration is turned off.
	ErrAccountCreationDisabled = errors.New("account creation disabled")
	// ErrAccountInvalid is returned for a structurally invalid account
	// creation request.
	ErrAccountInvalid = errors.New("invalid account creation request")
	// ErrPasswordPolicy is returned when a new password fails hashing policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidUser is returned by the code-submission and resend paths
	// when no account matches the identifier.
	ErrInvalidUser = errors.New("invalid user")
	// ErrCodeInvalidOrExpired merges "no such code", "expired", and
	// "already used" into one outcome to avoid oracle leakage.
	ErrCodeInvalidOrExpired = errors.New("invalid or expired verification code")
	// ErrSessionInvalid merges malformed, unsigned, expired, and tampered
	// session tokens into one outcome.
	ErrSessionInvalid = errors.New("invalid or expired session")
	// ErrEngineNotReady indicates the engine is missing a dependency.
	ErrEngineNotReady = errors.New("engine not fully configured")
	// ErrStoreUnavailable wraps credential store failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrVaultUnavailable wraps code vault backend failures.
	ErrVaultUnavailable = errors.New("verification code backend unavailable")
	// ErrSessionCreationFailed indicates the session issuer failed after a
	// successful code verification.
	ErrSessionCreationFailed = errors.New("session creation failed")
)

// Errors returned by CredentialStore implementations; the engine maps them
// to the merged user-visible outcomes above.
var (
	// ErrAccountNotFound is returned by GetByIdentifier for unknown identifiers.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateIdentifier is returned by CreateAccount when the
	// identifier is already in use.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// RejectedError is a failed password check together with how many further
// failures the account can absorb before lockout. Locked reports whether
// this failure tripped the lockout threshold. It unwraps to
// [ErrInvalidCredentials], so errors.Is works for callers that do not care
// about the count.
type RejectedError struct {
	AttemptsRemaining int
	Locked            bool
}

func (e *RejectedError) Error() string {
	if e.Locked {
		return "invalid credentials (account now locked)"
	}
	return fmt.Sprintf("invalid credentials (%d attempts remaining)", e.AttemptsRemaining)
}

func (e *RejectedError) Unwrap() error {
	return ErrInvalidCredentials
}
