package duoauth

import (
	"context"
	"time"

	"github.com/venaticus/duoauth/jwt"
	"github.com/venaticus/duoauth/notify"
)

// AccountRecord is the engine's view of one account in the credential store.
// The engine mutates only the login-attempt fields, and only through
// [CredentialStore.UpdateLoginState].
type AccountRecord struct {
	UserID       string
	Identifier   string // unique login identifier, conventionally the email
	PasswordHash string

	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string

	LoginAttempts    int
	IsLocked         bool
	LastLoginAttempt time.Time
}

// Target maps the account's contact fields into a delivery target.
func (a AccountRecord) Target() notify.Target {
	return notify.Target{
		Email:       a.Email,
		PhoneNumber: a.PhoneNumber,
		FirstName:   a.FirstName,
	}
}

// CredentialStore is the collaborator interface callers implement to
// integrate duoauth with their user database. Implementations own identifier
// uniqueness and, critically, the atomicity of UpdateLoginState: concurrent
// login attempts against the same account must not interleave
// read-modify-write on the attempt counter. Compare-and-set or per-account
// serialization both satisfy this.
type CredentialStore interface {
	// GetByIdentifier returns the account for a login identifier, or
	// [ErrAccountNotFound].
	GetByIdentifier(ctx context.Context, identifier string) (AccountRecord, error)

	// CreateAccount persists a new account and returns it with its UserID
	// assigned. Returns [ErrDuplicateIdentifier] when the identifier is
	// already in use.
	CreateAccount(ctx context.Context, record AccountRecord) (AccountRecord, error)

	// UpdateLoginState atomically writes the attempt counter, lock flag,
	// and last-attempt timestamp for the account. The lock flag is
	// monotonic: the engine never passes locked=false for a locked account.
	UpdateLoginState(ctx context.Context, userID string, attempts int, locked bool, at time.Time) error
}

// LoginResult is returned by [Engine.SubmitPassword] and [Engine.ResendCode]
// after a verification code has been issued and dispatched.
type LoginResult struct {
	UserID string

	// Delivery holds the per-channel outcome of the code dispatch. Delivery
	// failure never fails the login step; inspect this for diagnostics.
	Delivery notify.Results
}

// VerifyResult is returned by [Engine.SubmitCode] on a successful second
// factor: the caller is fully authenticated and holds a fresh session.
type VerifyResult struct {
	Session *jwt.Session
}

// CreateAccountRequest carries the fields for [Engine.CreateAccount]. The
// email doubles as the login identifier.
type CreateAccountRequest struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Password    string
}

// CreateAccountResult is returned by [Engine.CreateAccount].
type CreateAccountResult struct {
	UserID     string
	Identifier string

	// Delivery holds the per-channel outcome of the welcome dispatch, nil
	// when welcome messages are disabled.
	Delivery notify.Results
}
