package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL is the session lifetime applied when Config.SessionTTL
// is zero: ten minutes from issuance.
const DefaultSessionTTL = 10 * time.Minute

// ErrSessionInvalid is the single verification outcome for any token a
// Manager will not accept. Malformed, unsigned, expired, and tampered tokens
// are indistinguishable through it.
var ErrSessionInvalid = errors.New("invalid or expired session")

// Config holds the immutable signing material and timing rules for a
// Manager. Secret is the HS256 key; it must be non-empty.
type Config struct {
	Secret     []byte
	SessionTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

// Manager signs and verifies session tokens. Safe for concurrent use; build
// one per process and inject it wherever sessions are minted or checked.
type Manager struct {
	config Config
}

// SessionClaims are the verified contents of a session token.
type SessionClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Session is the caller-visible result of minting or refreshing a session.
type Session struct {
	SessionID string
	Token     string
	ExpiresAt time.Time
}

// NewManager validates cfg and returns an immutable Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session signing secret required")
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.SessionTTL < 0 {
		return nil, errors.New("invalid session TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Create mints a brand-new session for the user: fresh session ID, fresh
// expiry, signed with the process-wide secret.
func (m *Manager) Create(userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("empty user id")
	}

	now := time.Now()
	expiresAt := now.Add(m.config.SessionTTL)
	sessionID := uuid.NewString()

	claims := SessionClaims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.config.Issuer != "" {
		claims.Issuer = m.config.Issuer
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return nil, err
	}

	return &Session{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate verifies signature and expiry and returns the claims, or nil for
// any token the Manager will not accept. It never returns an error value:
// the caller cannot tell why a token was rejected.
func (m *Manager) Validate(tokenStr string) *SessionClaims {
	if tokenStr == "" {
		return nil
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil
	}

	return claims
}

// Refresh exchanges a still-valid token for a brand-new session derived from
// its claims. The old token is not revoked; with a stateless signing scheme
// it stays independently valid until its own expiry.
func (m *Manager) Refresh(tokenStr string) (*Session, error) {
	claims := m.Validate(tokenStr)
	if claims == nil {
		return nil, ErrSessionInvalid
	}
	return m.Create(claims.UserID)
}
