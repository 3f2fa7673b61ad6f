package duoauth

import (
	"context"
	"fmt"
	"time"

	"github.com/venaticus/duoauth/jwt"
)

// ValidateSession checks a session token and returns its claims. Every
// failure mode, from a garbage string to an expired token to a forged
// signature, collapses into [ErrSessionInvalid].
func (e *Engine) ValidateSession(ctx context.Context, tokenStr string) (*jwt.SessionClaims, error) {
	if e == nil || e.issuer == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims := e.issuer.Validate(tokenStr)
	if e.metrics != nil {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if claims == nil {
		e.metricInc(MetricSessionRejected)
		e.emitAudit(ctx, auditEventSessionRejected, false, "", "", ErrSessionInvalid, nil)
		return nil, ErrSessionInvalid
	}

	e.metricInc(MetricSessionValidated)
	e.emitAudit(ctx, auditEventSessionValidated, true, claims.UserID, claims.SessionID, nil, nil)
	return claims, nil
}

// RefreshSession mints a fresh session from a still-valid token. The old
// token is not revoked and stays usable until its own expiry; refresh only
// extends the window going forward.
func (e *Engine) RefreshSession(ctx context.Context, tokenStr string) (*jwt.Session, error) {
	if e == nil || e.issuer == nil {
		return nil, ErrEngineNotReady
	}

	old := e.issuer.Validate(tokenStr)
	if old == nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventSessionRefreshed, false, "", "", ErrSessionInvalid, nil)
		return nil, ErrSessionInvalid
	}

	session, err := e.issuer.Create(old.UserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventSessionRefreshed, false, old.UserID, old.SessionID, ErrSessionCreationFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionRefreshed, true, old.UserID, session.SessionID, nil, func() map[string]string {
		return map[string]string{"previous_session": old.SessionID}
	})
	return session, nil
}
