package duoauth

import (
	"github.com/venaticus/duoauth/internal/stores"
	"github.com/venaticus/duoauth/jwt"
	"github.com/venaticus/duoauth/notify"
	"github.com/venaticus/duoauth/password"
)

// Engine drives the two-factor authentication state machine: password check,
// lockout bookkeeping, code issuance and consumption, session minting.
//
// Engine instances are configured through [Builder.Build] and immutable
// afterwards; all methods are safe for concurrent use.
type Engine struct {
	config       Config
	store        CredentialStore
	vault        *stores.CodeVault
	issuer       *jwt.Manager
	gateway      *notify.Gateway
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
}

// Close flushes and stops the audit dispatcher. Safe on a nil Engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
