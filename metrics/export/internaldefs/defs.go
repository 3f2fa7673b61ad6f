package internaldefs

import (
	duoauth "github.com/venaticus/duoauth"
)

// CounterDef ties one engine counter to its stable exported name.
type CounterDef struct {
	ID   duoauth.MetricID
	Name string
	Help string
}

// HistogramDef ties one engine histogram to its stable exported name.
type HistogramDef struct {
	ID   duoauth.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every exported counter. Both exporters iterate this
// slice so their metric names never drift apart.
var CounterDefs = []CounterDef{
	{ID: duoauth.MetricLoginSuccess, Name: "duoauth_login_success_total", Help: "Password checks that passed and issued a verification code."},
	{ID: duoauth.MetricLoginRejected, Name: "duoauth_login_rejected_total", Help: "Failed password checks and unknown identifiers."},
	{ID: duoauth.MetricLoginLockedAttempt, Name: "duoauth_login_locked_attempt_total", Help: "Attempts against an already-locked account."},
	{ID: duoauth.MetricAccountLockout, Name: "duoauth_account_lockout_total", Help: "Accounts locked by the attempt threshold."},
	{ID: duoauth.MetricCodeIssued, Name: "duoauth_code_issued_total", Help: "Verification codes minted, login and resend alike."},
	{ID: duoauth.MetricCodeResent, Name: "duoauth_code_resent_total", Help: "Verification code resend requests."},
	{ID: duoauth.MetricVerifySuccess, Name: "duoauth_verify_success_total", Help: "Consumed verification codes that minted a session."},
	{ID: duoauth.MetricVerifyFailure, Name: "duoauth_verify_failure_total", Help: "Rejected verification code submissions."},
	{ID: duoauth.MetricSessionCreated, Name: "duoauth_session_created_total", Help: "Minted sessions, first issue and refresh alike."},
	{ID: duoauth.MetricSessionValidated, Name: "duoauth_session_validated_total", Help: "Accepted session validations."},
	{ID: duoauth.MetricSessionRejected, Name: "duoauth_session_rejected_total", Help: "Rejected session validations."},
	{ID: duoauth.MetricRefreshSuccess, Name: "duoauth_refresh_success_total", Help: "Successful session refreshes."},
	{ID: duoauth.MetricRefreshFailure, Name: "duoauth_refresh_failure_total", Help: "Rejected session refreshes."},
	{ID: duoauth.MetricAccountCreationSuccess, Name: "duoauth_account_creation_success_total", Help: "Successful account creations."},
	{ID: duoauth.MetricAccountCreationDuplicate, Name: "duoauth_account_creation_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
	{ID: duoauth.MetricDeliveryChannelFailure, Name: "duoauth_delivery_channel_failure_total", Help: "Individual channel delivery failures."},
	{ID: duoauth.MetricDeliveryAllFailed, Name: "duoauth_delivery_all_failed_total", Help: "Dispatches where no channel delivered."},
}

// HistogramDefs enumerates every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: duoauth.MetricValidateLatency, Name: "duoauth_validate_latency_seconds", Help: "Session validation latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, Prometheus "le"
// label form.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds using characters legal in
// OTel instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
