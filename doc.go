// Package duoauth provides a two-factor authentication engine: password
// verification with attempt tracking and account lockout, one-time
// verification codes delivered out-of-band, and short-lived signed session
// tokens.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// duoauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore] collaborator interface, and value types
// (LoginResult, MetricsSnapshot, AuditEvent). Code vault persistence and the
// lockout policy live under internal/ and are never exported. Session
// signing lives in the jwt sub-package, delivery fan-out in notify, and
// password hashing in password.
//
// # What this package must NOT do
//
//   - Expose Redis clients, vault records, or encoding details in its public API.
//   - Own user persistence — accounts live behind [CredentialStore].
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
package duoauth
