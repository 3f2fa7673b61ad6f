// Package jwt is the session issuer: it mints, verifies, and refreshes the
// short-lived signed session tokens that assert a completed two-factor login.
//
// The Manager is built once with an immutable signing secret and timeout
// configuration; nothing is re-derived per request. Verification failures are
// deliberately indistinguishable to callers — a malformed, expired, or
// tampered token all read the same.
package jwt
