// Package notify is the outbound notification boundary: a channel-agnostic
// Sender interface and a Gateway that fans a message out to every configured
// channel concurrently.
//
// Delivery is best-effort by contract. The Gateway waits for all channels,
// never short-circuits on the first failure, and reports one tagged Result
// per channel instead of a single boolean. Failures are values; nothing in
// this package panics past its boundary or fails the authentication step
// that triggered the send.
//
// Transports themselves (SMS providers, SMTP) live outside this module —
// callers plug them in as Sender implementations.
package notify
