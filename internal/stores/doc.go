// Package stores provides the Redis-backed vault for one-time verification
// codes.
//
// # Design
//
// The vault persists one versioned, binary-encoded record per account under
// an "active" key with a TTL equal to the code validity window. Issuing a
// new code and consuming an existing one are both single Lua scripts, so the
// two hard invariants hold under concurrent requests from any number of
// processes: at most one consumable code per account at any instant, and a
// valid code consumed by two racing submissions succeeds exactly once.
// Consumed and superseded records are moved to a retention key rather than
// discarded; their eventual removal is Redis expiry, a storage-retention
// concern and not a correctness one.
//
// # What this package must NOT do
//
//   - Import duoauth or any sibling internal package.
//   - Store or log plaintext codes (only SHA-256 digests reach Redis).
//   - Use non-constant-time comparisons for digest matching.
package stores
