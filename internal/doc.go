// Package internal contains helper utilities that are intentionally private
// to duoauth, including secure one-time code generation.
//
// # Sub-packages
//
//   - policy — pure lockout decision logic over attempt counts
//   - stores — Redis-backed verification code vault
//
// # What this package must NOT do
//
//   - Export types that appear in the public duoauth API.
//   - Be imported by any package outside the duoauth module.
package internal
