// Package policy holds the pure lockout decision logic. It is deliberately
// free of I/O and state: callers feed it the prior failed-attempt count read
// from the credential store and persist the outcome themselves.
package policy

// LockoutThreshold is the number of consecutive failed password checks after
// which an account is locked. Locking is monotonic: nothing in this module
// ever clears a lock.
const LockoutThreshold = 3

// ShouldLock reports whether recording one more failure on top of
// priorAttempts must lock the account.
func ShouldLock(priorAttempts int) bool {
	return priorAttempts+1 >= LockoutThreshold
}

// AttemptsRemaining returns how many failures the account can still absorb
// after recording one more on top of priorAttempts. Never negative.
func AttemptsRemaining(priorAttempts int) int {
	remaining := LockoutThreshold - (priorAttempts + 1)
	if remaining < 0 {
		return 0
	}
	return remaining
}
