package unlock

import "crypto/subtle"

// Result is the outcome of a password attempt.
type Result int

const (
	Mismatch Result = iota
	Unlocked
)

func (r Result) String() string {
	if r == Unlocked {
		return "unlocked"
	}
	return "mismatch"
}

// Attempt compares submitted against expected exactly: case-sensitive and
// untrimmed. There is no attempt limit.
//
// This is a soft content gate. The expected secret comes from the CMS payload
// that is also served to clients, so it keeps casual visitors out and nothing more.
func Attempt(submitted, expected string) Result {
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(expected)) == 1 {
		return Unlocked
	}
	return Mismatch
}
