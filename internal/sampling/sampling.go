// Package sampling provides deterministic subject bucketing for partial
// rollouts of rule sets. It uses consistent hashing to assign subjects to
// buckets (0-99) based on the subject key, rule set key, and a secret
// salt. This ensures:
//   - Same subject always gets same result for a rule set (deterministic)
//   - Even distribution across buckets (uses xxHash algorithm)
//   - Safe progressive rollouts (raising sample from 10 to 20 only adds
//     subjects, never removes)
package sampling

import (
	"errors"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidSample is returned when the sample percentage is not in the valid range (0-100).
var ErrInvalidSample = errors.New("sample must be between 0 and 100")

// Bucket returns a deterministic bucket (0-99) for the given subject and
// rule set. The same salt + rulesetKey + subjectKey combination always
// returns the same bucket.
func Bucket(subjectKey, rulesetKey, salt string) int {
	if subjectKey == "" {
		return -1 // Invalid: no subject context
	}
	// Delimited join so adjacent fields cannot collide.
	key := salt + ":" + rulesetKey + ":" + subjectKey
	hash := xxhash.Sum64String(key)
	return int(hash % 100) // Returns 0-99
}

// InSample determines if a subject falls inside a rule set's sample.
//
// Algorithm:
//  1. Hash(salt + rulesetKey + subjectKey) → bucket (0-99)
//  2. If bucket < sample percentage, subject is included
//
// Special cases:
//   - sample=0: always false (nobody sampled in)
//   - sample=100: always true (everybody sampled in)
//   - subjectKey="": always false (no subject context, nothing to hash)
//
// Example: sample=25 keeps ~25% of matching subjects. Raising sample from
// 25 to 50 adds subjects without dropping any already included.
func InSample(subjectKey, rulesetKey string, sample int32, salt string) (bool, error) {
	if sample < 0 || sample > 100 {
		return false, ErrInvalidSample
	}
	if sample == 0 {
		return false, nil // Fast path: sampled out for everyone
	}
	if sample == 100 {
		return true, nil // Fast path: sampled in for everyone
	}
	if subjectKey == "" {
		return false, nil
	}

	bucket := Bucket(subjectKey, rulesetKey, salt)
	return bucket < int(sample), nil
}
