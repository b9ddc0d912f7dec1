package sampling

import (
	"errors"
	"strconv"
	"testing"
)

func TestBucket_Deterministic(t *testing.T) {
	subjectKey := "user-123"
	rulesetKey := "beta-access"
	salt := "test-salt"

	bucket1 := Bucket(subjectKey, rulesetKey, salt)
	bucket2 := Bucket(subjectKey, rulesetKey, salt)

	if bucket1 != bucket2 {
		t.Errorf("Bucket is not deterministic: got %d and %d", bucket1, bucket2)
	}
	if bucket1 < 0 || bucket1 >= 100 {
		t.Errorf("Bucket out of range: %d", bucket1)
	}
}

func TestBucket_Distribution(t *testing.T) {
	rulesetKey := "beta-access"
	salt := "test-salt"
	bucketCounts := make([]int, 100)

	for i := 0; i < 10000; i++ {
		bucket := Bucket("user-"+strconv.Itoa(i), rulesetKey, salt)
		if bucket >= 0 && bucket < 100 {
			bucketCounts[bucket]++
		}
	}

	// Each bucket should hold roughly 100 of 10000 subjects.
	// Allow 50% variance (50-150 per bucket).
	for i, count := range bucketCounts {
		if count < 50 || count > 150 {
			t.Errorf("Bucket %d has %d subjects, expected ~100", i, count)
		}
	}
}

func TestBucket_EmptySubjectKey(t *testing.T) {
	if bucket := Bucket("", "beta-access", "salt"); bucket != -1 {
		t.Errorf("Expected -1 for empty subject key, got %d", bucket)
	}
}

func TestBucket_SaltAndKeyIndependence(t *testing.T) {
	// Same subject across rule sets and salts must land in independent
	// buckets; we can't assert inequality, only validity.
	cases := []struct{ rulesetKey, salt string }{
		{"rule-a", "salt1"},
		{"rule-b", "salt1"},
		{"rule-a", "salt2"},
	}
	for _, c := range cases {
		bucket := Bucket("user-123", c.rulesetKey, c.salt)
		if bucket < 0 || bucket >= 100 {
			t.Errorf("Bucket(%s, %s) out of range: %d", c.rulesetKey, c.salt, bucket)
		}
	}
}

func TestInSample_FastPaths(t *testing.T) {
	if in, err := InSample("user-1", "rule", 0, "salt"); err != nil || in {
		t.Errorf("sample=0: expected false, got in=%v err=%v", in, err)
	}
	if in, err := InSample("user-1", "rule", 100, "salt"); err != nil || !in {
		t.Errorf("sample=100: expected true, got in=%v err=%v", in, err)
	}
	// Empty subject can't be hashed, so partial samples exclude it.
	if in, err := InSample("", "rule", 50, "salt"); err != nil || in {
		t.Errorf("empty subject: expected false, got in=%v err=%v", in, err)
	}
	// But sample=100 short-circuits before subject inspection.
	if in, err := InSample("", "rule", 100, "salt"); err != nil || !in {
		t.Errorf("empty subject at 100: expected true, got in=%v err=%v", in, err)
	}
}

func TestInSample_InvalidRange(t *testing.T) {
	if _, err := InSample("user-1", "rule", -1, "salt"); !errors.Is(err, ErrInvalidSample) {
		t.Errorf("Expected ErrInvalidSample for -1, got %v", err)
	}
	if _, err := InSample("user-1", "rule", 101, "salt"); !errors.Is(err, ErrInvalidSample) {
		t.Errorf("Expected ErrInvalidSample for 101, got %v", err)
	}
}

func TestInSample_Monotonic(t *testing.T) {
	// A subject inside sample=N must stay inside for every M > N.
	salt := "monotonic-salt"
	for i := 0; i < 200; i++ {
		subject := "user-" + strconv.Itoa(i)
		wasIn := false
		for sample := int32(0); sample <= 100; sample += 5 {
			in, err := InSample(subject, "rule", sample, salt)
			if err != nil {
				t.Fatalf("InSample failed: %v", err)
			}
			if wasIn && !in {
				t.Fatalf("Subject %s dropped out when sample grew to %d", subject, sample)
			}
			if in {
				wasIn = true
			}
		}
		if !wasIn {
			t.Errorf("Subject %s never sampled in even at 100", subject)
		}
	}
}

func TestInSample_ApproximatesPercentage(t *testing.T) {
	salt := "pct-salt"
	included := 0
	total := 10000
	for i := 0; i < total; i++ {
		in, err := InSample("user-"+strconv.Itoa(i), "rule", 30, salt)
		if err != nil {
			t.Fatalf("InSample failed: %v", err)
		}
		if in {
			included++
		}
	}
	// ~30% with generous tolerance.
	if included < 2500 || included > 3500 {
		t.Errorf("Expected ~3000 of %d included at sample=30, got %d", total, included)
	}
}
