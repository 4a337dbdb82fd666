package admission

import (
	"fmt"
	"testing"

	"github.com/taskmesh/taskmesh/src/crypto/keys"
)

func TestFilterMembership(t *testing.T) {
	filter, err := NewFilter(100, 0.01)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	var members [][]byte
	for i := 0; i < 10; i++ {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		pub := keys.FromPublicKey(&key.PublicKey)
		filter.Add(pub)
		members = append(members, pub)
	}

	// no false negatives, ever
	for i, m := range members {
		if !filter.Test(m) {
			t.Fatalf("member %d should test positive", i)
		}
	}
}

func TestFilterDeterminism(t *testing.T) {
	filter, err := NewFilter(100, 0.01)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	pub := keys.FromPublicKey(&key.PublicKey)
	filter.Add(pub)

	for i := 0; i < 100; i++ {
		if !filter.Test(pub) {
			t.Fatalf("membership test should be deterministic")
		}
	}
}

func TestFilterFalsePositiveRate(t *testing.T) {
	filter, err := NewFilter(1000, 0.01)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	for i := 0; i < 1000; i++ {
		filter.Add([]byte(fmt.Sprintf("member-%d", i)))
	}

	falsePositives := 0
	trials := 2000
	for i := 0; i < trials; i++ {
		if filter.Test([]byte(fmt.Sprintf("outsider-%d", i))) {
			falsePositives++
		}
	}

	// configured at 1%, allow generous statistical slack
	rate := float64(falsePositives) / float64(trials)
	if rate > 0.03 {
		t.Fatalf("false-positive rate %f exceeds tolerance", rate)
	}
}

func TestFilterMarshalRoundTrip(t *testing.T) {
	filter, err := NewFilter(100, 0.01)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	pub := keys.FromPublicKey(&key.PublicKey)
	filter.Add(pub)

	raw, err := filter.Marshal()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	restored, err := UnmarshalFilter(raw)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !restored.Test(pub) {
		t.Fatalf("member should still test positive after a round trip")
	}

	otherKey, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if restored.Test(keys.FromPublicKey(&otherKey.PublicKey)) {
		t.Fatalf("fresh identity should not test positive in a near-empty filter")
	}
}

func TestFilterBadParameters(t *testing.T) {
	if _, err := NewFilter(0, 0.01); err == nil {
		t.Fatalf("zero capacity should be rejected")
	}
	if _, err := NewFilter(100, 0); err == nil {
		t.Fatalf("zero false-positive rate should be rejected")
	}
	if _, err := NewFilter(100, 1.5); err == nil {
		t.Fatalf("false-positive rate above 1 should be rejected")
	}
	if _, err := UnmarshalFilter(nil); err == nil {
		t.Fatalf("empty filter bytes should be rejected")
	}
}
