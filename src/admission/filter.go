// Package admission implements the probabilistic responder-set filter carried
// by task requests. A requester inserts the public keys of the peers it wants
// answers from; each receiving peer tests its own key and skips execution
// when it is not a member. Bloom filters never produce false negatives, so an
// intended responder is never turned away; false positives only cause extra
// work, never wrong routing.
package admission

import (
	"bytes"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
)

// Filter wraps a Bloom filter keyed by raw public key bytes.
type Filter struct {
	b *bloom.BloomFilter
}

// NewFilter creates a filter sized for the expected number of member
// identities at the given false-positive rate.
func NewFilter(capacity uint, fpRate float64) (*Filter, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("filter capacity must be positive")
	}
	if fpRate <= 0 || fpRate >= 1 {
		return nil, fmt.Errorf("false-positive rate must be in (0,1), got %f", fpRate)
	}
	return &Filter{b: bloom.NewWithEstimates(capacity, fpRate)}, nil
}

// Add inserts an identity, given as raw public key bytes.
func (f *Filter) Add(pubKeyBytes []byte) {
	f.b.Add(pubKeyBytes)
}

// Test reports whether an identity is possibly a member. A false return is
// definitive: the identity was never added.
func (f *Filter) Test(pubKeyBytes []byte) bool {
	return f.b.Test(pubKeyBytes)
}

// Marshal serializes the filter into the bytes embedded in a TaskRequest.
func (f *Filter) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalFilter reconstructs a filter from request bytes.
func UnmarshalFilter(data []byte) (*Filter, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty filter bytes")
	}
	b := &bloom.BloomFilter{}
	if _, err := b.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return &Filter{b: b}, nil
}
