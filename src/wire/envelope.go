package wire

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/taskmesh/taskmesh/src/common"
	"github.com/taskmesh/taskmesh/src/crypto/keys"
)

// jsonHandle returns the codec handle used for every wire object. Canonical
// mode sorts map keys, so marshalling the same object twice always yields the
// same bytes. Signatures are computed over these exact bytes, which makes
// canonical encoding a requirement, not a nicety.
func jsonHandle() *codec.JsonHandle {
	h := new(codec.JsonHandle)
	h.Canonical = true
	return h
}

// MarshalPayload serializes a task-family payload into the canonical bytes
// that get embedded in an Envelope and signed.
func MarshalPayload(v interface{}) ([]byte, error) {
	var b []byte
	enc := codec.NewEncoderBytes(&b, jsonHandle())
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalPayload decodes canonical payload bytes into v.
func UnmarshalPayload(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, jsonHandle())
	return dec.Decode(v)
}

// Envelope is the outer wire object published on every topic. The signature
// covers the exact Payload bytes; the other fields are routing and identity
// metadata. Publisher is the hex-encoded public key of the signing peer,
// which verification checks against the key recovered from the signature.
type Envelope struct {
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Signature []byte `json:"signature"`
	Publisher string `json:"publisher"`
	Timestamp int64  `json:"timestamp"`
}

// NewEnvelope builds and signs an envelope around payload for the given
// topic. The payload object is serialized canonically, signed with key, and
// the signer's public key is recorded as the publisher claim.
func NewEnvelope(topic string, payload interface{}, key *ecdsa.PrivateKey) (*Envelope, error) {
	raw, err := MarshalPayload(payload)
	if err != nil {
		return nil, err
	}

	sig, err := keys.Sign(key, raw)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Topic:     topic,
		Payload:   raw,
		Signature: sig,
		Publisher: keys.PublicKeyHex(&key.PublicKey),
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Marshal serializes the envelope for publication.
func (e *Envelope) Marshal() ([]byte, error) {
	var b []byte
	enc := codec.NewEncoderBytes(&b, jsonHandle())
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return b, nil
}

// Unmarshal deserializes an envelope from wire bytes.
func (e *Envelope) Unmarshal(data []byte) error {
	dec := codec.NewDecoderBytes(data, jsonHandle())
	return dec.Decode(e)
}

// Verify recovers the public key from the signature over the payload bytes
// and checks it against the publisher claim. It returns the recovered key so
// callers can use the verified identity without decoding Publisher again.
func (e *Envelope) Verify() (*ecdsa.PublicKey, error) {
	recovered, err := keys.Recover(e.Payload, e.Signature)
	if err != nil {
		return nil, fmt.Errorf("recovering public key: %v", err)
	}

	claimed, err := e.PublisherKey()
	if err != nil {
		return nil, err
	}

	if recovered.X.Cmp(claimed.X) != 0 || recovered.Y.Cmp(claimed.Y) != 0 {
		return nil, fmt.Errorf("signature recovered %s, publisher claims %s",
			keys.PublicKeyHex(recovered), e.Publisher)
	}

	return recovered, nil
}

// PublisherKey decodes the publisher claim into a public key.
func (e *Envelope) PublisherKey() (*ecdsa.PublicKey, error) {
	raw, err := common.DecodeFromString(e.Publisher)
	if err != nil {
		return nil, fmt.Errorf("decoding publisher key: %v", err)
	}
	pub := keys.ToPublicKey(raw)
	if pub == nil {
		return nil, fmt.Errorf("publisher %s is not a point on the curve", e.Publisher)
	}
	return pub, nil
}

// Decode unmarshals the payload into v.
func (e *Envelope) Decode(v interface{}) error {
	return UnmarshalPayload(e.Payload, v)
}
