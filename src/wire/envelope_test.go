package wire

import (
	"bytes"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/src/crypto/keys"
)

func TestEnvelopeSignVerify(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	req := &ProbeRequest{
		ProbeID:  "probe-1",
		Deadline: time.Now().Add(time.Minute).UnixMilli(),
	}

	env, err := NewEnvelope(TopicProbeRequest, req, key)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if env.Publisher != keys.PublicKeyHex(&key.PublicKey) {
		t.Fatalf("publisher claim should be the signer's public key")
	}

	pub, err := env.Verify()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if pub.X.Cmp(key.PublicKey.X) != 0 || pub.Y.Cmp(key.PublicKey.Y) != 0 {
		t.Fatalf("recovered key should match the signer's public key")
	}

	var decoded ProbeRequest
	if err := env.Decode(&decoded); err != nil {
		t.Fatalf("err: %v", err)
	}

	if decoded.ProbeID != req.ProbeID || decoded.Deadline != req.Deadline {
		t.Fatalf("decoded payload %+v, expected %+v", decoded, *req)
	}
}

func TestEnvelopeMarshalRoundTrip(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	env, err := NewEnvelope(TopicTaskRequest, &TaskRequest{TaskID: "t1"}, key)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	raw, err := env.Marshal()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	var env2 Envelope
	if err := env2.Unmarshal(raw); err != nil {
		t.Fatalf("err: %v", err)
	}

	if env2.Topic != env.Topic ||
		env2.Publisher != env.Publisher ||
		env2.Timestamp != env.Timestamp ||
		!bytes.Equal(env2.Payload, env.Payload) ||
		!bytes.Equal(env2.Signature, env.Signature) {
		t.Fatalf("envelopes differ after round trip")
	}

	// the wire form must still verify
	if _, err := env2.Verify(); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestEnvelopeCanonicalEncoding(t *testing.T) {
	req := &TaskRequest{
		TaskID:   "t1",
		Deadline: 123456789,
		Input:    []byte(`{"prompt":"hi"}`),
	}

	a, err := MarshalPayload(req)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	b, err := MarshalPayload(req)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !bytes.Equal(a, b) {
		t.Fatalf("canonical encoding should be stable")
	}
}

func TestEnvelopeTamperedPayload(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	env, err := NewEnvelope(TopicProbeRequest, &ProbeRequest{ProbeID: "p1"}, key)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	env.Payload[0] ^= 0xff

	if _, err := env.Verify(); err == nil {
		t.Fatalf("verification should fail on a tampered payload")
	}
}

func TestEnvelopeForgedPublisher(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	otherKey, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	env, err := NewEnvelope(TopicProbeRequest, &ProbeRequest{ProbeID: "p1"}, key)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	env.Publisher = keys.PublicKeyHex(&otherKey.PublicKey)

	if _, err := env.Verify(); err == nil {
		t.Fatalf("verification should fail when the publisher claim is forged")
	}
}

func TestResponseTopic(t *testing.T) {
	pairs := map[string]string{
		TopicTaskRequest:      TopicTaskResponse,
		TopicProbeRequest:     TopicProbeResponse,
		TopicHeartbeatRequest: TopicHeartbeatAck,
		TopicTaskResponse:     "",
	}

	for req, want := range pairs {
		if got := ResponseTopic(req); got != want {
			t.Fatalf("ResponseTopic(%s) = %q, expected %q", req, got, want)
		}
	}
}

func TestHeartbeatHealthy(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute).UnixMilli()
	past := now.Add(-time.Minute).UnixMilli()

	testCases := []struct {
		hb      HeartbeatRequest
		healthy bool
	}{
		{HeartbeatRequest{Deadline: future, PendingBatch: 9, BatchSize: 10}, true},
		{HeartbeatRequest{Deadline: future, PendingBatch: 10, BatchSize: 10}, true},
		{HeartbeatRequest{Deadline: future, PendingBatch: 11, BatchSize: 10}, false},
		{HeartbeatRequest{Deadline: past, PendingBatch: 0, BatchSize: 10}, false},
	}

	for i, tc := range testCases {
		healthy, reason := tc.hb.Healthy(now)
		if healthy != tc.healthy {
			t.Fatalf("case %d: healthy = %v (%s), expected %v", i, healthy, reason, tc.healthy)
		}
		if !healthy && reason == "" {
			t.Fatalf("case %d: unhealthy heartbeat should carry a reason", i)
		}
	}
}
