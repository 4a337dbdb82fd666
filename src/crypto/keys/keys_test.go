package keys

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSimpleKeyfile(t *testing.T) {
	dir, err := os.MkdirTemp("", "taskmesh")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	filePath := filepath.Join(dir, "priv_key")

	simpleKeyfile := NewSimpleKeyfile(filePath)

	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(*key, *nKey) {
		t.Fatalf("Keys should be equal")
	}
}

func TestReadKeyFilePermissions(t *testing.T) {
	dir, err := os.MkdirTemp("", "taskmesh")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	filePath := filepath.Join(dir, "priv_key")

	simpleKeyfile := NewSimpleKeyfile(filePath)

	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	// loosen permissions and check that reading fails
	if err := os.Chmod(filePath, 0644); err != nil {
		t.Fatalf("err: %v", err)
	}

	if _, err := simpleKeyfile.ReadKey(); err == nil {
		t.Fatalf("reading a keyfile with 0644 permissions should fail")
	}
}

func TestParsePrivateKey(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	dump := DumpPrivateKey(key)

	nKey, err := ParsePrivateKey(dump)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(*key, *nKey) {
		t.Fatalf("Keys should be equal")
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	raw := FromPublicKey(&key.PublicKey)

	pub := ToPublicKey(raw)
	if pub == nil {
		t.Fatalf("ToPublicKey returned nil")
	}

	if pub.X.Cmp(key.PublicKey.X) != 0 || pub.Y.Cmp(key.PublicKey.Y) != 0 {
		t.Fatalf("public keys should be equal")
	}
}

func TestSignRecover(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	msg := []byte("time for a beverage")

	sig, err := Sign(key, msg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	recovered, err := Recover(msg, sig)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if recovered.X.Cmp(key.PublicKey.X) != 0 || recovered.Y.Cmp(key.PublicKey.Y) != 0 {
		t.Fatalf("recovered key should match the signer's public key")
	}

	if !Verify(&key.PublicKey, msg, sig) {
		t.Fatalf("signature should verify against the signer's public key")
	}
}

func TestVerifyTamperedMessage(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	msg := []byte("original message")

	sig, err := Sign(key, msg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if Verify(&key.PublicKey, []byte("tampered message"), sig) {
		t.Fatalf("signature should not verify a tampered message")
	}

	otherKey, err := GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if Verify(&otherKey.PublicKey, msg, sig) {
		t.Fatalf("signature should not verify against another public key")
	}
}
