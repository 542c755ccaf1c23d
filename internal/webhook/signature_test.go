package webhook

import (
	"strings"
	"testing"
)

func TestComputeHMACFormat(t *testing.T) {
	sig := ComputeHMAC([]byte(`{"event":"rule.created"}`), "secret")
	if !strings.HasPrefix(sig, "sha256=") {
		t.Errorf("signature %q missing sha256= prefix", sig)
	}
	// sha256= plus 64 hex chars
	if len(sig) != len("sha256=")+64 {
		t.Errorf("signature length = %d", len(sig))
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"rule.updated","resource":{"type":"rule","id":"r-1"}}`)
	sig := ComputeHMAC(payload, "secret")

	if !VerifySignature(payload, sig, "secret") {
		t.Error("valid signature rejected")
	}
	if VerifySignature(payload, sig, "other-secret") {
		t.Error("signature verified with wrong secret")
	}
	if VerifySignature([]byte("tampered"), sig, "secret") {
		t.Error("signature verified for tampered payload")
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if !strings.HasPrefix(a, "whsec_") {
		t.Errorf("secret %q missing whsec_ prefix", a)
	}

	b, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if a == b {
		t.Error("two generated secrets are identical")
	}
}
