package httpapi

import (
	"crypto/x509"
	"testing"
	"time"
)

func TestSelfSignedTLSReturnsValidCert(t *testing.T) {
	validity := 2 * time.Hour
	tlsCfg, fingerprint, err := SelfSignedTLS(validity, "chat.example.com")
	if err != nil {
		t.Fatalf("SelfSignedTLS: %v", err)
	}
	if len(fingerprint) != 64 {
		t.Errorf("fingerprint length: got %d, want 64", len(fingerprint))
	}
	if len(tlsCfg.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(tlsCfg.Certificates))
	}

	leaf := tlsCfg.Certificates[0].Leaf
	if leaf == nil {
		t.Fatal("expected parsed leaf certificate")
	}
	if leaf.Subject.CommonName != "chat.example.com" {
		t.Errorf("CN: got %q", leaf.Subject.CommonName)
	}
	if len(leaf.DNSNames) != 2 || leaf.DNSNames[0] != "localhost" {
		t.Errorf("DNS SANs: %v", leaf.DNSNames)
	}
	now := time.Now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		t.Errorf("cert not valid now: NotBefore=%v NotAfter=%v", leaf.NotBefore, leaf.NotAfter)
	}

	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	if _, err := leaf.Verify(x509.VerifyOptions{DNSName: "localhost", Roots: pool}); err != nil {
		t.Errorf("verify against itself: %v", err)
	}
}

func TestNewTLSConfig(t *testing.T) {
	cfg, err := NewTLSConfig(TLSOptions{})
	if err != nil || cfg != nil {
		t.Fatalf("expected no TLS, got %v, %v", cfg, err)
	}
	cfg, err = NewTLSConfig(TLSOptions{SelfSigned: true})
	if err != nil || cfg == nil {
		t.Fatalf("expected self-signed TLS, got %v, %v", cfg, err)
	}
	if _, err := NewTLSConfig(TLSOptions{CertFile: "missing.pem", KeyFile: "missing.key"}); err == nil {
		t.Fatal("expected error for missing key pair")
	}
}
