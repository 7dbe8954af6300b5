package httpapi

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"time"
)

// TLSOptions selects the certificate source for a listener.
type TLSOptions struct {
	CertFile   string
	KeyFile    string
	SelfSigned bool
	Hostname   string
}

// NewTLSConfig returns nil when no certificate source is configured.
// Cert files take precedence over a self-signed certificate.
func NewTLSConfig(o TLSOptions) (*tls.Config, error) {
	switch {
	case o.CertFile != "" && o.KeyFile != "":
		return LoadTLS(o.CertFile, o.KeyFile)
	case o.SelfSigned:
		cfg, fingerprint, err := SelfSignedTLS(365*24*time.Hour, o.Hostname)
		if err != nil {
			return nil, err
		}
		slog.Info("using self-signed certificate", "hostname", o.Hostname, "sha256", fingerprint)
		return cfg, nil
	default:
		return nil, nil
	}
}

// LoadTLS loads a PEM certificate and key pair.
func LoadTLS(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

// SelfSignedTLS creates an in-memory self-signed certificate valid for
// validity. hostname becomes the Common Name and joins "localhost" in the
// DNS SANs. The SHA-256 fingerprint of the certificate is returned for
// clients that pin it.
func SelfSignedTLS(validity time.Duration, hostname string) (*tls.Config, string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("generate tls key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, "", fmt.Errorf("generate tls serial: %w", err)
	}

	cn := "chatroom-server"
	if hostname != "" {
		cn = hostname
	}
	sans := []string{"localhost"}
	if hostname != "" && hostname != "localhost" {
		sans = append(sans, hostname)
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              sans,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, "", fmt.Errorf("create tls certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, "", fmt.Errorf("parse tls certificate: %w", err)
	}

	fp := sha256.Sum256(certDER)
	cfg := &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{certDER},
			PrivateKey:  key,
			Leaf:        leaf,
		}},
		MinVersion: tls.VersionTLS12,
	}
	return cfg, hex.EncodeToString(fp[:]), nil
}
