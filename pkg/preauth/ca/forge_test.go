package ca

import (
	"crypto"
	"crypto/x509"
	"testing"
	"time"
)

func testForge(t *testing.T) (*Forge, *x509.CertPool) {
	t.Helper()

	certPEM, keyPEM, err := GenerateCA("test preauth CA")
	if err != nil {
		t.Fatalf("GenerateCA() error = %v", err)
	}
	cert, key, err := ParseCA(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("ParseCA() error = %v", err)
	}
	forge, err := NewForge(cert, key)
	if err != nil {
		t.Fatalf("NewForge() error = %v", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return forge, pool
}

func TestSignValidatesAgainstCA(t *testing.T) {
	forge, pool := testForge(t)

	leaf, err := forge.Sign("chat.openai.com")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := leaf.Leaf.Verify(x509.VerifyOptions{
		DNSName:   "chat.openai.com",
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}); err != nil {
		t.Errorf("forged leaf failed verification: %v", err)
	}
}

func TestSignArbitraryHosts(t *testing.T) {
	forge, pool := testForge(t)

	for _, host := range []string{"example.com", "a.b.c.example.net", "127.0.0.1"} {
		leaf, err := forge.Sign(host)
		if err != nil {
			t.Fatalf("Sign(%q) error = %v", host, err)
		}
		opts := x509.VerifyOptions{Roots: pool, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}}
		opts.DNSName = host
		if _, err := leaf.Leaf.Verify(opts); err != nil {
			t.Errorf("leaf for %q failed verification: %v", host, err)
		}
	}
}

func TestSignCachesPerHost(t *testing.T) {
	forge, _ := testForge(t)

	forges := 0
	forge.OnForge(func() { forges++ })

	first, err := forge.Sign("chat.openai.com")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	second, err := forge.Sign("chat.openai.com:443")
	if err != nil {
		t.Fatalf("Sign() with port error = %v", err)
	}

	if first != second {
		t.Error("expected the cached leaf on the second request")
	}
	if forges != 1 {
		t.Errorf("forge count = %d, want 1", forges)
	}
	if hosts := forge.CachedHosts(); len(hosts) != 1 {
		t.Errorf("cached hosts = %v, want exactly one entry", hosts)
	}
}

func TestSignRejectsEmptyHost(t *testing.T) {
	forge, _ := testForge(t)
	if _, err := forge.Sign(""); err == nil {
		t.Error("Sign(\"\") should fail")
	}
}

func TestLeafValidityWindow(t *testing.T) {
	forge, _ := testForge(t)

	leaf, err := forge.Sign("example.com")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	now := time.Now()
	if leaf.Leaf.NotBefore.After(now) {
		t.Error("leaf NotBefore should be backdated")
	}
	if leaf.Leaf.NotAfter.Before(now.Add(24 * time.Hour)) {
		t.Error("leaf should stay valid for at least a day")
	}
	if leaf.Leaf.IsCA {
		t.Error("leaf must not be a CA")
	}
}

func TestNewForgeRejectsNonCA(t *testing.T) {
	forge, _ := testForge(t)
	leaf, err := forge.Sign("example.com")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := NewForge(leaf.Leaf, leaf.PrivateKey.(crypto.Signer)); err == nil {
		t.Error("NewForge with a leaf certificate should fail")
	}
}
