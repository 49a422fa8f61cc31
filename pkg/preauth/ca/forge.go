package ca

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"
)

// Leaf validity window. Short-lived on purpose: forged leaves exist
// only to satisfy one local client's handshake, and the backdated
// NotBefore absorbs clock skew between the gateway and that client.
const (
	leafBackdate = time.Hour
	leafValidity = 7 * 24 * time.Hour
)

// Signer issues a TLS certificate for a requested hostname.
type Signer interface {
	Sign(hostname string) (*tls.Certificate, error)
}

// Forge synthesizes CA-signed leaf certificates per host. Safe for
// concurrent use; each host is signed at most once per process and
// served from cache afterwards.
type Forge struct {
	caCert *x509.Certificate
	caKey  crypto.Signer

	mu    sync.RWMutex
	cache map[string]*tls.Certificate

	// onForge, when set, observes cache misses (metrics hook).
	onForge func()
}

// NewForge creates a forge over a loaded CA pair.
func NewForge(caCert *x509.Certificate, caKey crypto.Signer) (*Forge, error) {
	if caCert == nil || caKey == nil {
		return nil, fmt.Errorf("forge requires a CA certificate and key")
	}
	if !caCert.IsCA {
		return nil, fmt.Errorf("certificate %q is not a CA", caCert.Subject.CommonName)
	}
	return &Forge{
		caCert: caCert,
		caKey:  caKey,
		cache:  make(map[string]*tls.Certificate),
	}, nil
}

// OnForge registers a callback invoked once per fresh signing.
func (f *Forge) OnForge(fn func()) {
	f.onForge = fn
}

// Sign returns a leaf certificate for hostname, forging one on first
// sight and serving the cached leaf afterwards.
func (f *Forge) Sign(hostname string) (*tls.Certificate, error) {
	hostname = normalizeHost(hostname)
	if hostname == "" {
		return nil, fmt.Errorf("cannot sign an empty hostname")
	}

	f.mu.RLock()
	cached, ok := f.cache[hostname]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Another connection may have signed while we waited.
	if cached, ok := f.cache[hostname]; ok {
		return cached, nil
	}

	leaf, err := f.forge(hostname)
	if err != nil {
		return nil, err
	}
	f.cache[hostname] = leaf
	if f.onForge != nil {
		f.onForge()
	}
	return leaf, nil
}

// CachedHosts returns the hostnames signed so far.
func (f *Forge) CachedHosts() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	hosts := make([]string, 0, len(f.cache))
	for host := range f.cache {
		hosts = append(hosts, host)
	}
	return hosts
}

func (f *Forge) forge(hostname string) (*tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate leaf key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: hostname,
		},
		NotBefore:   now.Add(-leafBackdate),
		NotAfter:    now.Add(leafValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(hostname); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{hostname}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, f.caCert, &key.PublicKey, f.caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign leaf for %q: %w", hostname, err)
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse forged leaf: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der, f.caCert.Raw},
		PrivateKey:  key,
		Leaf:        parsed,
	}, nil
}

// newSerial draws a random 128-bit serial, the same width public CAs
// use.
func newSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}
	return serial, nil
}

// normalizeHost lowercases and strips any port so "Host:443" and
// "host" hit the same cache entry.
func normalizeHost(hostname string) string {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if host, _, err := net.SplitHostPort(hostname); err == nil {
		return host
	}
	return hostname
}
