package preauth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/xhd193694/ninja/pkg/config"
	"github.com/xhd193694/ninja/pkg/preauth/ca"
	"github.com/xhd193694/ninja/pkg/telemetry/logging"
	"github.com/xhd193694/ninja/pkg/telemetry/metrics"
)

const (
	dialTimeout      = 15 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Connection outcomes reported to metrics.
const (
	outcomeRelayed      = "relayed"
	outcomeSniffFailed  = "sniff_failed"
	outcomeForgeFailed  = "forge_failed"
	outcomeClientFailed = "client_handshake_failed"
	outcomeDialFailed   = "upstream_dial_failed"
)

// Proxy is the TLS-intercepting listener that sits in front of the
// real upstream. Each accepted connection is terminated with a forged
// per-host certificate, re-originated to the configured upstream, and
// relayed byte for byte while the decrypted response stream is watched
// for the anti-bot cookie.
type Proxy struct {
	cfg     config.PreauthConfig
	signer  ca.Signer
	capture *Capture
	logger  *logging.Logger
	metrics *metrics.PreauthMetrics

	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
	rootCAs *x509.CertPool

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool

	wg sync.WaitGroup
}

// New creates an interception proxy. The signer forges leaf
// certificates for sniffed hostnames; captured cookie values are
// published to capture.
func New(cfg config.PreauthConfig, signer ca.Signer, capture *Capture, logger *logging.Logger, m *metrics.PreauthMetrics) *Proxy {
	if logger == nil {
		logger = logging.Nop()
	}
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &Proxy{
		cfg:     cfg,
		signer:  signer,
		capture: capture,
		logger:  logger.Component("preauth"),
		metrics: m,
		dial:    dialer.DialContext,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Run binds the listener and serves intercepted connections until ctx
// is cancelled. Cancellation closes the listener and every in-flight
// relay, then waits for the connection goroutines to drain.
func (p *Proxy) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", p.cfg.Bind)
	if err != nil {
		return fmt.Errorf("preauth listen on %s: %w", p.cfg.Bind, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		listener.Close()
		return nil
	}
	p.listener = listener
	p.mu.Unlock()

	p.logger.Info("Interception proxy listening",
		"bind", listener.Addr().String(),
		"upstream", p.cfg.Upstream)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-done:
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			p.wg.Wait()
			if p.isClosed() {
				return nil
			}
			return fmt.Errorf("preauth accept: %w", err)
		}

		p.track(conn)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer p.untrack(conn)
			p.handleConn(ctx, conn)
		}()
	}
}

// Addr returns the bound listener address, or nil before Run binds it.
func (p *Proxy) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Close stops the listener and aborts every in-flight relay.
func (p *Proxy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.listener != nil {
		p.listener.Close()
	}
	for conn := range p.conns {
		conn.Close()
	}
}

func (p *Proxy) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Proxy) track(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[conn] = struct{}{}
}

func (p *Proxy) untrack(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, conn)
}

// handleConn walks one intercepted connection through sniff, forge,
// double handshake, and relay. Failures close the connection and are
// logged; they never take down the listener.
func (p *Proxy) handleConn(ctx context.Context, raw net.Conn) {
	defer raw.Close()

	remote := raw.RemoteAddr().String()

	serverName, replay, err := peekServerName(raw)
	if err != nil {
		p.metrics.RecordConnection(outcomeSniffFailed)
		p.logger.Warn("ClientHello sniff failed", "remote", remote, "error", err)
		return
	}
	if serverName == "" {
		// No SNI: fall back to the configured upstream's hostname.
		serverName, _, _ = net.SplitHostPort(p.cfg.Upstream)
	}

	leaf, err := p.signer.Sign(serverName)
	if err != nil {
		p.metrics.RecordConnection(outcomeForgeFailed)
		p.logger.Warn("Leaf forge failed", "remote", remote, "host", serverName, "error", err)
		return
	}

	// HTTP/1.1 only on both legs so the response header block stays
	// parseable by the cookie sniffer.
	clientTLS := tls.Server(replay, &tls.Config{
		Certificates: []tls.Certificate{*leaf},
		NextProtos:   []string{"http/1.1"},
	})
	defer clientTLS.Close()

	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	err = clientTLS.HandshakeContext(hsCtx)
	cancel()
	if err != nil {
		p.metrics.RecordConnection(outcomeClientFailed)
		p.logger.Warn("Client handshake failed", "remote", remote, "host", serverName, "error", err)
		return
	}

	upstreamTLS, err := p.dialUpstream(ctx, serverName)
	if err != nil {
		p.metrics.RecordConnection(outcomeDialFailed)
		p.logger.Warn("Upstream dial failed", "remote", remote, "upstream", p.cfg.Upstream, "error", err)
		return
	}
	defer upstreamTLS.Close()

	p.logger.Debug("Relaying intercepted session", "remote", remote, "host", serverName)
	p.relay(clientTLS, upstreamTLS)
	p.metrics.RecordConnection(outcomeRelayed)
}

func (p *Proxy) dialUpstream(ctx context.Context, serverName string) (*tls.Conn, error) {
	raw, err := p.dial(ctx, "tcp", p.cfg.Upstream)
	if err != nil {
		return nil, err
	}

	conn := tls.Client(raw, &tls.Config{
		ServerName: serverName,
		RootCAs:    p.rootCAs,
		NextProtos: []string{"http/1.1"},
	})

	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(hsCtx); err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

// relay copies bytes in both directions until either side closes. The
// upstream-to-client leg passes through the cookie sniffer; client
// bytes are forwarded untouched.
func (p *Proxy) relay(client, upstream net.Conn) {
	sniffer := newCookieSniffer(p.capture, func() {
		p.metrics.RecordCapture()
		p.logger.Info("Anti-bot cookie captured")
	})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		n, err := io.Copy(upstream, client)
		p.metrics.RecordRelay("client_to_upstream", n)
		logCopyError(p.logger, "client to upstream copy ended", err)
		closeWrite(upstream)
	}()

	go func() {
		defer wg.Done()
		n, err := io.Copy(client, io.TeeReader(upstream, sniffer))
		p.metrics.RecordRelay("upstream_to_client", n)
		logCopyError(p.logger, "upstream to client copy ended", err)
		closeWrite(client)
	}()

	wg.Wait()
}

// closeWrite half-closes the write side so the peer sees EOF while its
// own pending writes still drain.
func closeWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		wc.CloseWrite()
		return
	}
	conn.Close()
}

func logCopyError(logger *logging.Logger, msg string, err error) {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	logger.Debug(msg, "error", err)
}
