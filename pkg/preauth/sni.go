package preauth

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"
)

// sniffTimeout bounds how long a client may dawdle before sending its
// ClientHello.
const sniffTimeout = 10 * time.Second

// peekServerName reads the TLS ClientHello from conn without consuming
// it: every byte read is recorded and replayed to the real handshake
// afterwards. The trick is to run a throwaway tls.Server handshake
// over a read-only view of the connection; GetConfigForClient hands us
// the parsed hello, and the handshake then aborts because the view
// cannot write.
func peekServerName(conn net.Conn) (string, net.Conn, error) {
	if err := conn.SetReadDeadline(time.Now().Add(sniffTimeout)); err != nil {
		return "", nil, fmt.Errorf("failed to arm sniff deadline: %w", err)
	}

	var recorded bytes.Buffer
	var hello *tls.ClientHelloInfo

	err := tls.Server(readOnlyConn{reader: io.TeeReader(conn, &recorded)}, &tls.Config{
		GetConfigForClient: func(info *tls.ClientHelloInfo) (*tls.Config, error) {
			hello = info
			return nil, nil
		},
	}).Handshake()

	// The handshake always errors: the read-only view refuses to
	// write the ServerHello. All that matters is whether the hello
	// arrived first.
	if hello == nil {
		return "", nil, fmt.Errorf("connection closed before a ClientHello arrived: %w", err)
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", nil, fmt.Errorf("failed to clear sniff deadline: %w", err)
	}

	return hello.ServerName, &replayConn{Conn: conn, reader: io.MultiReader(&recorded, conn)}, nil
}

// readOnlyConn exposes just the read side of a connection to the
// sniffing handshake. Writes fail immediately, aborting the handshake
// right after the ClientHello is parsed.
type readOnlyConn struct {
	reader io.Reader
}

func (c readOnlyConn) Read(p []byte) (int, error)  { return c.reader.Read(p) }
func (c readOnlyConn) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }
func (c readOnlyConn) Close() error                { return nil }

func (readOnlyConn) LocalAddr() net.Addr              { return nil }
func (readOnlyConn) RemoteAddr() net.Addr             { return nil }
func (readOnlyConn) SetDeadline(time.Time) error      { return nil }
func (readOnlyConn) SetReadDeadline(time.Time) error  { return nil }
func (readOnlyConn) SetWriteDeadline(time.Time) error { return nil }

// replayConn serves the recorded ClientHello bytes first, then the
// live connection, so the real handshake sees an untouched stream.
type replayConn struct {
	net.Conn
	reader io.Reader
}

func (c *replayConn) Read(p []byte) (int, error) { return c.reader.Read(p) }
