// Package preauth implements the TLS-intercepting pre-authentication
// proxy. It sits transparently between a client and the real upstream
// for exactly one purpose: observing the anti-bot cookie the upstream
// sets during its device-check handshake, before the client's real
// traffic ever reaches the gateway.
//
// Each accepted connection walks one path: peek the TLS ClientHello
// for the requested server name, forge a leaf certificate for that
// name (pkg/preauth/ca), complete a TLS handshake toward the client
// with the forged leaf and another toward the real upstream, then
// relay bytes both ways untouched. The upstream-to-client direction is
// additionally scanned, once per connection, for the cookie; the first
// sighting process-wide is published through Capture and never
// solicited again.
//
// Per-connection failures are logged and close that connection only.
// The listener itself stops only on shutdown, which also aborts every
// in-flight relay.
package preauth
