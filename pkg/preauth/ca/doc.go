// Package ca is the certificate forge behind the pre-auth interception
// proxy. Given an operator-supplied certificate authority it
// synthesizes leaf certificates for arbitrary hostnames on demand,
// caching each host's leaf for the process lifetime.
//
// The forge is deliberately narrow: Signer is one method, so the
// interception proxy can run against a mock CA in tests and the real
// signing implementation stays swappable.
package ca
