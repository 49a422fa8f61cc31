// Package types defines the wire shapes the gateway writes itself: the
// error envelope returned on every failure and the normalized chunk
// format for converted response streams. Proxied payloads never pass
// through these types; the dispatcher forwards upstream bytes as-is.
package types
