package stream

import "github.com/tidwall/gjson"

// Snapshot extracts the full-text snapshot from a conversation event.
// Only the first part of the first candidate is used. Events without one
// (pings, moderation results, delta-style payloads from the official
// surface) report ok=false and should pass through unconverted.
func Snapshot(event []byte) (string, bool) {
	res := gjson.GetBytes(event, "message.content.parts.0")
	if !res.Exists() || res.Type != gjson.String {
		return "", false
	}
	return res.String(), true
}

// MessageID returns the upstream message id carried by a conversation
// event, or "" when absent.
func MessageID(event []byte) string {
	return gjson.GetBytes(event, "message.id").String()
}

// ModelSlug returns the model name carried by a conversation event, or
// "" when absent.
func ModelSlug(event []byte) string {
	return gjson.GetBytes(event, "message.metadata.model_slug").String()
}

// EndTurn reports whether a conversation event marks the end of the
// assistant's turn.
func EndTurn(event []byte) bool {
	return gjson.GetBytes(event, "message.end_turn").Bool()
}
