package types

import "time"

// StreamChunk is one normalized event on a converted response stream.
// The upstream emits full-text snapshots; the gateway re-emits them as
// incremental deltas in the provider's chat-completion chunk shape so
// standard SDK stream readers consume them unchanged.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model,omitempty"`
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice is a single choice within a stream chunk. The gateway
// only ever emits index 0.
type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta carries the incremental content of a stream chunk.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// NewStreamChunk builds a content-carrying chunk.
func NewStreamChunk(id, model, content string) *StreamChunk {
	return &StreamChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []StreamChoice{
			{Index: 0, Delta: Delta{Content: content}},
		},
	}
}

// NewStreamStop builds the terminal chunk carrying a finish reason and
// no content.
func NewStreamStop(id, model, reason string) *StreamChunk {
	return &StreamChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []StreamChoice{
			{Index: 0, Delta: Delta{}, FinishReason: &reason},
		},
	}
}
