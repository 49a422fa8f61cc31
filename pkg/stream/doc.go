// Package stream converts the upstream conversation event stream into
// incremental output chunks.
//
// # Overview
//
// The unofficial conversation endpoint streams Server-Sent Events whose
// payloads carry the entire message text so far, re-sent on every
// event. Reader walks the SSE framing and yields one payload at a time;
// Converter diffs successive snapshots and emits only newly appeared
// text, falling back to the full snapshot when the upstream replaces
// the text outright.
//
// # Usage
//
//	rd := stream.NewReader(resp.Body)
//	conv := stream.NewConverter()
//	for {
//	    event, err := rd.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if snapshot, ok := stream.Snapshot(event); ok {
//	        emit(conv.Delta(snapshot))
//	    }
//	}
//
// A Converter is single-stream state; never reuse one across responses.
package stream
