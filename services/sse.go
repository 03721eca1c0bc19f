package services

import (
	"encoding/json"
	"strings"
)

// StreamState tracks where the re-framer is in the upstream stream's
// lifecycle.
type StreamState int

const (
	StateStreaming StreamState = iota
	StateUpstreamDone
	StateClosed
)

// ClientEvent is one SSE frame to emit to the client as `data: <payload>`.
// Terminal is the literal `[DONE]` sentinel; its payload is not JSON.
type ClientEvent struct {
	Payload  string
	Terminal bool
}

type textEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// StreamReframer converts the provider's SSE stream into the simplified
// client framing. Feed it raw chunks as they arrive; it buffers partial
// lines internally so chunk boundaries never split an event.
//
// Upstream `content_block_delta` events become `{"type":"text",...}` frames,
// `message_stop` becomes the `[DONE]` sentinel, and everything else
// (pings, block starts, the provider's own `[DONE]`) is dropped.
type StreamReframer struct {
	state StreamState
	buf   strings.Builder
}

func NewStreamReframer() *StreamReframer {
	return &StreamReframer{state: StateStreaming}
}

func (r *StreamReframer) State() StreamState {
	return r.state
}

// Feed consumes one upstream chunk and returns the client events it
// completes. done is true once message_stop has been seen; later chunks
// produce nothing.
func (r *StreamReframer) Feed(chunk []byte) (events []ClientEvent, done bool) {
	if r.state != StateStreaming {
		return nil, true
	}
	r.buf.Write(chunk)
	data := r.buf.String()
	lines := strings.Split(data, "\n")
	// the last element is either empty (chunk ended on a newline) or a
	// partial line to carry over
	r.buf.Reset()
	r.buf.WriteString(lines[len(lines)-1])

	for _, line := range lines[:len(lines)-1] {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var event struct {
			Type  string `json:"type"`
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text == "" {
				continue
			}
			body, err := json.Marshal(textEvent{Type: "text", Content: event.Delta.Text})
			if err != nil {
				continue
			}
			events = append(events, ClientEvent{Payload: string(body)})
		case "message_stop":
			r.state = StateUpstreamDone
			events = append(events, ClientEvent{Payload: "[DONE]", Terminal: true})
			return events, true
		}
	}
	return events, false
}

// Fault emits the mid-stream error frame and closes the re-framer. Returns
// nothing if the stream already finished cleanly.
func (r *StreamReframer) Fault(message string) []ClientEvent {
	if r.state != StateStreaming {
		return nil
	}
	r.state = StateClosed
	body, _ := json.Marshal(errorEvent{Type: "error", Error: message})
	return []ClientEvent{{Payload: string(body)}}
}

// Close marks the stream finished after the terminal frame has been written.
func (r *StreamReframer) Close() {
	r.state = StateClosed
}
