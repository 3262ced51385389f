package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Event names on GET /jobs/{id}/events.
const (
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// eventStream writes numbered server-sent events and flushes after each one.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// newEventStream sets the event-stream headers. It fails when w cannot flush.
func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &eventStream{w: w, flusher: flusher}, nil
}

func (s *eventStream) send(event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, body); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) progress(snapshot JobStatusResponse) error {
	return s.send(eventProgress, snapshot)
}

// complete and fail end the stream, so their write errors have no reader.
func (s *eventStream) complete(snapshot JobStatusResponse) {
	_ = s.send(eventComplete, snapshot)
}

func (s *eventStream) fail(message string) {
	_ = s.send(eventError, map[string]string{"error": message})
}
