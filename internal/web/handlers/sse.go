package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/good-yellow-bee/pondview/internal/dashboard"
)

// Dashboard stream event names.
const (
	eventView  = "dashboard"
	eventClose = "close"
)

// viewStream writes dashboard views to a browser as Server-Sent Events.
// Each view carries an increasing id so a client can tell replays apart.
type viewStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder
	seq     uint64
}

// openViewStream sets the event-stream headers and tells the client how long
// to wait before reconnecting. It fails when w cannot flush.
func openViewStream(w http.ResponseWriter, retry time.Duration) (*viewStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer %T cannot flush", w)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	s := &viewStream{w: w, flusher: flusher, enc: json.NewEncoder(w)}
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", retry.Milliseconds()); err != nil {
		return nil, err
	}
	flusher.Flush()
	return s, nil
}

// SendView writes one view event. The encoder's trailing newline ends the
// data line; one more blank line ends the event.
func (s *viewStream) SendView(v dashboard.View) error {
	s.seq++
	if _, err := fmt.Fprintf(s.w, "event: %s\nid: %d\ndata: ", eventView, s.seq); err != nil {
		return err
	}
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("encode dashboard view: %w", err)
	}
	return s.end()
}

// SendClose tells the client the server ended the stream and it should not
// reconnect.
func (s *viewStream) SendClose(reason string) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: ", eventClose); err != nil {
		return err
	}
	if err := s.enc.Encode(struct {
		Reason string `json:"reason"`
	}{reason}); err != nil {
		return err
	}
	return s.end()
}

// Heartbeat writes a comment line that keeps proxies from timing out.
func (s *viewStream) Heartbeat() error {
	if _, err := fmt.Fprint(s.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *viewStream) end() error {
	if _, err := fmt.Fprint(s.w, "\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
