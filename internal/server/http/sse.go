package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/triage/internal/fanout"
	logpkg "github.com/rzbill/triage/pkg/log"
)

// sseWriter formats change-feed events as SSE data frames.
type sseWriter struct {
	w http.ResponseWriter
}

func (s sseWriter) send(ev fanout.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s sseWriter) sendComment(msg string) {
	_, _ = s.w.Write([]byte(": " + msg + "\n\n"))
	s.flush()
}

func (s sseWriter) flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

// handleFeedSSE streams the change feed as Server-Sent Events. An
// optional ?filter= query carries a CEL expression; only matching
// events are delivered.
func (s *Server) handleFeedSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sub, err := s.rt.Hub().Subscribe(fanout.WithFilter(r.URL.Query().Get("filter")))
	if err != nil {
		badRequest(w, "invalid filter: "+err.Error())
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sink := sseWriter{w: w}
	sink.sendComment("connected")

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				// closed under the subscriber: overflow or shutdown
				if sub.Err() != nil {
					sink.sendComment("dropped: subscriber overflow")
					s.logger.Warn("sse subscriber overflowed", logpkg.Str("subscriber", sub.ID()))
				}
				return
			}
			if err := sink.send(ev); err != nil {
				return
			}
		}
	}
}
