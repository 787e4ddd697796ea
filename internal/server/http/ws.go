package httpserver

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/rzbill/triage/internal/fanout"
	logpkg "github.com/rzbill/triage/pkg/log"
)

// handleFeedWS streams the change feed over a WebSocket. Same event
// payloads and ?filter= semantics as the SSE feed.
func (s *Server) handleFeedWS(w http.ResponseWriter, r *http.Request) {
	sub, err := s.rt.Hub().Subscribe(fanout.WithFilter(r.URL.Query().Get("filter")))
	if err != nil {
		badRequest(w, "invalid filter: "+err.Error())
		return
	}
	defer sub.Close()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", logpkg.Err(err))
		return
	}
	defer c.CloseNow()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = c.Close(websocket.StatusNormalClosure, "server closing")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				if sub.Err() != nil {
					_ = c.Close(websocket.StatusPolicyViolation, "subscriber overflow")
					s.logger.Warn("ws subscriber overflowed", logpkg.Str("subscriber", sub.ID()))
					return
				}
				_ = c.Close(websocket.StatusNormalClosure, "feed closed")
				return
			}
			if err := wsjson.Write(ctx, c, ev); err != nil {
				return
			}
		}
	}
}
