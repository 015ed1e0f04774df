package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-session-guard/events"
	"github.com/rs/zerolog/log"
)

const sseKeepAlive = 25 * time.Second

// SessionEventsHandler streams the session's invalid/refreshed signals as
// server-sent events (GET /events/session). A sign-out published before the
// stream subscribed is replayed first.
func (s *Server) SessionEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClientFrom(r.Context())
		if !ok {
			writeJSONError(w, "unauthorized", "no session", http.StatusUnauthorized)
			return
		}
		rc := http.NewResponseController(w)

		stream, unsubscribe := c.Events().Subscribe(events.SessionInvalid)
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			log.Err(err).Msg("Streaming is not supported by the response writer")
			return
		}

		ticker := time.NewTicker(sseKeepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
			case ev, ok := <-stream:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					log.Err(err).Msg("Failed to encode session event")
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
