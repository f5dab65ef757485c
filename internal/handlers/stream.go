package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"wallet/internal/middleware"
	"wallet/internal/websocket"
)

// Stream serves server-sent events for the caller until the client goes away.
// Each event is one "data: <json>" frame; comment frames keep proxies from
// closing an idle connection.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sub := h.streams.Subscribe(userID)
	defer h.streams.Unsubscribe(userID, sub)

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Printf("stream: user %d: flush unsupported: %v", userID, err)
		return
	}

	heartbeat := time.NewTicker(h.cfg.StreamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case <-sub.Ready():
			for _, event := range sub.Drain() {
				payload, err := json.Marshal(event)
				if err != nil {
					log.Printf("stream: user %d: encode %s: %v", userID, event.Name, err)
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	websocket.ServeWS(w, r, h.streams, userID)
}
