package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"nftstake/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 128
)

type eventPayload struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// handleEventsWS streams committed events. An optional "prefix" query value
// limits the stream to matching event types.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	prefix := strings.TrimSpace(r.URL.Query().Get("prefix"))
	patterns := s.cfg.AllowedOrigins
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: patterns})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, prefix); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, prefix string) error {
	updates, cancel := s.node.Hub().Subscribe(wsBuffer)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if prefix != "" && !strings.HasPrefix(evt.Type, prefix) {
				continue
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(eventPayload{Type: evt.Type, Attributes: evt.Attributes})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
