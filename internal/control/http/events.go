// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package http

import (
	"net/http"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	xglog "github.com/ManuGH/vidrec/internal/log"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// eventFrame is one message on the event stream.
type eventFrame struct {
	Type     string         `json:"type"`
	Snapshot model.Snapshot `json:"snapshot"`
}

// handleEvents upgrades to a websocket and pushes the current snapshot
// followed by every published change. Slow clients lose intermediate
// snapshots, never the latest one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xglog.WithContext(ctx, s.logger)

	sub, err := s.cfg.Events.Subscribe(ctx, s.cfg.Topic)
	if err != nil {
		writeCaptureError(w, r, err, nil)
		return
	}
	defer func() { _ = sub.Close() }()

	initial, err := s.capture.Snapshot(ctx)
	if err != nil {
		writeCaptureError(w, r, err, nil)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.origins.Allow,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	// The reader only watches for the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(snap model.Snapshot) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(eventFrame{Type: "snapshot", Snapshot: snap})
	}
	if err := send(initial); err != nil {
		return
	}
	logger.Debug().Str(xglog.FieldEvent, "events.connected").Msg("event stream opened")

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			logger.Debug().Str(xglog.FieldEvent, "events.disconnected").Msg("event stream closed by client")
			return
		case msg, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			snap, isSnap := msg.(model.Snapshot)
			if !isSnap {
				continue
			}
			if err := send(snap); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
