// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package app

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/remote"
)

// EventStatus is the first message on every event stream and carries the
// state at subscribe time.
const EventStatus remote.EventType = "status"

const (
	eventBuffer    = 32
	wsWriteWait    = 5 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = 50 * time.Second
	wsMaxReadBytes = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin rejects cross-site upgrades. Requests without an Origin header
// (non-browser clients) and localhost origins are allowed.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" {
		return true
	}
	return strings.EqualFold(u.Host, r.Host)
}

// handleEvents streams controller events as JSON text frames until the
// client goes away or the controller is closed.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Event stream upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := a.ctrl.Subscribe(eventBuffer)
	defer unsubscribe()

	logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Event stream opened")
	defer logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Event stream closed")

	// Clients never send anything useful; reading only detects close and
	// processes pongs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsMaxReadBytes)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot := remote.Event{Type: EventStatus, State: a.ctrl.State(), Timestamp: time.Now()}
	if !writeEvent(conn, snapshot) {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			if !writeEvent(conn, ev) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev remote.Event) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(ev); err != nil {
		logger.Debug().Err(err).Msg("Event stream write failed")
		return false
	}
	return true
}
