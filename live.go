/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/icebreaker/icebreaker"
)

const (
	liveWriteTimeout = 10 * time.Second
	qrSize           = 320
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// LiveMessage tells an open page that its play session has changed.
type LiveMessage struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
}

type liveClient struct {
	conn    *websocket.Conn
	updates <-chan uint64
	stop    func()
}

// serveLive streams session versions to an open card page. Pages only
// connect after loading, so the play session must already exist.
func serveLive(cfg *Config, mgr *Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		self, err := readIdentity(cfg, r)
		if err != nil {
			http.Error(w, "not signed in", http.StatusUnauthorized)

			return
		}

		c, err := r.Cookie(sessionCookieName)
		if err != nil {
			http.Error(w, "missing session", http.StatusBadRequest)

			return
		}

		s, ok := mgr.lookup(c.Value)
		if !ok || s.Self().ID != self.ID {
			http.Error(w, "unknown session", http.StatusNotFound)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			requestLog(cfg, r).WithError(err).Debug("LIVE: Upgrade failed")

			return
		}

		updates, stop := s.Subscribe()

		client := &liveClient{
			conn:    conn,
			updates: updates,
			stop:    stop,
		}

		logf(cfg, "LIVE: %s watching session %s", realIP(r), s.ID())

		go client.writePump(s)
		client.readPump()
	}
}

// readPump discards anything the page sends and ends the subscription once
// the connection goes away.
func (c *liveClient) readPump() {
	defer c.stop()

	// hijacked connections keep the server's request read deadline
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return
	}

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *liveClient) writePump(s *icebreaker.Session) {
	defer c.conn.Close()

	if err := c.write(s.Snapshot().Version); err != nil {
		return
	}

	for version := range c.updates {
		if err := c.write(version); err != nil {
			return
		}
	}
}

func (c *liveClient) write(version uint64) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout)); err != nil {
		return err
	}

	return c.conn.WriteJSON(LiveMessage{Type: "version", Version: version})
}

// serveQR draws a PNG QR code pointing at the card page, for the organizer
// to put on screen.
func serveQR(cfg *Config, path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.ToLower(proto)
		}

		url := scheme + "://" + r.Host + cfg.prefix + path

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			requestLog(cfg, r).WithError(err).Error("SERVE: QR generation failed")

			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		_, _ = w.Write(png)

		logf(cfg, "SERVE: QR code for %s to %s", url, realIP(r))
	}
}
