package http

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	outboxSize   = 256
)

// NavigationHandler returns a handler that upgrades to WebSocket and runs one
// navigation session per connection. The client renders what the session's
// live sync engine draws; disconnecting disposes the engine.
//
// Client messages:
//
//	{"type":"location","lat":15.49,"lng":73.82,"accuracy":12}
//	{"type":"start_nav","dest_lat":15.55,"dest_lng":73.75,"label":"Baga"}
//	{"type":"stop_nav"}
//	{"type":"follow","device":"phone-1"}
//	{"type":"query","text":"ba"} / {"type":"focus","focused":true} / {"type":"select","index":0}
func NavigationHandler(cfg SessionConfig) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := uuid.NewString()
		log := cfg.Logger
		if l, ok := c.Locals(loggerLocal).(*slog.Logger); ok {
			log = l
		}
		if log == nil {
			log = slog.Default()
		}
		log = log.With("remote", c.RemoteAddr().String())
		log.Info("ws client connected", "session", id)

		outbox := make(chan []byte, outboxSize)
		done := make(chan struct{})
		writerDone := make(chan struct{})

		// Single writer: session messages and keep-alive pings
		go func() {
			defer close(writerDone)
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case data := <-outbox:
					_ = c.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
						log.Debug("ws write failed", "error", err)
						return
					}
				case <-ticker.C:
					_ = c.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		send := func(v any) {
			data, err := json.Marshal(v)
			if err != nil {
				log.Error("ws marshal", "error", err)
				return
			}
			select {
			case outbox <- data:
			case <-writerDone:
			case <-done:
			}
		}

		sessionCfg := cfg
		sessionCfg.Logger = log
		session := newNavSession(id, sessionCfg, send)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			session.handle(msg)
		}

		session.close()
		close(done)
		<-writerDone
		log.Info("ws client disconnected", "session", id)
	}
}
