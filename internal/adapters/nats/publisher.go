package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

// Subject prefixes. The session or device id is appended as the last token.
const (
	PositionSubjectPrefix = "navigation.position."
	RouteSubjectPrefix    = "navigation.route."
)

// PositionMessage is the payload on navigation.position.<id>.
type PositionMessage struct {
	Session  string    `json:"session"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Accuracy float64   `json:"accuracy_m,omitempty"`
	At       time.Time `json:"at"`
}

// Position returns the fix carried by the message.
func (m PositionMessage) Position() domain.Position {
	return domain.Position{Lat: m.Lat, Lng: m.Lng, Accuracy: m.Accuracy}
}

// RouteMessage is the payload on navigation.route.<id>.
type RouteMessage struct {
	Session string             `json:"session"`
	Update  domain.RouteUpdate `json:"update"`
	At      time.Time          `json:"at"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	now  func() time.Time
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "NAVIGATION_POSITIONS",
			Subjects:  []string{PositionSubjectPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "NAVIGATION_ROUTES",
			Subjects:  []string{RouteSubjectPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js, now: time.Now}, nil
}

func (p *Publisher) PublishPosition(ctx context.Context, session string, pos domain.Position) error {
	subject, err := Subject(PositionSubjectPrefix, session)
	if err != nil {
		return err
	}
	data, err := json.Marshal(PositionMessage{
		Session:  session,
		Lat:      pos.Lat,
		Lng:      pos.Lng,
		Accuracy: pos.Accuracy,
		At:       p.now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishRoute(ctx context.Context, session string, update domain.RouteUpdate) error {
	subject, err := Subject(RouteSubjectPrefix, session)
	if err != nil {
		return err
	}
	data, err := json.Marshal(RouteMessage{Session: session, Update: update, At: p.now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection so feeds can share it.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Subject appends id to prefix. The id must be a single subject token.
func Subject(prefix, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, ".*> \t\r\n") {
		return "", fmt.Errorf("invalid subject token %q", id)
	}
	return prefix + id, nil
}

// RawConn creates a plain NATS connection for subscribing (e.g. device feeds).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
