package natsadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

// PositionFeed implements ports.PositionFeed over core NATS, following
// navigation.position.<device>.
type PositionFeed struct {
	conn   *nats.Conn
	device string
	log    *slog.Logger
}

func NewPositionFeed(conn *nats.Conn, device string, log *slog.Logger) *PositionFeed {
	if log == nil {
		log = slog.Default()
	}
	return &PositionFeed{conn: conn, device: device, log: log.With("device", device)}
}

// Subscribe delivers each decoded fix to handler until cancel is called or
// ctx is done. Malformed messages are dropped.
func (f *PositionFeed) Subscribe(ctx context.Context, handler func(domain.Position)) (func(), error) {
	subject, err := Subject(PositionSubjectPrefix, f.device)
	if err != nil {
		return nil, err
	}

	sub, err := f.conn.Subscribe(subject, func(msg *nats.Msg) {
		pos, ok := DecodePosition(msg.Data)
		if !ok {
			f.log.Debug("dropping malformed position", "subject", msg.Subject)
			return
		}
		handler(pos)
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return cancel, nil
}

// DecodePosition parses a PositionMessage and rejects out of range fixes.
func DecodePosition(data []byte) (domain.Position, bool) {
	var m PositionMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Position{}, false
	}
	pos := m.Position()
	if !pos.Point().Valid() {
		return domain.Position{}, false
	}
	return pos, true
}
