package out

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"studypomo/internal/modules/pomodoro/dto"
	pomodorout "studypomo/internal/modules/pomodoro/port/out"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSPublisher publishes lifecycle events as JSON on <subject>.<event type>.
type NATSPublisher struct {
	conn    natsConn
	subject string
	logger  zerolog.Logger
}

func ConnectNATSPublisher(url, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("studypomo"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	logger.Info().Str("url", url).Str("subject", subject).Msg("event publisher connected")
	return newNATSPublisher(conn, subject, logger), nil
}

func newNATSPublisher(conn natsConn, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, logger: logger.With().Str("component", "events").Logger()}
}

var _ pomodorout.EventPublisher = (*NATSPublisher)(nil)

func (p *NATSPublisher) Publish(ctx context.Context, event dto.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.subject + "." + string(event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug().Str("subject", subject).Str("session_id", event.SessionID).Msg("event published")
	return nil
}

func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(2 * time.Second)
	p.conn.Close()
	if err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	return nil
}
