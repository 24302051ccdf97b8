package out

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypomo/internal/modules/pomodoro/domain"
	"studypomo/internal/modules/pomodoro/dto"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	messages   []published
	publishErr error
	flushed    bool
	closed     bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.messages = append(c.messages, published{subject: subject, data: data})
	return nil
}

func (c *fakeConn) FlushTimeout(time.Duration) error {
	c.flushed = true
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

func TestNATSPublisherSubjectsAndPayload(t *testing.T) {
	t.Parallel()
	conn := &fakeConn{}
	pub := newNATSPublisher(conn, "studypomo.sessions", zerolog.Nop())

	at := time.Date(2026, 2, 25, 10, 25, 0, 0, time.UTC)
	err := pub.Publish(context.Background(), dto.Event{
		Type:        dto.EventSessionCompleted,
		SessionID:   "s-1",
		SessionType: domain.SessionFocus,
		Next:        domain.SessionShortBreak,
		At:          at,
	})
	require.NoError(t, err)
	require.Len(t, conn.messages, 1)
	assert.Equal(t, "studypomo.sessions.session.completed", conn.messages[0].subject)

	decoded := map[string]any{}
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &decoded))
	assert.Equal(t, "session.completed", decoded["type"])
	assert.Equal(t, "s-1", decoded["session_id"])
	assert.Equal(t, "short_break", decoded["next"])
	assert.Equal(t, "2026-02-25T10:25:00Z", decoded["at"])

	require.NoError(t, pub.Close())
	assert.True(t, conn.flushed)
	assert.True(t, conn.closed)
}

func TestNATSPublisherErrors(t *testing.T) {
	t.Parallel()
	conn := &fakeConn{publishErr: errors.New("nats: connection closed")}
	pub := newNATSPublisher(conn, "studypomo.sessions", zerolog.Nop())

	err := pub.Publish(context.Background(), dto.Event{Type: dto.EventAutoStartFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "studypomo.sessions.autostart.failed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Publish(ctx, dto.Event{Type: dto.EventSessionStarted}), context.Canceled)
}

func TestConnectNATSPublisherFailsWithoutServer(t *testing.T) {
	t.Parallel()
	_, err := ConnectNATSPublisher("nats://127.0.0.1:1", "studypomo.sessions", zerolog.Nop())
	require.Error(t, err)
}
