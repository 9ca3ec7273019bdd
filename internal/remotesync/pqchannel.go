package remotesync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"calmiverse/internal/domain"
)

// ChannelName is the Postgres NOTIFY channel the stories trigger publishes on.
const ChannelName = "story_events"

const (
	minReconnect = 2 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// PQChannel is the production push channel: a reconnecting LISTEN on the
// story_events channel. The stories table trigger NOTIFYs the post-change row
// as JSON on every insert and update.
type PQChannel struct {
	dsn    string
	logger zerolog.Logger
}

// NewPQChannel builds a push channel for the given Postgres DSN.
func NewPQChannel(dsn string, logger zerolog.Logger) *PQChannel {
	return &PQChannel{dsn: dsn, logger: logger}
}

// Start opens the listener and returns the event stream. The stream closes
// when ctx is canceled. Reconnects are handled by the pq listener; a gap
// notification (nil) is logged and otherwise ignored because the poll
// fallback reconciles anything missed.
func (c *PQChannel) Start(ctx context.Context) (<-chan domain.StoryEvent, error) {
	listener := pq.NewListener(c.dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			c.logger.Warn().Err(err).Int("event", int(ev)).Msg("remotesync: listener event")
		}
	})
	if err := listener.Listen(ChannelName); err != nil {
		listener.Close()
		return nil, err
	}

	out := make(chan domain.StoryEvent, 32)
	go func() {
		defer close(out)
		defer listener.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					// Connection was re-established; the poll loop covers the gap.
					c.logger.Info().Msg("remotesync: listener reconnected")
					continue
				}
				var ev domain.StoryEvent
				if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
					c.logger.Warn().Err(err).Msg("remotesync: malformed notify payload")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-time.After(pingInterval):
				if err := listener.Ping(); err != nil {
					c.logger.Warn().Err(err).Msg("remotesync: listener ping failed")
				}
			}
		}
	}()
	return out, nil
}
