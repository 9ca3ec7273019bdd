// Package notify turns terminal job transitions into user-visible signals,
// preferring a push notification and degrading to the in-app feed.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind classifies a notification.
type Kind string

const (
	KindReady         Kind = "ready"
	KindError         Kind = "error"
	KindGeneralUpdate Kind = "generalUpdate"
)

const dedupWindow = 24 * time.Hour

// PayloadData carries routing context for the client.
type PayloadData struct {
	ContextID   string `json:"context_id"`
	TargetRoute string `json:"target_route"`
}

// Payload is the wire shape handed to senders. Owner scopes delivery to one
// user; the in-app feed filters on it.
type Payload struct {
	Owner string      `json:"owner"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Tag   string      `json:"tag"`
	Data  PayloadData `json:"data"`
}

// Sender delivers a payload through one channel. Implementations return an
// error to let the dispatcher fall through to the next channel.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// Dispatcher fans a notification down a fallback chain of senders. A failed
// notification never propagates to the caller that completed the job.
type Dispatcher struct {
	senders []Sender
	logger  zerolog.Logger

	mu        sync.Mutex
	readySeen map[string]time.Time
}

// NewDispatcher builds a dispatcher trying senders in the given order.
func NewDispatcher(logger zerolog.Logger, senders ...Sender) *Dispatcher {
	return &Dispatcher{
		senders:   senders,
		logger:    logger,
		readySeen: make(map[string]time.Time),
	}
}

// Notify delivers one signal to the named owner. The same contextID produces
// at most one ready notification, guarding against push and poll double
// delivery.
func (d *Dispatcher) Notify(ctx context.Context, kind Kind, ownerID, title, contextID string) {
	if kind == KindReady && !d.markReady(contextID) {
		d.logger.Debug().Str("context_id", contextID).Msg("notify: duplicate ready suppressed")
		return
	}

	p := Payload{
		Owner: ownerID,
		Title: title,
		Body:  bodyFor(kind),
		Tag:   string(kind) + ":" + contextID,
		Data: PayloadData{
			ContextID:   contextID,
			TargetRoute: routeFor(kind),
		},
	}

	for _, s := range d.senders {
		if err := s.Send(ctx, p); err != nil {
			d.logger.Warn().Err(err).Str("context_id", contextID).Msg("notify: sender failed, falling back")
			continue
		}
		return
	}
	d.logger.Error().Str("context_id", contextID).Str("kind", string(kind)).Msg("notify: all senders failed")
}

// markReady records the first ready for a context and prunes stale entries.
func (d *Dispatcher) markReady(contextID string) bool {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, at := range d.readySeen {
		if now.Sub(at) > dedupWindow {
			delete(d.readySeen, id)
		}
	}
	if _, ok := d.readySeen[contextID]; ok {
		return false
	}
	d.readySeen[contextID] = now
	return true
}

func bodyFor(kind Kind) string {
	switch kind {
	case KindReady:
		return "Votre histoire est prête !"
	case KindError:
		return "La génération de l'histoire a échoué."
	default:
		return "Du nouveau dans votre bibliothèque."
	}
}

func routeFor(kind Kind) string {
	if kind == KindError {
		return "/create"
	}
	return "/library"
}
