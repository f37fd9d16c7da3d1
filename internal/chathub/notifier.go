package chathub

import (
	"context"
	"fmt"
	"sync"

	"crmchat/backend/internal/config"
	"crmchat/backend/internal/models"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NotificationStore is the slice of storage the notifier writes to.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Emitter delivers an event to every subscriber of the named channels.
type Emitter interface {
	EmitTo(ev models.OutboundEvent, channels ...string)
}

// PushFunc builds the real-time event for a notification that has been persisted.
type PushFunc func(n *models.Notification) models.OutboundEvent

// Notifier persists notification records and pushes them to recipients'
// identity channels.
type Notifier struct {
	store NotificationStore
	emit  Emitter
	log   *zap.Logger
	limit int
}

func NewNotifier(store NotificationStore, emit Emitter, log *zap.Logger) *Notifier {
	return &Notifier{store: store, emit: emit, log: log, limit: config.NotificationFanOutLimit}
}

// Notify stores rec and, once it is stored, pushes the event built by push to
// rec.Recipient. Nothing is pushed if the write fails.
func (n *Notifier) Notify(ctx context.Context, rec *models.Notification, push PushFunc) error {
	if err := n.store.CreateNotification(ctx, rec); err != nil {
		return fmt.Errorf("notify %s: %w", rec.Recipient, err)
	}
	n.emit.EmitTo(push(rec), rec.Recipient)
	return nil
}

// FanOut notifies every participant except author. Each participant is handled
// independently: one failure neither blocks nor cancels the others, and all
// failures are returned together.
func (n *Notifier) FanOut(ctx context.Context, author string, participants []string, build func(recipient string) models.Notification, push PushFunc) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
		seen = make(map[string]struct{}, len(participants))
	)
	g.SetLimit(n.limit)

	for _, p := range participants {
		if p == author || p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}

		recipient := p
		g.Go(func() error {
			rec := build(recipient)
			if err := n.Notify(ctx, &rec, push); err != nil {
				n.log.Error("notification failed",
					zap.String("recipient", recipient),
					zap.String("type", string(rec.MessageType)),
					zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
