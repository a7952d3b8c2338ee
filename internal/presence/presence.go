// Package presence tracks counterpart online state and owns the current
// user's presence writes. Its lifecycle is independent from message sync:
// watches survive conversation screens coming and going and are torn down
// through the shared registry.
package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dmartinez-dev/hilo/internal/bus"
	"github.com/dmartinez-dev/hilo/internal/identity"
	"github.com/dmartinez-dev/hilo/internal/model"
	"github.com/dmartinez-dev/hilo/internal/registry"
	"github.com/dmartinez-dev/hilo/internal/remote"
)

// Tracker watches presence records and writes the current user's own.
type Tracker struct {
	store  remote.Store
	reg    *registry.Registry
	ident  identity.Provider
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates a tracker over the session's registry.
func New(store remote.Store, reg *registry.Registry, ident identity.Provider, b *bus.Bus, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, reg: reg, ident: ident, bus: b, logger: logger}
}

// Watch subscribes to a user's presence record. Every remote update is
// delivered verbatim, without debouncing; formatting "last seen" from the
// raw epoch value is the rendering layer's job. Watches for different
// users may be live simultaneously.
func (t *Tracker) Watch(userID string, onChange func(model.Presence)) error {
	return t.reg.SubscribeUser(userID, func(p model.Presence) {
		if t.bus != nil {
			t.bus.Publish(bus.Now(bus.KindPresenceChanged, p))
		}
		if onChange != nil {
			onChange(p)
		}
	})
}

// Unwatch detaches a presence watch. No-op when none exists.
func (t *Tracker) Unwatch(userID string) {
	t.reg.UnsubscribeUser(userID)
}

// PublishProfile writes the current user's profile fields onto the presence
// record, creating it if absent. An existing record is merged into, so a
// re-login does not wipe the stored push token or online flag. Called on
// login.
func (t *Tracker) PublishProfile(ctx context.Context) error {
	user, ok := t.ident.Current()
	if !ok {
		return model.ErrNotAuthenticated
	}
	_, exists, err := t.store.Get(ctx, "users", user.ID)
	if err != nil {
		return &model.RemoteError{Op: "read", Err: err}
	}
	if !exists {
		p := model.Presence{
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
			LastOnline:  time.Now().UnixMilli(),
		}
		if err := t.store.Set(ctx, "users", user.ID, model.PresenceFields(p)); err != nil {
			return &model.RemoteError{Op: "write", Err: err}
		}
		return nil
	}
	err = t.store.Update(ctx, "users", user.ID, map[string]any{
		"displayName": user.DisplayName,
		"email":       user.Email,
	})
	if err != nil {
		return &model.RemoteError{Op: "write", Err: err}
	}
	return nil
}

// SetOnline flips the current user's online flag. Going offline also stamps
// the last-seen time.
func (t *Tracker) SetOnline(ctx context.Context, online bool) error {
	user, ok := t.ident.Current()
	if !ok {
		return model.ErrNotAuthenticated
	}
	fields := map[string]any{"online": online}
	if !online {
		fields["lastOnline"] = time.Now().UnixMilli()
	}
	if err := t.store.Update(ctx, "users", user.ID, fields); err != nil {
		return &model.RemoteError{Op: "write", Err: err}
	}
	return nil
}

// SetPushToken records the device push token on the presence record. This
// write is the engine's only touchpoint with push delivery.
func (t *Tracker) SetPushToken(ctx context.Context, token string) error {
	user, ok := t.ident.Current()
	if !ok {
		return model.ErrNotAuthenticated
	}
	err := t.store.Update(ctx, "users", user.ID, map[string]any{
		"fcmToken":       token,
		"tokenUpdatedAt": time.Now().UnixMilli(),
	})
	if err != nil {
		return &model.RemoteError{Op: "write", Err: err}
	}
	t.logger.Info("push token updated", zap.String("user", user.ID))
	return nil
}

// GetUser fetches a user's presence record once.
func (t *Tracker) GetUser(ctx context.Context, userID string) (model.Presence, error) {
	doc, ok, err := t.store.Get(ctx, "users", userID)
	if err != nil {
		return model.Presence{}, &model.RemoteError{Op: "read", Err: err}
	}
	if !ok {
		return model.Presence{}, model.ErrNotFound
	}
	return model.PresenceFromDoc(doc.ID, doc.Fields), nil
}
