// Package engine is the synchronization coordinator: it turns the remote
// change feed into timeline mutations, owns the send and pagination paths,
// and reconciles read state. One Engine serves one logged-in session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dmartinez-dev/hilo/internal/bus"
	"github.com/dmartinez-dev/hilo/internal/codec"
	"github.com/dmartinez-dev/hilo/internal/config"
	"github.com/dmartinez-dev/hilo/internal/identity"
	"github.com/dmartinez-dev/hilo/internal/model"
	"github.com/dmartinez-dev/hilo/internal/registry"
	"github.com/dmartinez-dev/hilo/internal/remote"
	"github.com/dmartinez-dev/hilo/internal/status"
	"github.com/dmartinez-dev/hilo/internal/timeline"
	"github.com/dmartinez-dev/hilo/internal/upload"
)

// Engine coordinates remote state with per-conversation timelines.
type Engine struct {
	store    remote.Store
	ident    identity.Provider
	codec    *codec.Codec
	reg      *registry.Registry
	uploader upload.Service
	bus      *bus.Bus
	cfg      *config.Config
	logger   *zap.Logger

	mu        sync.Mutex
	timelines map[string]*timeline.Store
	states    map[string]*status.Machine
}

// New wires an engine from its collaborators. Every dependency is explicit;
// there are no ambient singletons.
func New(store remote.Store, ident identity.Provider, cdc *codec.Codec, reg *registry.Registry, uploader upload.Service, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{
		store:     store,
		ident:     ident,
		codec:     cdc,
		reg:       reg,
		uploader:  uploader,
		bus:       b,
		cfg:       cfg,
		logger:    logger,
		timelines: make(map[string]*timeline.Store),
		states:    make(map[string]*status.Machine),
	}
}

// Open attaches the live message feed of a conversation and returns its
// timeline. Re-opening an already open conversation re-subscribes
// (last-writer-wins) with a fresh timeline.
func (e *Engine) Open(conversationID string) (*timeline.Store, error) {
	tl := timeline.New()

	e.mu.Lock()
	machine := e.states[conversationID]
	if machine == nil {
		machine = status.NewMachine(conversationID, e.bus)
		e.states[conversationID] = machine
	}
	if machine.Current() == status.Live || machine.Current() == status.Subscribing {
		_ = machine.Transition(status.Unsubscribed)
	}
	e.timelines[conversationID] = tl
	e.mu.Unlock()

	if err := machine.Transition(status.Subscribing); err != nil {
		return nil, err
	}

	err := e.reg.SubscribeMessages(conversationID, e.cfg.PageSize, registry.MessageCallbacks{
		OnSnapshot: func(newestFirst []model.Message) {
			for i := range newestFirst {
				newestFirst[i] = e.decodeMessage(newestFirst[i])
			}
			tl.Replace(newestFirst)
			if machine.Current() == status.Subscribing {
				_ = machine.Transition(status.Live)
			}
			e.publish(bus.KindTimelineReset, conversationID)
		},
		OnAdded: func(m model.Message) {
			if tl.Append(e.decodeMessage(m)) {
				e.publish(bus.KindMessageAppended, m.ID)
			}
		},
		OnModified: func(m model.Message) {
			if tl.Update(e.decodeMessage(m)) {
				e.publish(bus.KindMessageUpdated, m.ID)
			}
		},
	})
	if err != nil {
		e.mu.Lock()
		if e.timelines[conversationID] == tl {
			delete(e.timelines, conversationID)
		}
		e.mu.Unlock()
		_ = machine.Transition(status.Error)
		return nil, err
	}
	return tl, nil
}

// Close detaches a conversation's subscription and drops its timeline. Safe
// to call when the conversation is not open.
func (e *Engine) Close(conversationID string) {
	e.reg.UnsubscribeMessages(conversationID)
	e.mu.Lock()
	delete(e.timelines, conversationID)
	machine := e.states[conversationID]
	e.mu.Unlock()
	if machine != nil && machine.Current() != status.Unsubscribed {
		_ = machine.Transition(status.Unsubscribed)
	}
}

// Shutdown tears down every subscription the engine owns. Used when leaving
// the surface that owns it.
func (e *Engine) Shutdown() {
	e.reg.UnsubscribeAll()
	e.mu.Lock()
	machines := make([]*status.Machine, 0, len(e.states))
	for _, m := range e.states {
		machines = append(machines, m)
	}
	e.timelines = make(map[string]*timeline.Store)
	e.mu.Unlock()
	for _, m := range machines {
		if m.Current() != status.Unsubscribed {
			_ = m.Transition(status.Unsubscribed)
		}
	}
	e.logger.Info("engine shut down")
}

// Timeline returns the open timeline for a conversation, or nil.
func (e *Engine) Timeline(conversationID string) *timeline.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timelines[conversationID]
}

// State returns the subscription state for a conversation.
func (e *Engine) State(conversationID string) status.State {
	e.mu.Lock()
	machine := e.states[conversationID]
	e.mu.Unlock()
	if machine == nil {
		return status.Unsubscribed
	}
	return machine.Current()
}

// decodeMessage applies the lenient content decode to text bodies. On codec
// failure the raw body is kept so the message still renders.
func (e *Engine) decodeMessage(m model.Message) model.Message {
	if m.Type != model.ContentText || m.Body == "" {
		return m
	}
	plain, err := e.codec.DecodeLenient(m.Body)
	if err != nil {
		e.logger.Warn("undecodable message body, keeping raw",
			zap.String("message_id", m.ID), zap.Error(err))
		return m
	}
	m.Body = plain
	return m
}

func (e *Engine) publish(kind string, payload any) {
	if e.bus != nil {
		e.bus.Publish(bus.Now(kind, payload))
	}
}

// bounded derives the context for a remote call in the send or page-fetch
// path.
func (e *Engine) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.RemoteTimeout())
}

// remoteErr folds a remote failure into the error taxonomy.
func remoteErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, model.ErrTimeout)
	}
	return &model.RemoteError{Op: op, Err: err}
}
