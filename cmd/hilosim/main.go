// hilosim runs the sync engine against the in-memory remote and plays a
// short two-user exchange, printing the events each side observes. Useful
// for eyeballing subscription and pagination behavior without a backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/dmartinez-dev/hilo/internal/app"
	"github.com/dmartinez-dev/hilo/internal/bus"
	"github.com/dmartinez-dev/hilo/internal/engine"
	"github.com/dmartinez-dev/hilo/internal/identity"
	"github.com/dmartinez-dev/hilo/internal/presence"
	"github.com/dmartinez-dev/hilo/internal/remote/memremote"
	"github.com/dmartinez-dev/hilo/internal/upload"
)

type side struct {
	user     identity.User
	engine   *engine.Engine
	tracker  *presence.Tracker
	bus      *bus.Bus
	fxApp    *fx.App
}

func newSide(store *memremote.Store, user identity.User) (*side, error) {
	s := &side{user: user}
	s.fxApp = fx.New(
		app.Module(app.Params{
			Store:    store,
			Identity: identity.Static{User: user},
			Uploader: upload.NewMemory(),
		}),
		fx.Populate(&s.engine, &s.tracker, &s.bus),
		fx.NopLogger,
	)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.fxApp.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *side) watch() {
	events, _ := s.bus.Subscribe("message", 64)
	go func() {
		for ev := range events {
			fmt.Printf("[%s] %s\n", s.user.ID, ev.Kind)
		}
	}()
}

func (s *side) stop(ctx context.Context) {
	if err := s.fxApp.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "stop %s: %v\n", s.user.ID, err)
	}
}

func run() error {
	ctx := context.Background()
	store := memremote.New()

	ana, err := newSide(store, identity.User{ID: "ana", DisplayName: "Ana", Email: "ana@example.com"})
	if err != nil {
		return err
	}
	defer ana.stop(ctx)

	beto, err := newSide(store, identity.User{ID: "beto", DisplayName: "Beto", Email: "beto@example.com"})
	if err != nil {
		return err
	}
	defer beto.stop(ctx)

	conv, err := ana.engine.CreateDirectConversation(ctx, beto.user.ID)
	if err != nil {
		return err
	}
	fmt.Printf("conversation %s created\n", conv.ID)

	ana.watch()
	beto.watch()
	if _, err := ana.engine.Open(conv.ID); err != nil {
		return err
	}
	if _, err := beto.engine.Open(conv.ID); err != nil {
		return err
	}

	lines := []string{"hola", "¿cómo estás?", "todo bien por acá"}
	for i, text := range lines {
		sender := ana
		if i%2 == 1 {
			sender = beto
		}
		if _, err := sender.engine.SendText(ctx, conv.ID, text); err != nil {
			return err
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := beto.engine.MarkRead(ctx, conv.ID); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)

	tl := beto.engine.Timeline(conv.ID)
	if tl != nil {
		fmt.Println("timeline as seen by beto:")
		for _, m := range tl.Messages() {
			fmt.Printf("  %-5s %s (read=%v)\n", m.SenderID, m.Body, m.Read)
		}
	}
	return nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
