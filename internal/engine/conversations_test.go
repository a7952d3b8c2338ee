package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmartinez-dev/hilo/internal/model"
)

func TestCreateDirectConversation(t *testing.T) {
	f := newFixture(t, alice())

	conv, err := f.engine.CreateDirectConversation(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if conv.ID == "" {
		t.Fatal("no server-assigned conversation id")
	}
	if conv.Group {
		t.Error("direct conversation flagged as group")
	}
	if len(conv.ParticipantIDs) != 2 {
		t.Errorf("participants = %v", conv.ParticipantIDs)
	}

	// Per-participant index records fanned out.
	for _, uid := range []string{"alice", "bob"} {
		doc, ok, err := f.store.Get(context.Background(), userChatsPath(uid), conv.ID)
		if err != nil || !ok {
			t.Fatalf("index record for %s: ok=%v err=%v", uid, ok, err)
		}
		if doc.Fields["chatId"] != conv.ID {
			t.Errorf("index record chatId = %v", doc.Fields["chatId"])
		}
	}
}

func TestCreateGroupConversationRequiresName(t *testing.T) {
	f := newFixture(t, alice())
	if _, err := f.engine.CreateGroupConversation(context.Background(), "", []string{"bob", "carol"}); err == nil {
		t.Error("nameless group accepted")
	}
}

func TestCreateGroupConversationIncludesCreator(t *testing.T) {
	f := newFixture(t, alice())
	conv, err := f.engine.CreateGroupConversation(context.Background(), "equipo", []string{"bob", "carol", "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if !conv.Group || conv.Name != "equipo" {
		t.Errorf("conv = %+v", conv)
	}
	if len(conv.ParticipantIDs) != 3 {
		t.Errorf("participants = %v, want alice deduplicated", conv.ParticipantIDs)
	}
}

func TestCreateConversationPartialFanOut(t *testing.T) {
	f := newFixture(t, alice())

	// Conversation write succeeds, fan-out fails: the conversation exists
	// and the failure surfaces as an aggregate error.
	conv, err := f.engine.CreateDirectConversation(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	_ = conv

	f.store.SetWriteError(errors.New("quota"))
	conv2, err := f.engine.CreateDirectConversation(context.Background(), "carol")
	if err == nil {
		t.Fatal("creation with failing remote succeeded")
	}
	if conv2.ID != "" {
		t.Error("partial conversation exposed despite primary write failure")
	}
}

func TestConversationsListOrderedByActivity(t *testing.T) {
	f := newFixture(t, alice())
	c1 := f.createConversation(t, "bob")
	c2 := f.createConversation(t, "carol")

	if _, err := f.engine.SendText(context.Background(), c1.ID, "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.SendText(context.Background(), c2.ID, "second"); err != nil {
		t.Fatal(err)
	}

	convs, err := f.engine.Conversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("conversations = %d, want 2", len(convs))
	}
	if convs[0].ID != c2.ID || convs[1].ID != c1.ID {
		t.Errorf("order = [%s %s], want most recent first", convs[0].ID, convs[1].ID)
	}
}

func TestWatchConversationsReordersOnActivity(t *testing.T) {
	f := newFixture(t, alice())
	c1 := f.createConversation(t, "bob")
	c2 := f.createConversation(t, "carol")

	lists := make(chan []model.Conversation, 16)
	if err := f.engine.WatchConversations(func(cs []model.Conversation) { lists <- cs }); err != nil {
		t.Fatal(err)
	}
	defer f.engine.UnwatchConversations()

	<-lists // initial

	if _, err := f.engine.SendText(context.Background(), c1.ID, "hola"); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case cs := <-lists:
			if len(cs) == 2 && cs[0].ID == c1.ID {
				return // reordered as expected
			}
		case <-deadline:
			t.Fatalf("list never reordered with %s first (other: %s)", c1.ID, c2.ID)
		}
	}
}

func TestGetConversationNotFound(t *testing.T) {
	f := newFixture(t, alice())
	if _, err := f.engine.GetConversation(context.Background(), "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
