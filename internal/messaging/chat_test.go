package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/domain"
	"github.com/sudo-init-do/skillbridge/internal/messaging"
	"github.com/sudo-init-do/skillbridge/internal/store"
)

type countingDispatcher struct {
	events []domain.Event
	err    error
}

func (d *countingDispatcher) Dispatch(_ context.Context, evt domain.Event) error {
	d.events = append(d.events, evt)
	return d.err
}

type chatFixture struct {
	mem      *store.Memory
	reg      *messaging.Registry
	chat     *messaging.ChatService
	sessions *messaging.Sessions
	disp     *countingDispatcher
}

func newChat(t *testing.T) chatFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mem := store.NewMemory()
	mem.PutUser(domain.User{ID: "buyer", Name: "Bea", Email: "bea@example.com"})
	mem.PutUser(domain.User{ID: "seller", Email: "sam@example.com"})
	require.NoError(t, mem.InsertOrder(context.Background(), domain.Order{
		ID: "o1", ServiceTitle: "Logo", BuyerID: "buyer", SellerID: "seller", Status: domain.StatusInProgress,
	}))
	require.NoError(t, mem.InsertOrder(context.Background(), domain.Order{
		ID: "o2", BuyerID: "stranger", SellerID: "seller", Status: domain.StatusPending,
	}))

	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	reg := messaging.NewRegistry(logger)
	disp := &countingDispatcher{}
	chat := messaging.NewChatService(mem, reg, disp, ist, logger)
	return chatFixture{
		mem:      mem,
		reg:      reg,
		chat:     chat,
		sessions: messaging.NewSessions(reg, chat, mem, 32, logger),
		disp:     disp,
	}
}

func (f chatFixture) messages(t *testing.T, orderID string) []domain.Message {
	t.Helper()
	msgs, err := f.mem.ListMessages(context.Background(), orderID)
	require.NoError(t, err)
	return msgs
}

func TestChatSendRejectsWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		sender  domain.Identity
		orderID string
		content string
		want    error
	}{
		{"stranger", stranger, "o1", "hi", apperr.ErrUnauthorized},
		{"admin cannot author", admin, "o1", "hi", apperr.ErrUnauthorized},
		{"empty", buyer, "o1", "", apperr.ErrInvalidArgument},
		{"whitespace", buyer, "o1", " \n\t ", apperr.ErrInvalidArgument},
		{"missing order", buyer, "nope", "hi", apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChat(t)
			watcher := messaging.NewSession(seller, 8)
			f.reg.Join("o1", watcher)

			_, err := f.chat.Send(ctx, tt.sender, tt.orderID, tt.content)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.messages(t, "o1"))
			assert.Empty(t, drain(t, watcher))
			assert.Empty(t, f.disp.events)
		})
	}
}

func TestChatSendPersistsOnceAndBroadcastsToEachMember(t *testing.T) {
	ctx := context.Background()
	f := newChat(t)
	a := messaging.NewSession(buyer, 8)
	b := messaging.NewSession(seller, 8)
	elsewhere := messaging.NewSession(seller, 8)
	f.reg.Join("o1", a)
	f.reg.Join("o1", b)
	f.reg.Join("o2", elsewhere)

	m, err := f.chat.Send(ctx, buyer, "o1", "  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", m.Content)

	stored := f.messages(t, "o1")
	require.Len(t, stored, 1)
	assert.Equal(t, m, stored[0])

	for _, s := range []*messaging.Session{a, b} {
		frames := drain(t, s)
		require.Len(t, frames, 1)
		assert.Equal(t, messaging.FrameNewMessage, frames[0].Type)

		var p messaging.MessagePayload
		require.NoError(t, json.Unmarshal(frames[0].Data, &p))
		assert.Equal(t, m.ID, p.MessageID)
		assert.Equal(t, "Bea", p.SenderDisplayName)
		assert.Equal(t, "hello there", p.Content)
		assert.Equal(t, m.CreatedAt.Format(time.RFC3339), p.CreatedAt)
		assert.Len(t, p.CreatedAtDisplay, len("03:04 PM"))
	}
	assert.Empty(t, drain(t, elsewhere))

	require.Len(t, f.disp.events, 1)
	assert.Equal(t, domain.EventMessageNew, f.disp.events[0].Type)
	assert.Equal(t, "buyer", f.disp.events[0].ActorID)
	assert.Equal(t, "Bea", f.disp.events[0].ActorName)
}

func TestChatSendSurvivesNotificationFailure(t *testing.T) {
	f := newChat(t)
	f.disp.err = errors.New("notifications down")

	_, err := f.chat.Send(context.Background(), seller, "o1", "on it")
	require.NoError(t, err)
	assert.Len(t, f.messages(t, "o1"), 1)
}

func TestChatDisplayNameFallsBackToEmail(t *testing.T) {
	f := newChat(t)
	s := messaging.NewSession(buyer, 8)
	f.reg.Join("o1", s)

	_, err := f.chat.Send(context.Background(), seller, "o1", "hi")
	require.NoError(t, err)

	frames := drain(t, s)
	require.Len(t, frames, 1)
	var p messaging.MessagePayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &p))
	assert.Equal(t, "sam", p.SenderDisplayName)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newChat(t)
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.mem.InsertMessage(ctx, domain.Message{ID: "m2", OrderID: "o1", SenderID: "seller", Content: "b", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, f.mem.InsertMessage(ctx, domain.Message{ID: "m1", OrderID: "o1", SenderID: "buyer", Content: "a", CreatedAt: base}))

	for _, who := range []domain.Identity{buyer, seller, admin} {
		msgs, err := f.chat.History(ctx, who, "o1")
		require.NoError(t, err)
		require.Len(t, msgs, 2, who.UserID)
		assert.Equal(t, "m1", msgs[0].ID)
	}

	denied, err := f.chat.History(ctx, stranger, "o1")
	require.NoError(t, err)
	assert.NotNil(t, denied)
	assert.Empty(t, denied)

	missing, err := f.chat.History(ctx, buyer, "nope")
	require.NoError(t, err)
	assert.Equal(t, denied, missing, "a missing order looks the same as a forbidden one")

	payloads := f.chat.Payloads(ctx, []domain.Message{{ID: "m1", SenderID: "buyer", CreatedAt: base}})
	require.Len(t, payloads, 1)
	assert.Equal(t, "01:30 PM", payloads[0].CreatedAtDisplay)
}
