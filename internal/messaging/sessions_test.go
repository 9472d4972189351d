package messaging_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/skillbridge/internal/messaging"
)

func TestJoinDeniedIsSilent(t *testing.T) {
	ctx := context.Background()
	f := newChat(t)
	s := f.sessions.Connect(stranger)

	assert.False(t, f.sessions.Join(ctx, s, "o1"))
	assert.False(t, f.sessions.Join(ctx, s, "does-not-exist"))
	assert.Empty(t, drain(t, s), "no error frame for a denied join")
	assert.Empty(t, f.reg.RoomsOf(s))
	assert.Zero(t, f.reg.RoomCount())
}

func TestJoinBroadcastsPresence(t *testing.T) {
	ctx := context.Background()
	f := newChat(t)
	a := f.sessions.Connect(buyer)
	b := f.sessions.Connect(seller)
	watcher := f.sessions.Connect(admin)

	require.True(t, f.sessions.Join(ctx, watcher, "o1"))
	require.True(t, f.sessions.Join(ctx, a, "o1"))
	require.True(t, f.sessions.Join(ctx, a, "o1"))
	require.True(t, f.sessions.Join(ctx, b, "o1"))

	assert.Equal(t, []string{
		messaging.FramePresenceJoin,
		messaging.FramePresenceJoin,
		messaging.FramePresenceJoin,
	}, frameTypes(drain(t, watcher)), "a repeated join is not re-announced")

	f.sessions.Leave(b, "o1")
	frames := drain(t, watcher)
	require.Len(t, frames, 1)
	assert.Equal(t, messaging.FramePresenceLeave, frames[0].Type)
	assert.JSONEq(t, `{"order_id":"o1","user_id":"seller"}`, string(frames[0].Data))
}

func TestSendErrorGoesOnlyToSender(t *testing.T) {
	ctx := context.Background()
	f := newChat(t)
	a := f.sessions.Connect(buyer)
	b := f.sessions.Connect(seller)
	f.sessions.Join(ctx, a, "o1")
	f.sessions.Join(ctx, b, "o1")
	drain(t, a)
	drain(t, b)

	f.sessions.SendMessage(ctx, a, "o1", "   ")

	frames := drain(t, a)
	require.Len(t, frames, 1)
	assert.Equal(t, messaging.FrameError, frames[0].Type)
	var body map[string]string
	require.NoError(t, json.Unmarshal(frames[0].Data, &body))
	assert.Equal(t, "message content must not be empty", body["error"])
	assert.Empty(t, drain(t, b))

	f.sessions.SendMessage(ctx, a, "o1", "real message")
	assert.Equal(t, []string{messaging.FrameNewMessage}, frameTypes(drain(t, a)))
	assert.Equal(t, []string{messaging.FrameNewMessage}, frameTypes(drain(t, b)))
}

func TestDisconnectCleansUpOnce(t *testing.T) {
	ctx := context.Background()
	f := newChat(t)
	s := f.sessions.Connect(seller)
	peer := f.sessions.Connect(buyer)
	require.True(t, f.sessions.Join(ctx, s, "o1"))
	require.True(t, f.sessions.Join(ctx, s, "o2"))
	require.True(t, f.sessions.Join(ctx, peer, "o1"))
	drain(t, peer)

	f.sessions.Disconnect(s)
	f.sessions.Disconnect(s)

	assert.True(t, s.Closed())
	assert.Empty(t, f.reg.RoomsOf(s))
	assert.Equal(t, 1, f.reg.RoomCount(), "o2 emptied and evicted")
	assert.Equal(t, 1, f.reg.Members("o1"))
	assert.Equal(t, []string{messaging.FramePresenceLeave}, frameTypes(drain(t, peer)))

	_, err := f.chat.Send(ctx, buyer, "o1", "still here?")
	require.NoError(t, err)
	assert.Equal(t, []string{messaging.FrameNewMessage}, frameTypes(drain(t, peer)))
}
