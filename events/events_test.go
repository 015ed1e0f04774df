package events_test

import (
	"testing"

	"github.com/jrsteele09/go-session-guard/events"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_PublishReachesSubscribers(t *testing.T) {
	b := events.NewBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(events.Event{Type: events.SessionInvalid, Redirect: "/login?session_expired=true"})

	ev := <-ch1
	require.Equal(t, events.SessionInvalid, ev.Type)
	require.False(t, ev.At.IsZero())
	ev = <-ch2
	require.Equal(t, "/login?session_expired=true", ev.Redirect)
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := events.NewBroadcaster()
	ch, unsub := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	unsub()
	unsub()
	require.Equal(t, 0, b.Subscribers())
	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe must not panic on the closed channel.
	b.Publish(events.Event{Type: events.SessionRefreshed})
}

func TestBroadcaster_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	b := events.NewBroadcaster(events.WithBufferSize(1))
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Publish(events.Event{Type: events.SessionRefreshed})
	b.Publish(events.Event{Type: events.SessionInvalid})

	require.Len(t, ch, 1)
	require.Equal(t, events.SessionRefreshed, (<-ch).Type)

	last, ok := b.Last()
	require.True(t, ok)
	require.Equal(t, events.SessionInvalid, last.Type)
}

func TestBroadcaster_SubscribeReplaysLastEvent(t *testing.T) {
	b := events.NewBroadcaster()
	b.Publish(events.Event{Type: events.SessionInvalid, Redirect: "/login?session_expired=true"})

	ch, unsub := b.Subscribe(events.SessionInvalid)
	defer unsub()
	require.Len(t, ch, 1)
	ev := <-ch
	require.Equal(t, "/login?session_expired=true", ev.Redirect)

	plain, unsubPlain := b.Subscribe()
	defer unsubPlain()
	require.Empty(t, plain)
}

func TestBroadcaster_SubscribeSkipsOtherLastEvent(t *testing.T) {
	b := events.NewBroadcaster()
	b.Publish(events.Event{Type: events.SessionRefreshed})

	ch, unsub := b.Subscribe(events.SessionInvalid)
	defer unsub()
	require.Empty(t, ch)
}
