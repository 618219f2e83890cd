package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// drain collects events until the client channel closes.
func drain(t *testing.T, c *Client) []SSEEvent {
	t.Helper()
	var got []SSEEvent
	timeout := time.After(waitFor)
	for {
		select {
		case e, ok := <-c.Events:
			if !ok {
				return got
			}
			got = append(got, e)
		case <-timeout:
			t.Fatalf("client channel still open after %v, got %d events", waitFor, len(got))
			return got
		}
	}
}

func broadcasterFor(h *StreamHub, sessionID string) *SessionBroadcaster {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.broadcasters[sessionID]
}

func recordEvent(i int) SSEEvent {
	return NewRecordEvent(RecordEvent{Index: i, Description: "Coffee", Amount: 4.5, Date: "2024-01-02", Status: RecordImported})
}

func TestStreamHub_CommitStreamEndsAfterComplete(t *testing.T) {
	hub := NewStreamHub()
	client := hub.Register(context.Background(), "imp-1")

	hub.Broadcast("imp-1", NewProgressEvent(ProgressEvent{SessionID: "imp-1", Stage: StageCommitting, Processed: 0, Total: 2}))
	hub.Broadcast("imp-1", recordEvent(0))
	hub.Broadcast("imp-1", recordEvent(1))
	hub.Broadcast("imp-1", NewCompleteEvent(nil))

	got := drain(t, client)

	types := make([]EventType, len(got))
	for i, e := range got {
		types[i] = e.Type
	}
	assert.Equal(t, []EventType{EventTypeProgress, EventTypeRecord, EventTypeRecord, EventTypeComplete}, types)

	r, ok := got[2].RecordData()
	require.True(t, ok)
	assert.Equal(t, 1, r.Index)

	b := broadcasterFor(hub, "imp-1")
	require.NotNil(t, b)
	assert.True(t, b.Stopped())
}

func TestStreamHub_ErrorEventEndsStream(t *testing.T) {
	hub := NewStreamHub()
	client := hub.Register(context.Background(), "imp-err")

	hub.Broadcast("imp-err", NewErrorEvent(ErrorEvent{Message: "store unavailable", SessionID: "imp-err"}))

	got := drain(t, client)
	require.Len(t, got, 1)
	e, ok := got[0].ErrorData()
	require.True(t, ok)
	assert.Equal(t, "store unavailable", e.Message)
}

func TestStreamHub_RegisterReplacesStoppedBroadcaster(t *testing.T) {
	hub := NewStreamHub()
	first := hub.Register(context.Background(), "imp-2")
	hub.Broadcast("imp-2", NewCompleteEvent(nil))
	drain(t, first)

	stopped := broadcasterFor(hub, "imp-2")
	require.True(t, stopped.Stopped())

	second := hub.Register(context.Background(), "imp-2")
	fresh := broadcasterFor(hub, "imp-2")
	assert.NotSame(t, stopped, fresh)
	assert.False(t, fresh.Stopped())

	// The first client is gone already; unregistering it must not end the new stream.
	hub.Unregister("imp-2", first)
	assert.True(t, hub.IsRunning("imp-2"))

	hub.Broadcast("imp-2", recordEvent(7))
	hub.Broadcast("imp-2", NewCompleteEvent(nil))
	got := drain(t, second)
	require.Len(t, got, 2)
	r, _ := got[0].RecordData()
	assert.Equal(t, 7, r.Index)
}

func TestStreamHub_BroadcastWithoutSubscribersIsDropped(t *testing.T) {
	hub := NewStreamHub()

	hub.Broadcast("imp-3", recordEvent(0))
	assert.False(t, hub.IsRunning("imp-3"))

	client := hub.Register(context.Background(), "imp-3")
	hub.Broadcast("imp-3", NewCompleteEvent(nil))

	got := drain(t, client)
	require.Len(t, got, 1)
	assert.Equal(t, EventTypeComplete, got[0].Type)
}

func TestStreamHub_LastUnregisterRemovesBroadcaster(t *testing.T) {
	hub := NewStreamHub()
	a := hub.Register(context.Background(), "imp-4")
	b := hub.Register(context.Background(), "imp-4")

	hub.Unregister("imp-4", a)
	assert.True(t, hub.IsRunning("imp-4"))
	_, open := <-a.Events
	assert.False(t, open)

	hub.Unregister("imp-4", b)
	assert.False(t, hub.IsRunning("imp-4"))
	_, open = <-b.Events
	assert.False(t, open)

	assert.NotPanics(t, func() { hub.Unregister("imp-4", b) })
}

func TestStreamHub_ContextCancellationStopsBroadcaster(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewStreamHub()
	client := hub.Register(ctx, "imp-5")

	cancel()

	assert.Empty(t, drain(t, client))
	assert.True(t, broadcasterFor(hub, "imp-5").Stopped())
}

func TestSessionBroadcaster_BroadcastAfterStop(t *testing.T) {
	b := NewSessionBroadcaster(context.Background())
	b.Register(NewClient())
	b.Stop()

	assert.Zero(t, b.ClientCount())
	assert.NotPanics(t, func() {
		b.Broadcast(recordEvent(0))
		b.Broadcast(NewCompleteEvent(nil))
	})
	assert.Empty(t, b.events)
}

func TestSessionBroadcaster_FullQueueDropsProgress(t *testing.T) {
	b := NewSessionBroadcaster(context.Background())
	defer b.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcasterBuffer+10; i++ {
			b.Broadcast(recordEvent(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Broadcast blocked on a full queue")
	}
	assert.Len(t, b.events, broadcasterBuffer)
}

func TestStreamHub_ConcurrentClients(t *testing.T) {
	hub := NewStreamHub()
	const n = 8

	clients := make([]*Client, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i] = hub.Register(context.Background(), "imp-6")
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, broadcasterFor(hub, "imp-6").ClientCount())

	hub.Broadcast("imp-6", recordEvent(0))
	hub.Broadcast("imp-6", NewCompleteEvent(nil))

	for i, c := range clients {
		got := drain(t, c)
		assert.Len(t, got, 2, "client %d", i)
	}
}
