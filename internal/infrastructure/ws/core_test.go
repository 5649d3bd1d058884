package ws

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGauge struct{ n atomic.Int64 }

func (g *countingGauge) Inc() { g.n.Add(1) }
func (g *countingGauge) Dec() { g.n.Add(-1) }

func startCore(t *testing.T) (*Core, *countingGauge) {
	t.Helper()

	gauge := &countingGauge{}
	core := NewCore(nil, logging.NewNop(), gauge)
	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-core.done
	})
	return core, gauge
}

func receive(t *testing.T, cl *Client) *WSMessage {
	t.Helper()

	select {
	case msg, ok := <-cl.Message:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestCore_BroadcastsToSubscribersOfApplication(t *testing.T) {
	core, gauge := startCore(t)

	watcher := NewClient(nil, "a", 7)
	other := NewClient(nil, "b", 8)
	core.register <- watcher
	core.register <- other

	ready := receive(t, watcher)
	assert.Equal(t, FeedReady, ready.Type)
	assert.Equal(t, FeedReady, receive(t, other).Type)

	event := &domain.Event{ID: 1, Name: "Pageview", ApplicationID: 7, CreatedAt: time.Now()}
	require.NoError(t, core.Notify(context.Background(), event))

	msg := receive(t, watcher)
	assert.Equal(t, EventRecorded, msg.Type)
	assert.EqualValues(t, 7, msg.ApplicationID)
	assert.Equal(t, "Pageview", msg.Data.(EventPayload).Name)

	select {
	case m := <-other.Message:
		t.Fatalf("unexpected message for other application: %+v", m)
	case <-time.After(50 * time.Millisecond):
	}

	assert.EqualValues(t, 2, gauge.n.Load())
}

func TestCore_UnregisterClosesClient(t *testing.T) {
	core, gauge := startCore(t)

	cl := NewClient(nil, "a", 1)
	core.register <- cl
	receive(t, cl)

	core.unregister <- cl

	select {
	case _, ok := <-cl.Message:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("client channel was not closed")
	}
	assert.Eventually(t, func() bool { return gauge.n.Load() == 0 }, time.Second, 10*time.Millisecond)
}

func TestCore_NotifyWithoutSubscribers(t *testing.T) {
	core, _ := startCore(t)

	event := &domain.Event{ID: 1, Name: "Ad Click", ApplicationID: 99}
	assert.NoError(t, core.Notify(context.Background(), event))
	assert.Equal(t, "live_feed", core.Name())
}

func TestCore_NotifyBacklogFull(t *testing.T) {
	core := NewCore(nil, logging.NewNop(), &countingGauge{})

	event := &domain.Event{ID: 1, Name: "Pageview", ApplicationID: 1}
	for range cap(core.broadcast) {
		require.NoError(t, core.Notify(context.Background(), event))
	}
	assert.ErrorIs(t, core.Notify(context.Background(), event), ErrBroadcastBacklogFull)
}

func TestFeedManager_DropsForFullClients(t *testing.T) {
	fm := NewFeedManager()
	cl := NewClient(nil, "slow", 3)
	fm.AddClient(cl)

	event := &domain.Event{ID: 1, Name: "Pageview", ApplicationID: 3}
	for range clientBuffer {
		dropped, err := fm.Broadcast(NewEventRecorded(event))
		require.NoError(t, err)
		require.Empty(t, dropped)
	}

	dropped, err := fm.Broadcast(NewEventRecorded(event))
	require.NoError(t, err)
	assert.Equal(t, []string{"slow"}, dropped)

	_, err = fm.Broadcast(NewEventRecorded(&domain.Event{ApplicationID: 4}))
	assert.ErrorIs(t, err, ErrFeedNotFound)
}

type backlogRepo struct {
	domain.EventRepository
	events []domain.Event
	err    error
}

func (r backlogRepo) ListByApplication(context.Context, int64, int) ([]domain.Event, error) {
	return r.events, r.err
}

func TestCore_QueueBacklogOldestFirst(t *testing.T) {
	now := time.Now()
	repo := backlogRepo{events: []domain.Event{
		{ID: 2, Name: "Ad Click", ApplicationID: 7, CreatedAt: now},
		{ID: 1, Name: "Pageview", ApplicationID: 7, CreatedAt: now.Add(-time.Minute)},
	}}
	core := NewCore(repo, logging.NewNop(), &countingGauge{})

	cl := NewClient(nil, "a", 7)
	core.queueBacklog(context.Background(), cl)

	first := receive(t, cl)
	assert.Equal(t, EventRecorded, first.Type)
	assert.Equal(t, "Pageview", first.Data.(EventPayload).Name)
	assert.True(t, first.Data.(EventPayload).Backlog)
	assert.Equal(t, "Ad Click", receive(t, cl).Data.(EventPayload).Name)
}

func TestCore_QueueBacklogReportsFailure(t *testing.T) {
	core := NewCore(backlogRepo{err: errors.New("db down")}, logging.NewNop(), &countingGauge{})

	cl := NewClient(nil, "a", 7)
	core.queueBacklog(context.Background(), cl)

	msg := receive(t, cl)
	assert.Equal(t, ErrorEvent, msg.Type)
	assert.EqualValues(t, 7, msg.ApplicationID)
	assert.Equal(t, "recent events are unavailable", msg.Data.(ErrorPayload).Message)
	assert.Empty(t, cl.Message)
}
