package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
	err         error
}

func (s *stubStore) InsertEvent(_ context.Context, topic string, payload []byte) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	s.lastTopic = topic
	s.lastPayload = payload
	return events.Event{ID: uuid.New(), Topic: topic, Payload: payload, OccurredAt: time.Now()}, nil
}

type captureScheduler struct {
	events []events.Event
}

func (c *captureScheduler) Schedule(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return c.err
}

func TestEmitPersistsAndFansOut(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Scheduler: scheduler, Notifiers: []events.Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), events.TopicBookingCreated, map[string]any{"booking_id": "b-1"})
	require.NoError(t, err)
	require.Equal(t, events.TopicBookingCreated, store.lastTopic)
	require.JSONEq(t, `{"booking_id":"b-1"}`, string(store.lastPayload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, ev.ID, scheduler.events[0].ID)
}

func TestEmitRequiresTopic(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), "  ", nil)
	require.Error(t, err)
}

func TestEmitNilPayloadBecomesEmptyObject(t *testing.T) {
	store := &stubStore{}
	bus := events.Bus{Store: store}

	_, err := bus.Emit(context.Background(), events.TopicUserRegistered, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(store.lastPayload))
}

func TestEmitReportsNotifierFailureButKeepsEvent(t *testing.T) {
	store := &stubStore{}
	failing := &captureNotifier{err: errors.New("smtp down")}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{failing}}

	ev, err := bus.Emit(context.Background(), events.TopicBookingApproved, nil)
	require.Error(t, err)
	require.NotEqual(t, uuid.Nil, ev.ID)
}

func TestEmitStoreFailure(t *testing.T) {
	bus := events.Bus{Store: &stubStore{err: errors.New("db down")}}
	_, err := bus.Emit(context.Background(), events.TopicBookingCreated, nil)
	require.Error(t, err)
}
