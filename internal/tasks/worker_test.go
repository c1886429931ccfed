package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/events"
)

type recordingEvents struct {
	handled []events.Event
}

func (r *recordingEvents) HandleEvent(_ context.Context, ev events.Event) error {
	r.handled = append(r.handled, ev)
	return nil
}

func TestMuxDeliversEmail(t *testing.T) {
	sent := &common.InMemoryEmail{}
	mux := Mux{Email: sent}.Build()

	task, err := NewEmailTask(EmailPayload{To: "user@example.com", Subject: "booking approved", Body: "<p>see you</p>"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))

	require.Len(t, sent.Outbox, 1)
	require.Equal(t, "user@example.com", sent.Outbox[0].To)
	require.Equal(t, "booking approved", sent.Outbox[0].Subject)
}

func TestMuxMissingSenderDropsEmail(t *testing.T) {
	mux := Mux{}.Build()
	task, err := NewEmailTask(EmailPayload{To: "user@example.com"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
}

func TestMuxDispatchesEvent(t *testing.T) {
	rec := &recordingEvents{}
	mux := Mux{Events: rec}.Build()

	ev := events.Event{ID: uuid.New(), Topic: events.TopicBookingCreated, Payload: []byte(`{"booking_id":"b-1"}`), OccurredAt: time.Now()}
	task, err := NewEventDispatchTask(ev)
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))

	require.Len(t, rec.handled, 1)
	require.Equal(t, ev.ID, rec.handled[0].ID)
	require.Equal(t, events.TopicBookingCreated, rec.handled[0].Topic)
}
