package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/events"
)

// EventHandler consumes dispatched domain events in the worker process.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev events.Event) error
}

// Mux wires task handlers onto an asynq ServeMux.
type Mux struct {
	Email  common.EmailSender
	Events EventHandler
	Log    zerolog.Logger
}

// Build returns the asynq handler mux.
func (m Mux) Build() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailSend, m.handleEmail)
	mux.HandleFunc(TypeEventDispatch, m.handleEvent)
	return mux
}

func (m Mux) handleEmail(_ context.Context, task *asynq.Task) error {
	var p EmailPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("tasks: decode email payload: %w", err)
	}
	if m.Email == nil {
		m.Log.Warn().Str("to", p.To).Msg("email sender not configured, dropping email")
		return nil
	}
	if err := m.Email.Send(p.To, p.Subject, p.Body); err != nil {
		return fmt.Errorf("tasks: send email: %w", err)
	}
	m.Log.Info().Str("to", p.To).Str("subject", p.Subject).Msg("email sent")
	return nil
}

func (m Mux) handleEvent(ctx context.Context, task *asynq.Task) error {
	var ev events.Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return fmt.Errorf("tasks: decode event: %w", err)
	}
	if m.Events == nil {
		return nil
	}
	if err := m.Events.HandleEvent(ctx, ev); err != nil {
		return fmt.Errorf("tasks: handle %s: %w", ev.Topic, err)
	}
	return nil
}
