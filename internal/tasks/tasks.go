// Package tasks defines the background jobs carried by asynq and the
// helpers to enqueue and serve them.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/illusia-ry-organization/illusia-ry/internal/events"
)

// Task type names registered on the asynq mux.
const (
	TypeEmailSend     = "email:send"
	TypeEventDispatch = "event:dispatch"
)

// EmailPayload is the body of an email:send task.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewEmailTask builds an email:send task.
func NewEmailTask(p EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("tasks: encode email payload: %w", err)
	}
	return asynq.NewTask(TypeEmailSend, data, asynq.MaxRetry(5)), nil
}

// NewEventDispatchTask builds an event:dispatch task carrying a persisted
// domain event.
func NewEventDispatchTask(ev events.Event) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("tasks: encode event: %w", err)
	}
	return asynq.NewTask(TypeEventDispatch, data, asynq.MaxRetry(3)), nil
}
