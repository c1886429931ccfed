package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illusia-ry-organization/illusia-ry/internal/events"
	"github.com/illusia-ry-organization/illusia-ry/internal/tasks"
)

// Inserter is the slice of Store the dispatcher writes through.
type Inserter interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
}

// Recipients resolves who should hear about an event. The users package
// backs this with the database.
type Recipients interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
	AdminIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Emailer queues outbound mail; tasks.Enqueuer is the production
// implementation.
type Emailer interface {
	EnqueueEmail(ctx context.Context, p tasks.EmailPayload) error
}

// Dispatcher consumes domain events and fans them out as in-app
// notifications plus optional email. It runs in the worker process.
type Dispatcher struct {
	Store        Inserter
	Recipients   Recipients
	Email        Emailer
	EmailEnabled bool
	Log          zerolog.Logger
}

type bookingEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	UserID    uuid.UUID `json:"user_id"`
	Status    string    `json:"status"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
}

type userEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Status string    `json:"status"`
}

// HandleEvent routes one persisted event to its notification strategy.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev events.Event) error {
	switch ev.Topic {
	case events.TopicBookingCreated:
		return d.bookingCreated(ctx, ev)
	case events.TopicBookingApproved, events.TopicBookingRejected, events.TopicBookingCancelled:
		return d.bookingDecided(ctx, ev)
	case events.TopicUserRegistered:
		return d.userRegistered(ctx, ev)
	case events.TopicUserStatusSet:
		return d.userStatusChanged(ctx, ev)
	default:
		d.Log.Debug().Str("topic", ev.Topic).Msg("no notification strategy for topic")
		return nil
	}
}

// bookingCreated tells every admin a new booking awaits review.
func (d *Dispatcher) bookingCreated(ctx context.Context, ev events.Event) error {
	var payload bookingEvent
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode booking event: %w", err)
	}
	admins, err := d.Recipients.AdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("notify: resolve admins: %w", err)
	}
	var joined error
	for _, adminID := range admins {
		_, err := d.Store.Insert(ctx, Notification{
			UserID:   adminID,
			Type:     ev.Topic,
			Title:    "New booking awaiting review",
			Body:     fmt.Sprintf("Booking for %s to %s needs a decision.", payload.StartDate, payload.EndDate),
			Metadata: ev.Payload,
		})
		joined = errors.Join(joined, err)
	}
	return joined
}

// bookingDecided tells the booking owner about the outcome.
func (d *Dispatcher) bookingDecided(ctx context.Context, ev events.Event) error {
	var payload bookingEvent
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode booking event: %w", err)
	}
	title := map[string]string{
		events.TopicBookingApproved:  "Your booking was approved",
		events.TopicBookingRejected:  "Your booking was rejected",
		events.TopicBookingCancelled: "Your booking was cancelled",
	}[ev.Topic]

	if _, err := d.Store.Insert(ctx, Notification{
		UserID:   payload.UserID,
		Type:     ev.Topic,
		Title:    title,
		Body:     fmt.Sprintf("Booking from %s to %s is now %s.", payload.StartDate, payload.EndDate, payload.Status),
		Metadata: ev.Payload,
	}); err != nil {
		return err
	}
	return d.email(ctx, payload.UserID, title,
		fmt.Sprintf("<p>Your booking from %s to %s is now <b>%s</b>.</p>", payload.StartDate, payload.EndDate, payload.Status))
}

// userRegistered tells admins a new account waits for approval.
func (d *Dispatcher) userRegistered(ctx context.Context, ev events.Event) error {
	var payload userEvent
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode user event: %w", err)
	}
	admins, err := d.Recipients.AdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("notify: resolve admins: %w", err)
	}
	var joined error
	for _, adminID := range admins {
		_, err := d.Store.Insert(ctx, Notification{
			UserID:   adminID,
			Type:     ev.Topic,
			Title:    "New user registration",
			Body:     fmt.Sprintf("%s is waiting for account approval.", payload.Email),
			Metadata: ev.Payload,
		})
		joined = errors.Join(joined, err)
	}
	return joined
}

// userStatusChanged tells the affected user their account status moved.
func (d *Dispatcher) userStatusChanged(ctx context.Context, ev events.Event) error {
	var payload userEvent
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode user event: %w", err)
	}
	title := "Your account status changed"
	if _, err := d.Store.Insert(ctx, Notification{
		UserID:   payload.UserID,
		Type:     ev.Topic,
		Title:    title,
		Body:     fmt.Sprintf("Your account is now %s.", payload.Status),
		Metadata: ev.Payload,
	}); err != nil {
		return err
	}
	return d.email(ctx, payload.UserID, title,
		fmt.Sprintf("<p>Your account is now <b>%s</b>.</p>", payload.Status))
}

func (d *Dispatcher) email(ctx context.Context, userID uuid.UUID, subject, body string) error {
	if !d.EmailEnabled || d.Email == nil {
		return nil
	}
	addr, err := d.Recipients.EmailFor(ctx, userID)
	if err != nil || addr == "" {
		d.Log.Warn().Err(err).Str("user_id", userID.String()).Msg("no email address for user")
		return nil
	}
	return d.Email.EnqueueEmail(ctx, tasks.EmailPayload{To: addr, Subject: subject, Body: body})
}
