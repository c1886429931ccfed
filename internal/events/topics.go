package events

// Topic constants for the domain events emitted by the platform.
const (
	TopicBookingCreated   = "booking.created"
	TopicBookingApproved  = "booking.approved"
	TopicBookingRejected  = "booking.rejected"
	TopicBookingCancelled = "booking.cancelled"
	TopicUserRegistered   = "user.registered"
	TopicUserStatusSet    = "user.status_changed"
)

// DefaultTopics returns the canonical list of topics that carry
// notifications.
func DefaultTopics() []string {
	return []string{
		TopicBookingCreated,
		TopicBookingApproved,
		TopicBookingRejected,
		TopicBookingCancelled,
		TopicUserRegistered,
		TopicUserStatusSet,
	}
}
