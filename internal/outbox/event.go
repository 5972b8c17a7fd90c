package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Events announced by the scheduling engine.
const (
	EventAppointmentScheduled = "gabinet.appointment.scheduled.v1"
	EventAppointmentCancelled = "gabinet.appointment.cancelled.v1"
	EventAppointmentCompleted = "gabinet.appointment.completed.v1"
	EventCalendarSyncRequest  = "gabinet.calendar.sync_requested.v1"
)
