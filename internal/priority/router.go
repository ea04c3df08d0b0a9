// Package priority maps event classes to broker queues and AMQP message
// priorities, generalized from a single three-tier Channel/Priority pair
// to a fixed event_type routing table.
package priority

import "github.com/notifyhub/pipeline/internal/domain"

// QueueName identifies one of the three fixed priority-bucket queues.
type QueueName string

const (
	QueueHigh   QueueName = "notifications.high"
	QueueMedium QueueName = "notifications.medium"
	QueueLow    QueueName = "notifications.low"
)

// TTL is the broker message TTL configured per queue, in milliseconds.
var TTL = map[QueueName]int64{
	QueueHigh:   3600 * 1000,      // 1 hour
	QueueMedium: 3600 * 2 * 1000,  // 2 hours
	QueueLow:    3600 * 3 * 1000,  // 3 hours
}

// MaxPriority is the queue-level x-max-priority argument shared by all
// three queues.
const MaxPriority = 5

// Levels mirrors PriorityLevels.from_max_priority(5): min=1,
// avg=(1+max)//2, max=max.
type Levels struct {
	Min int
	Avg int
	Max int
}

// FromMax derives the three named priority levels from a maximum.
func FromMax(max int) Levels {
	min := 1
	return Levels{Min: min, Avg: (max + min) / 2, Max: max}
}

var levels = FromMax(MaxPriority)

// eventRoute is the fixed static event_type -> (queue, priority) mapping.
var eventRoute = map[domain.EventType]struct {
	queue    QueueName
	priority int
}{
	domain.EventUserRegistration: {QueueHigh, levels.Max},
	domain.EventNewMovie:         {QueueLow, levels.Min},
	domain.EventCustom:           {QueueMedium, levels.Avg},
}

// defaultRoute is returned for any event_type absent from the table; it
// matches EventCustom's own entry, so both land on MEDIUM/avg.
var defaultRoute = struct {
	queue    QueueName
	priority int
}{QueueMedium, levels.Avg}

// Route returns the queue and AMQP message priority for an event_type.
// Unknown event types default to the MEDIUM bucket at the average priority.
func Route(eventType domain.EventType) (QueueName, int) {
	if r, ok := eventRoute[eventType]; ok {
		return r.queue, r.priority
	}
	return defaultRoute.queue, defaultRoute.priority
}

// AllQueues lists the three fixed queues in declaration order, used by
// the broker's topology setup and by the Repeater's per-queue DLQ drain.
func AllQueues() []QueueName {
	return []QueueName{QueueHigh, QueueMedium, QueueLow}
}
