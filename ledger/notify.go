// notify.go - Fire-and-forget change notifications.
//
// Dashboards subscribe to refresh after successful allocate, deallocate
// and refund operations. Delivery is best-effort and must never block or
// fail a ledger operation; a nil Notifier on the engine disables it.
package ledger

// EventType identifies what changed.
type EventType string

const (
	EventCreditCreated EventType = "credit_created"
	EventAllocated     EventType = "allocated"
	EventDeallocated   EventType = "deallocated"
	EventRefunded      EventType = "refunded"
)

// Event describes a committed change.
type Event struct {
	Type         EventType
	OrgID        OrgID
	ClientID     ClientID
	CreditID     CreditID
	AllocationID AllocationID
}

// Notifier receives events after the causing transaction has committed.
// Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// ChannelNotifier fans events out to a buffered channel, dropping events
// when the consumer falls behind.
type ChannelNotifier struct {
	ch chan Event
}

func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{ch: make(chan Event, buffer)}
}

// Events returns the receive side for consumers.
func (n *ChannelNotifier) Events() <-chan Event { return n.ch }

// Notify enqueues the event, dropping it if the buffer is full.
func (n *ChannelNotifier) Notify(e Event) {
	select {
	case n.ch <- e:
	default:
	}
}
