package mqtt

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventConnected reports that the broker accepted the connection.
	EventConnected EventKind = iota + 1

	// EventPublish carries an inbound application message.
	EventPublish

	// EventSubAck reports the outcome of a Subscribe request.
	EventSubAck
)

// String returns the event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventPublish:
		return "publish"
	case EventSubAck:
		return "suback"
	default:
		return "unknown"
	}
}

// Event is one step of the protocol as seen by Poll.
//
// Which fields are set depends on Kind:
//   - EventPublish: Topic, Payload, MessageID, QoS, Duplicate
//   - EventSubAck: Topic, RequestID, and Err if the broker or the network
//     rejected the subscription
type Event struct {
	Kind      EventKind
	Topic     string
	Payload   []byte
	MessageID uint16
	QoS       byte
	Duplicate bool
	RequestID uint64
	Err       error

	ack func()
}

// NewPublishEvent builds an inbound publish event. ack is invoked by
// Event.Ack and may be nil.
func NewPublishEvent(topic string, payload []byte, messageID uint16, ack func()) Event {
	return Event{
		Kind:      EventPublish,
		Topic:     topic,
		Payload:   payload,
		MessageID: messageID,
		QoS:       qosAtLeastOnce,
		ack:       ack,
	}
}

// Ack acknowledges an inbound publish to the broker.
//
// For QoS 1 messages this sends the PUBACK; until then the broker treats
// the message as in flight and redelivers it to a new session.
// Ack is a no-op for every other event kind.
func (e Event) Ack() {
	if e.ack != nil {
		e.ack()
	}
}
