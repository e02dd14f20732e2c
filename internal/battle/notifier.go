package battle

import "log"

// Event is one outbound message to a connection.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Transport delivers events to live connections. Send must not block and
// must not call back into the engine.
type Transport interface {
	Send(connectionID string, ev Event) error
	Connected(connectionID string) bool
}

// Notifier resolves connection ids to the transport at delivery time and
// skips connections that are gone.
type Notifier struct {
	transport Transport
}

func NewNotifier(t Transport) *Notifier {
	return &Notifier{transport: t}
}

// Deliver reports whether the event was handed to the transport.
func (n *Notifier) Deliver(connectionID string, ev Event) bool {
	if n == nil || n.transport == nil || connectionID == "" {
		return false
	}
	if !n.transport.Connected(connectionID) {
		return false
	}
	if err := n.transport.Send(connectionID, ev); err != nil {
		log.Printf("[WS] Delivery of %s to %s failed: %v", ev.Type, connectionID, err)
		return false
	}
	return true
}
