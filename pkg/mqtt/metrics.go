package mqtt

// Metrics receives connectivity and traffic observations from the
// consumer. A nil Metrics disables collection.
type Metrics interface {
	// Connected is called after every successful (re)connect.
	Connected()

	// ConnectionLost is called when the broker connection drops.
	ConnectionLost()

	// ObserveMessage is called for every telemetry message routed into
	// the buffer.
	ObserveMessage()
}
