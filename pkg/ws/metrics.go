package ws

// Metrics receives WebSocket hub observations. A nil Metrics disables
// collection with zero overhead; implementations must be safe for
// concurrent use.
type Metrics interface {
	// ClientConnected counts one accepted connection.
	ClientConnected()

	// ClientDisconnected counts one closed connection.
	ClientDisconnected()

	// ObserveBroadcast records one event frame fanned out to a room,
	// with the number of clients it reached.
	ObserveBroadcast(clients int)
}
