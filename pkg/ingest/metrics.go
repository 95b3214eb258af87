package ingest

import "time"

// Metrics receives ingestion buffer observations. A nil Metrics disables
// collection with zero overhead; implementations must be safe for
// concurrent use.
type Metrics interface {
	// ObserveSubmit counts one payload accepted into the buffer.
	ObserveSubmit()

	// ObserveFlush records one completed flush with the number of
	// measurement records written and the time the flush took.
	ObserveFlush(records int, duration time.Duration)

	// ObserveDrop counts one payload or batch dropped before storage.
	// Reason is a low-cardinality label such as "unknown_flight",
	// "unknown_series" or "undecodable".
	ObserveDrop(reason string)
}
