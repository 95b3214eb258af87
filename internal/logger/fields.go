package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that log
// aggregation can correlate events across the ingest, storage, and fan-out
// layers.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Request handling
	KeyRequestID = "request_id"
	KeyClientIP  = "client_ip"
	KeyMethod    = "method"
	KeyPath      = "path"
	KeyStatus    = "status"

	// Principals
	KeyUserID   = "user_id"
	KeyUsername = "username"
	KeyRoles    = "roles"

	// Domain entities
	KeyVesselID      = "vessel_id"
	KeyVesselVersion = "vessel_version"
	KeyFlightID      = "flight_id"
	KeyPartIndex     = "part_index"
	KeySeriesIndex   = "series_index"
	KeyCommandID     = "command_id"
	KeyCommandType   = "command_type"
	KeyCommandState  = "command_state"

	// Ingestion pipeline
	KeyTopic      = "topic"
	KeySamples    = "samples"
	KeySeries     = "series"
	KeyRecords    = "records"
	KeyResolution = "resolution"

	// Fan-out
	KeyRoom    = "room"
	KeyEvent   = "event"
	KeyClients = "clients"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyAttempt    = "attempt"
	KeyCollection = "collection"
)

// Typed attribute constructors. Prefer these over raw key/value pairs for
// the hot-path log sites so key names stay uniform.

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

func RequestID(id string) slog.Attr { return slog.String(KeyRequestID, id) }

func UserID(id string) slog.Attr { return slog.String(KeyUserID, id) }

func VesselID(id string) slog.Attr { return slog.String(KeyVesselID, id) }

func FlightID(id string) slog.Attr { return slog.String(KeyFlightID, id) }

func VesselVersion(v int) slog.Attr { return slog.Int(KeyVesselVersion, v) }

func PartIndex(i int) slog.Attr { return slog.Int(KeyPartIndex, i) }

func SeriesIndex(i int) slog.Attr { return slog.Int(KeySeriesIndex, i) }

func CommandID(id string) slog.Attr { return slog.String(KeyCommandID, id) }

func CommandType(t string) slog.Attr { return slog.String(KeyCommandType, t) }

func Topic(t string) slog.Attr { return slog.String(KeyTopic, t) }

func Samples(n int) slog.Attr { return slog.Int(KeySamples, n) }

func Records(n int) slog.Attr { return slog.Int(KeyRecords, n) }

func Collection(name string) slog.Attr { return slog.String(KeyCollection, name) }

func Room(r string) slog.Attr { return slog.String(KeyRoom, r) }

func Event(e string) slog.Attr { return slog.String(KeyEvent, e) }

func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
