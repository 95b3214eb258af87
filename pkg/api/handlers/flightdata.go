package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/api/middleware"
	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/ingest"
	"github.com/avionyx/flightd/pkg/models"
)

// maxReportSize bounds a bulk binary report body.
const maxReportSize = 16 << 20

// FlightDataHandler serves telemetry queries and the bulk report upload.
type FlightDataHandler struct {
	stores Stores
	bus    *events.Bus
}

// NewFlightDataHandler creates a new FlightDataHandler.
func NewFlightDataHandler(stores Stores, bus *events.Bus) *FlightDataHandler {
	return &FlightDataHandler{stores: stores, bus: bus}
}

// parseTimeRange reads the start and end query parameters as RFC 3339.
func parseTimeRange(r *http.Request) (start, end time.Time, ok bool) {
	var err error
	if start, err = time.Parse(time.RFC3339, r.URL.Query().Get("start")); err != nil {
		return start, end, false
	}
	if end, err = time.Parse(time.RFC3339, r.URL.Query().Get("end")); err != nil {
		return start, end, false
	}
	return start, end, true
}

// Get handles GET /v1/flights/{flightId}/data. The series is addressed by
// part id and series name; a part or series the flight never measured
// yields an empty result, not an error. Without a resolution the raw
// records are returned, otherwise the server-side rollup at that bucket
// size.
func (h *FlightDataHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	flight, level, err := h.stores.flightWithLevel(r.Context(), claims, chi.URLParam(r, "flightId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelRead); err != nil {
		writeError(w, err)
		return
	}

	start, end, ok := parseTimeRange(r)
	if !ok {
		BadRequest(w, "start and end must be RFC 3339 timestamps")
		return
	}

	partID := r.URL.Query().Get("vessel_part")
	seriesName := r.URL.Query().Get("series_name")

	partIndex, seriesIndex, found := resolveSeries(flight, partID, seriesName)
	if !found {
		WriteJSONOK(w, []any{})
		return
	}

	if res := r.URL.Query().Get("resolution"); res != "" {
		resolution := models.Resolution(res)
		if !resolution.Valid() {
			BadRequest(w, res+" is not a supported resolution")
			return
		}
		records, err := h.stores.Measurements.Aggregate(r.Context(), flight.ID, partIndex, seriesIndex, start, end, resolution)
		if err != nil {
			writeError(w, err)
			return
		}
		if records == nil {
			records = []*models.AggregatedRecord{}
		}
		WriteJSONOK(w, records)
		return
	}

	records, err := h.stores.Measurements.Range(r.Context(), flight.ID, partIndex, seriesIndex, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []*models.MeasurementRecord{}
	}
	WriteJSONOK(w, records)
}

// resolveSeries maps a (part id, series name) pair onto the compact index
// pair telemetry is stored under.
func resolveSeries(flight *models.Flight, partID, seriesName string) (partIndex, seriesIndex int, ok bool) {
	partIndex = -1
	for i, id := range flight.MeasuredPartIDs {
		if id == partID {
			partIndex = i
			break
		}
	}
	if partIndex < 0 {
		return 0, 0, false
	}
	for j, desc := range flight.MeasuredParts[partID] {
		if desc.Name == seriesName {
			return partIndex, j, true
		}
	}
	return 0, 0, false
}

// ReportBinary handles POST /v1/flights/{flightId}/data/binary: the bulk
// upload path vessels use for telemetry recorded while offline.
func (h *FlightDataHandler) ReportBinary(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if err := requireVessel(claims); err != nil {
		writeError(w, err)
		return
	}

	flight, level, err := h.stores.flightWithLevel(r.Context(), claims, chi.URLParam(r, "flightId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelWrite); err != nil {
		writeError(w, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxReportSize))
	if err != nil {
		BadRequest(w, "Failed to read report body")
		return
	}

	stored, err := ingest.StoreReport(r.Context(), h.stores.Flights, h.stores.Measurements, h.bus, flight, data)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "binary report stored",
		logger.FlightID(flight.ID),
		logger.Records(stored))
	WriteJSONOK(w, map[string]int{"records": stored})
}
