package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/codec"
	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/models"
)

// DefaultFlushInterval is how long payloads accumulate before a flight's
// buffer is flushed to storage.
const DefaultFlushInterval = 500 * time.Millisecond

// flushTimeout bounds the storage work of a single flush.
const flushTimeout = 30 * time.Second

// Buffer batches raw telemetry payloads per flight and flushes them to the
// measurement store on a short interval. Batching amortizes storage writes
// when a vessel streams many series at once.
type Buffer struct {
	flights      models.FlightStore
	measurements models.MeasurementStore
	bus          *events.Bus
	interval     time.Duration
	metrics      Metrics

	mu sync.Mutex
	// pending is flight id -> part index -> series index -> raw payloads.
	pending map[string]map[int]map[int][][]byte
	// scheduled tracks flights with a flush timer armed.
	scheduled map[string]*time.Timer
	closed    bool

	wg sync.WaitGroup
}

// NewBuffer returns a buffer flushing on the given interval; zero means
// DefaultFlushInterval. A nil metrics disables instrumentation.
func NewBuffer(flights models.FlightStore, measurements models.MeasurementStore, bus *events.Bus, interval time.Duration, metrics Metrics) *Buffer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Buffer{
		flights:      flights,
		measurements: measurements,
		bus:          bus,
		interval:     interval,
		metrics:      metrics,
		pending:      make(map[string]map[int]map[int][][]byte),
		scheduled:    make(map[string]*time.Timer),
	}
}

// Submit queues one raw payload for the addressed series. The first
// payload of a flight arms its flush timer.
func (b *Buffer) Submit(flightID string, partIndex, seriesIndex int, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	parts, ok := b.pending[flightID]
	if !ok {
		parts = make(map[int]map[int][][]byte)
		b.pending[flightID] = parts
	}
	series, ok := parts[partIndex]
	if !ok {
		series = make(map[int][][]byte)
		parts[partIndex] = series
	}
	series[seriesIndex] = append(series[seriesIndex], payload)
	if b.metrics != nil {
		b.metrics.ObserveSubmit()
	}

	if _, armed := b.scheduled[flightID]; !armed {
		b.wg.Add(1)
		b.scheduled[flightID] = time.AfterFunc(b.interval, func() {
			defer b.wg.Done()
			b.flush(flightID)
		})
	}
}

// Close flushes everything still pending and waits for in-flight flushes.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	var remaining []string
	for flightID, timer := range b.scheduled {
		// Stop reports true when the callback will never run; its
		// WaitGroup slot and flush become ours.
		if timer.Stop() {
			remaining = append(remaining, flightID)
			b.wg.Done()
		}
	}
	b.mu.Unlock()

	for _, flightID := range remaining {
		b.flush(flightID)
	}
	b.wg.Wait()
}

// flush takes the flight's pending payloads and writes them out.
func (b *Buffer) flush(flightID string) {
	b.mu.Lock()
	parts := b.pending[flightID]
	delete(b.pending, flightID)
	delete(b.scheduled, flightID)
	b.mu.Unlock()
	if len(parts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	start := time.Now()

	flight, err := b.flights.Get(ctx, flightID)
	if err != nil {
		// The flight may have been deleted while payloads were queued.
		if errors.Is(err, models.ErrNotFound) {
			logger.Warn("dropping telemetry for unknown flight",
				logger.FlightID(flightID))
			if b.metrics != nil {
				b.metrics.ObserveDrop("unknown_flight")
			}
		} else {
			logger.Error("loading flight for flush",
				logger.FlightID(flightID), logger.Err(err))
		}
		return
	}

	recs := b.decodeParts(flight, parts)
	if len(recs) == 0 {
		return
	}

	if flight.TouchEnd(time.Now()) {
		if _, err := b.flights.Upsert(ctx, flight); err != nil {
			logger.Error("extending flight end",
				logger.FlightID(flightID), logger.Err(err))
		} else {
			b.bus.Publish(events.Event{
				Type:     events.TypeFlightUpdate,
				FlightID: flightID,
				Flight:   flight,
			})
		}
	}

	if err := b.measurements.InsertBatch(ctx, recs); err != nil {
		logger.Error("inserting measurement batch",
			logger.FlightID(flightID), logger.Err(err))
		if b.metrics != nil {
			b.metrics.ObserveDrop("storage_error")
		}
		return
	}

	b.bus.Publish(events.Event{
		Type:     events.TypeFlightData,
		FlightID: flightID,
		Records:  stripRaw(recs),
	})

	if b.metrics != nil {
		b.metrics.ObserveFlush(len(recs), time.Since(start))
	}

	logger.Debug("flushed telemetry batch",
		logger.FlightID(flightID),
		logger.Records(len(recs)),
		logger.DurationMs(logger.Duration(start)))
}

// decodeParts decodes the queued payloads into measurement records,
// skipping payloads that do not decode under their series shape.
func (b *Buffer) decodeParts(flight *models.Flight, parts map[int]map[int][][]byte) []*models.MeasurementRecord {
	var recs []*models.MeasurementRecord
	for partIndex, series := range parts {
		for seriesIndex, payloads := range series {
			_, desc, err := flight.Descriptor(partIndex, seriesIndex)
			if err != nil {
				logger.Warn("telemetry for unknown series",
					logger.FlightID(flight.ID),
					logger.PartIndex(partIndex),
					logger.SeriesIndex(seriesIndex))
				if b.metrics != nil {
					b.metrics.ObserveDrop("unknown_series")
				}
				continue
			}

			samples := make([]models.Sample, 0, len(payloads))
			for _, payload := range payloads {
				t, v, err := codec.Decode(desc.Type, payload)
				if err != nil {
					logger.Warn("undecodable payload",
						logger.FlightID(flight.ID),
						logger.PartIndex(partIndex),
						logger.SeriesIndex(seriesIndex),
						logger.Err(err))
					if b.metrics != nil {
						b.metrics.ObserveDrop("undecodable")
					}
					continue
				}
				samples = append(samples, models.Sample{Time: t, Value: v})
			}
			if len(samples) == 0 {
				continue
			}

			recs = append(recs, newRecord(models.MeasurementMeta{
				FlightID:    flight.ID,
				PartIndex:   partIndex,
				SeriesIndex: seriesIndex,
			}, desc.Type, samples))
		}
	}

	// Map iteration order is random; keep output deterministic.
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].Metadata, recs[j].Metadata
		if a.PartIndex != b.PartIndex {
			return a.PartIndex < b.PartIndex
		}
		return a.SeriesIndex < b.SeriesIndex
	})
	return recs
}
