package obs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nugget/mould/internal/mould"
)

var itemsProcessedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "mould_items_processed_total",
	Help: "count of Item events folded into an interaction's accumulator",
})

var repliesSentCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "mould_replies_sent_total",
	Help: "count of Next events carrying a fold reply",
})

var interactionsTotalCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mould_interactions_total",
	Help: "count of interactions by terminal outcome",
}, []string{"outcome"})

var requestsSentCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mould_requests_sent_total",
	Help: "count of Request events sent, labeled by service and action",
}, []string{"service", "action"})

// MetricsRecorder implements interaction.Recorder by incrementing
// package-level Prometheus counters registered with the default
// registry. The zero value is ready to use; all methods tolerate a nil
// receiver the same way Bus.Publish does.
type MetricsRecorder struct{}

// NewMetricsRecorder returns a Recorder backed by Prometheus counters.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

func (m *MetricsRecorder) RequestSent(req mould.InteractionRequest) {
	if m == nil {
		return
	}
	requestsSentCounter.WithLabelValues(req.Service, req.Action).Inc()
}

func (m *MetricsRecorder) ItemReceived() {
	if m == nil {
		return
	}
	itemsProcessedCounter.Inc()
}

func (m *MetricsRecorder) ReplySent() {
	if m == nil {
		return
	}
	repliesSentCounter.Inc()
}

func (m *MetricsRecorder) Finished(outcome string) {
	if m == nil {
		return
	}
	interactionsTotalCounter.WithLabelValues(outcome).Inc()
}

// ServeMetricsServer starts an HTTP server exposing the default
// Prometheus registry at /metrics on addr and returns immediately. The
// counters registered via promauto above (and anything else on the
// default registry) become scrapeable as soon as this returns. Call the
// returned shutdown func to stop the server gracefully, mirroring the
// teacher's Server/Shutdown(ctx) pairing for long-running HTTP surfaces.
func ServeMetricsServer(addr string, logger *slog.Logger) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}
	}()

	return srv.Shutdown
}

// BusRecorder implements interaction.Recorder by publishing lifecycle
// events to a Bus, for CLI progress output. It does not itself track
// counts; pair it with a MetricsRecorder (via a MultiRecorder, as
// cmd/mouldcli does) when both are wanted.
type BusRecorder struct {
	bus     *Bus
	request mould.InteractionRequest
}

// NewBusRecorder returns a Recorder that publishes to bus. bus may be
// nil, in which case every call is a no-op (Bus.Publish is itself
// nil-safe).
func NewBusRecorder(bus *Bus) *BusRecorder {
	return &BusRecorder{bus: bus}
}

func (r *BusRecorder) RequestSent(req mould.InteractionRequest) {
	r.request = req
	r.bus.Publish(Event{
		Source: SourceInteraction,
		Kind:   KindRequestSent,
		Data:   map[string]any{"service": req.Service, "action": req.Action},
	})
}

func (r *BusRecorder) ItemReceived() {
	r.bus.Publish(Event{Source: SourceInteraction, Kind: KindItemReceived})
}

func (r *BusRecorder) ReplySent() {
	r.bus.Publish(Event{Source: SourceInteraction, Kind: KindReplySent})
}

func (r *BusRecorder) Finished(outcome string) {
	r.bus.Publish(Event{
		Source: SourceInteraction,
		Kind:   KindFinished,
		Data:   map[string]any{"outcome": outcome, "service": r.request.Service, "action": r.request.Action},
	})
}

// recorder is the subset of interaction.Recorder that MultiRecorder fans
// out to. Declared locally (rather than imported) to avoid an import
// cycle between obs and interaction.
type recorder interface {
	RequestSent(req mould.InteractionRequest)
	ItemReceived()
	ReplySent()
	Finished(outcome string)
}

// MultiRecorder fans a single Recorder call out to several, e.g. a
// MetricsRecorder for scraping plus a BusRecorder for CLI progress
// output.
type MultiRecorder struct {
	recorders []recorder
}

// NewMultiRecorder returns a Recorder that forwards every call to each of rs in order.
func NewMultiRecorder(rs ...recorder) *MultiRecorder {
	return &MultiRecorder{recorders: rs}
}

func (m *MultiRecorder) RequestSent(req mould.InteractionRequest) {
	for _, r := range m.recorders {
		r.RequestSent(req)
	}
}

func (m *MultiRecorder) ItemReceived() {
	for _, r := range m.recorders {
		r.ItemReceived()
	}
}

func (m *MultiRecorder) ReplySent() {
	for _, r := range m.recorders {
		r.ReplySent()
	}
}

func (m *MultiRecorder) Finished(outcome string) {
	for _, r := range m.recorders {
		r.Finished(outcome)
	}
}
