package monitoring

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "studynotify"

// Options control monitoring module configuration.
type Options struct {
	// Namespace prefixes every engine metric. Defaults to "studynotify".
	Namespace string
	// ConstLabels are attached to every engine metric, e.g. a deployment name.
	ConstLabels prometheus.Labels
	// DisableGoCollector and DisableProcessCollector keep runtime metrics out of the
	// registry, which keeps test expositions small.
	DisableGoCollector      bool
	DisableProcessCollector bool
}

// Module owns the engine's Prometheus registry, the in-memory activity summary and the
// health probes. Instrumentation helpers record into the module installed with SetModule.
type Module struct {
	registry *prometheus.Registry
	metrics  *engineCollectors
	stats    *statStore
	health   *HealthManager
}

// NewModule constructs a monitoring module with its own Prometheus registry.
func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	registry := prometheus.NewRegistry()

	var runtime []prometheus.Collector
	if !opts.DisableGoCollector {
		runtime = append(runtime, collectors.NewGoCollector())
	}
	if !opts.DisableProcessCollector {
		runtime = append(runtime, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	for _, collector := range runtime {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("monitoring: register runtime collector: %w", err)
		}
	}

	var engineRegisterer prometheus.Registerer = registry
	if len(opts.ConstLabels) > 0 {
		engineRegisterer = prometheus.WrapRegistererWith(opts.ConstLabels, registry)
	}

	metrics := newCollectors(namespace)
	for _, collector := range metrics.all() {
		if err := engineRegisterer.Register(collector); err != nil {
			return nil, fmt.Errorf("monitoring: register engine collector: %w", err)
		}
	}

	return &Module{
		registry: registry,
		metrics:  metrics,
		stats:    newStatStore(),
		health:   NewHealthManager(),
	}, nil
}

// Handler serves the Prometheus exposition for this module and counts its own scrapes.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:          m.registry,
		EnableOpenMetrics: true,
	}))
}

// Summary returns the activity snapshot recorded by this module.
func (m *Module) Summary() Summary {
	if m == nil || m.stats == nil {
		return Summary{GeneratedAt: time.Now()}
	}
	return m.stats.summary()
}

// Health exposes the liveness and readiness probes.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var active atomic.Pointer[Module]

// SetModule installs the module that instrumentation helpers record into. Nil is ignored.
func SetModule(module *Module) {
	if module == nil {
		return
	}
	active.Store(module)
}

func ensureModule() *Module {
	return active.Load()
}
