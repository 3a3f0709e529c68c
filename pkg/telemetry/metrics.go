package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for pack and validate runs.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	// Stage metrics
	stageDuration *prometheus.HistogramVec

	// Content metrics
	controlsProcessed  prometheus.Counter
	galleryTemplates   prometheus.Counter
	groupsFlattened    prometheus.Counter
	templatesResolved  *prometheus.CounterVec
	documentsRewritten *prometheus.CounterVec
	validationIssues   prometheus.Counter

	// Error metrics
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of runs by command and status",
			},
			[]string{"command", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a run in seconds",
				Buckets:   buckets,
			},
			[]string{"command"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of a pipeline stage in seconds",
				Buckets:   buckets,
			},
			[]string{"stage"},
		),
		controlsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "controls_processed_total",
				Help:      "Total number of control nodes normalized",
			},
		),
		galleryTemplates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gallery_templates_synthesized_total",
				Help:      "Total number of gallery template children created",
			},
		),
		groupsFlattened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "groups_flattened_total",
				Help:      "Total number of group controls flattened",
			},
		),
		templatesResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "templates_resolved_total",
				Help:      "Template references by resolution kind",
			},
			[]string{"kind"},
		),
		documentsRewritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_rewritten_total",
				Help:      "Metadata documents changed by normalization",
			},
			[]string{"path"},
		),
		validationIssues: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_issues_total",
				Help:      "Total number of schema validation issues reported",
			},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		m.runs,
		m.runDuration,
		m.stageDuration,
		m.controlsProcessed,
		m.galleryTemplates,
		m.groupsFlattened,
		m.templatesResolved,
		m.documentsRewritten,
		m.validationIssues,
		m.errorsByClass,
	)

	return m, nil
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRun records a finished run of a command.
func (m *Metrics) RecordRun(command, status string, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(command, status).Inc()
	m.runDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// AddControls adds to the number of normalized control nodes.
func (m *Metrics) AddControls(n int) {
	if m == nil || m.controlsProcessed == nil {
		return
	}
	m.controlsProcessed.Add(float64(n))
}

// AddGalleryTemplates adds to the number of synthesized gallery children.
func (m *Metrics) AddGalleryTemplates(n int) {
	if m == nil || m.galleryTemplates == nil {
		return
	}
	m.galleryTemplates.Add(float64(n))
}

// AddFlattenedGroups adds to the number of flattened group controls.
func (m *Metrics) AddFlattenedGroups(n int) {
	if m == nil || m.groupsFlattened == nil {
		return
	}
	m.groupsFlattened.Add(float64(n))
}

// RecordTemplateResolution counts one template reference by how it resolved.
func (m *Metrics) RecordTemplateResolution(kind string) {
	if m == nil || m.templatesResolved == nil {
		return
	}
	m.templatesResolved.WithLabelValues(kind).Inc()
}

// RecordDocumentRewritten counts a metadata document that changed.
func (m *Metrics) RecordDocumentRewritten(path string) {
	if m == nil || m.documentsRewritten == nil {
		return
	}
	m.documentsRewritten.WithLabelValues(path).Inc()
}

// AddValidationIssues adds to the number of reported validation issues.
func (m *Metrics) AddValidationIssues(n int) {
	if m == nil || m.validationIssues == nil {
		return
	}
	m.validationIssues.Add(float64(n))
}

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m == nil || m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// WriteTextfile writes the registry in the text exposition format to the
// configured textfile, for collection by a node exporter. It does nothing
// when metrics are disabled or no textfile is configured.
func (m *Metrics) WriteTextfile() error {
	if m == nil || m.registry == nil || m.config.Textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(m.config.Textfile, m.registry)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves /metrics on the configured listen address until
// ctx is cancelled. Watch mode is the only long-running command.
func (m *Metrics) StartMetricsServer(ctx context.Context) error {
	if m == nil || m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("metrics server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return nil
}
