package client

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded per request.
const (
	outcomeOK           = "ok"
	outcomeNoMatch      = "no_match"
	outcomeRejected     = "rejected"
	outcomeTooLarge     = "too_large"
	outcomeUnauthorized = "unauthorized"
	outcomeServerError  = "server_error"
	outcomeTransport    = "transport_error"
)

// call describes one request to the server while it is in flight.
type call struct {
	op     string
	fields []string
	images []Image
	// status is the HTTP status code, 0 when no response arrived.
	status int
	// noMatch is the server's reason for a success:false answer.
	noMatch string
}

func newCall(op string, fields []string, images ...Image) *call {
	return &call{op: op, fields: fields, images: images}
}

func (c *call) uploadBytes() int {
	n := 0
	for _, img := range c.images {
		n += len(img.Data)
	}
	return n
}

func (c *call) imageNames() []string {
	names := make([]string, 0, len(c.images))
	for _, img := range c.images {
		names = append(names, img.Name)
	}
	return names
}

// outcome classifies a finished call for metrics and logs.
func (c *call) outcome(err error) string {
	switch {
	case err == nil && c.noMatch != "":
		return outcomeNoMatch
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrValidation):
		return outcomeRejected
	case errors.Is(err, ErrUploadTooLarge):
		return outcomeTooLarge
	case errors.Is(err, ErrUnauthorized):
		return outcomeUnauthorized
	case errors.Is(err, ErrServer):
		return outcomeServerError
	default:
		return outcomeTransport
	}
}

// clientMetrics holds the collectors registered through WithPrometheus.
type clientMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	uploadBytes *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "celebtwin",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Requests sent to the celebtwin server by operation and outcome.",
		}, []string{"operation", "outcome"}),
		// Inference alone may take up to two minutes.
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "celebtwin",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Round trip time of requests to the celebtwin server.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
		uploadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "celebtwin",
			Subsystem: "client",
			Name:      "upload_bytes",
			Help:      "Image bytes uploaded per request.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 7),
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.requests); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.uploadBytes); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or points it at the collector already
// registered under the same name.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("celebtwin: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("celebtwin: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records each call. Both the logger and the metrics are optional.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) finish(c *call, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	outcome := c.outcome(err)

	if o.metrics != nil {
		o.metrics.requests.WithLabelValues(c.op, outcome).Inc()
		o.metrics.duration.WithLabelValues(c.op).Observe(dur.Seconds())
		if len(c.images) > 0 {
			o.metrics.uploadBytes.WithLabelValues(c.op).Observe(float64(c.uploadBytes()))
		}
	}

	if o.logger == nil {
		return
	}
	attrs := []any{
		"operation", c.op,
		"outcome", outcome,
		"status", c.status,
		"duration", dur,
	}
	if len(c.images) > 0 {
		attrs = append(attrs,
			"fields", c.fields,
			"images", c.imageNames(),
			"upload_bytes", c.uploadBytes(),
		)
	}
	switch {
	case err != nil:
		o.logger.Warn("celebtwin request failed", append(attrs, "error", err)...)
	case c.noMatch != "":
		o.logger.Info("celebtwin found no match", append(attrs, "reason", c.noMatch)...)
	default:
		o.logger.Debug("celebtwin request completed", attrs...)
	}
}
