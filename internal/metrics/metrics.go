// Package metrics counts captcha session activity for Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Raikerian/go-audio-captcha/internal/captcha"
)

const namespace = "captcha"

// Collector turns session events into counters. One collector serves every
// session in the process.
type Collector struct {
	registry *prometheus.Registry

	generated     prometheus.Counter
	passesStarted prometheus.Counter
	passesEnded   *prometheus.CounterVec
	digitsPlayed  prometheus.Counter
	verdicts      *prometheus.CounterVec
	rejections    *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry, which also carries
// the Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generated_total",
			Help:      "Tokens generated.",
		}),
		passesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_started_total",
			Help:      "Scrambled playback passes started.",
		}),
		passesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_finished_total",
			Help:      "Playback passes ended, by outcome.",
		}, []string{"outcome"}),
		digitsPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digits_played_total",
			Help:      "Digit clips started.",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Answers checked, by verdict.",
		}, []string{"verdict"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Operations refused, by reason.",
		}, []string{"reason"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.generated,
		c.passesStarted,
		c.passesEnded,
		c.digitsPlayed,
		c.verdicts,
		c.rejections,
	)

	return c
}

// Observe is a captcha.Listener.
func (c *Collector) Observe(e captcha.Event) {
	switch e.Kind {
	case captcha.EventGenerated:
		c.generated.Inc()
	case captcha.EventPassStarted:
		c.passesStarted.Inc()
	case captcha.EventDigitStarted:
		c.digitsPlayed.Inc()
	case captcha.EventPassFinished:
		c.passesEnded.WithLabelValues(string(e.Outcome)).Inc()
	case captcha.EventVerdict:
		c.verdicts.WithLabelValues(e.Verdict.String()).Inc()
	case captcha.EventRejected:
		c.rejections.WithLabelValues(reason(e.Err)).Inc()
	}
}

// Track subscribes the collector to s and returns the unsubscribe function.
func (c *Collector) Track(s *captcha.Session) func() {
	return s.Subscribe(c.Observe)
}

// Registry returns the registry the counters live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func reason(err error) string {
	var ce *captcha.Error
	if errors.As(err, &ce) {
		return string(ce.Code)
	}
	return "OTHER"
}
