// Package metrics exposes relay counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/dmitrijs2005/gophxfer/internal/server/reaper"
	"github.com/dmitrijs2005/gophxfer/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophxfer"

// StatsSource reports the current contents of the transfer table.
type StatsSource interface {
	Stats() storage.Stats
}

// Metrics owns a private registry so that tests and multiple relays in one
// process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	Uploads       *prometheus.CounterVec
	UploadBytes   prometheus.Counter
	Downloads     *prometheus.CounterVec
	DownloadBytes prometheus.Counter
	Deletes       prometheus.Counter
	RateLimited   prometheus.Counter
	ReaperPasses  prometheus.Counter
	Reaped        prometheus.Counter
	ReapFailures  prometheus.Counter
	ReaperLatency prometheus.Histogram
}

func New(src StatsSource) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Number of upload attempts by outcome",
		}, []string{"outcome"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Ciphertext bytes committed",
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Number of download requests by outcome",
		}, []string{"outcome"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Ciphertext bytes served",
		}),
		Deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Number of transfers deleted by their uploader",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Number of create requests rejected by the rate limiter",
		}),
		ReaperPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_passes_total",
			Help:      "Number of completed reaper passes",
		}),
		Reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaped_transfers_total",
			Help:      "Number of expired transfers removed",
		}),
		ReapFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reap_failures_total",
			Help:      "Number of expired transfers that could not be removed",
		}),
		ReaperLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reaper_pass_seconds",
			Help:      "Duration of reaper passes",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.Uploads, m.UploadBytes, m.Downloads, m.DownloadBytes, m.Deletes,
		m.RateLimited, m.ReaperPasses, m.Reaped, m.ReapFailures, m.ReaperLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if src != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stored_transfers",
				Help:      "Transfers currently available for download",
			}, func() float64 { return float64(src.Stats().Transfers) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stored_bytes",
				Help:      "Ciphertext bytes currently stored",
			}, func() float64 { return float64(src.Stats().Bytes) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_uploads",
				Help:      "Uploads in progress",
			}, func() float64 { return float64(src.Stats().Pending) }),
		)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePass records a reaper pass; it fits reaper.Reaper.OnPass.
func (m *Metrics) ObservePass(p reaper.Pass) {
	m.ReaperPasses.Inc()
	m.Reaped.Add(float64(p.Reaped))
	m.ReapFailures.Add(float64(p.Failed))
	m.ReaperLatency.Observe(p.Elapsed.Seconds())
}

// RateLimitedOrigin counts a rejection; it fits admission.Options.OnReject.
func (m *Metrics) RateLimitedOrigin(string) { m.RateLimited.Inc() }
