package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/coursefinder-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	crawlsStarted   prometheus.Counter
	crawlsCompleted *prometheus.CounterVec
	crawlRuntime    *prometheus.HistogramVec
	itemsTotal      prometheus.Gauge
	itemsCompleted  prometheus.Gauge
	completedRatio  prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		crawlsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursefinder_crawls_started_total",
			Help: "Total crawls that have started.",
		}),
		crawlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursefinder_crawls_completed_total",
			Help: "Total crawls completed partitioned by result.",
		}, []string{"result"}),
		crawlRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coursefinder_crawl_runtime_seconds",
			Help:    "Wall time per completed crawl.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400, 3600},
		}, []string{"result"}),
		itemsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coursefinder_crawl_items",
			Help: "Items enqueued for the current crawl.",
		}),
		itemsCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coursefinder_crawl_items_completed",
			Help: "Items aggregated so far in the current crawl.",
		}),
		completedRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coursefinder_crawl_completed_ratio",
			Help: "Fraction of the current crawl that has been aggregated.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.crawlsStarted,
		s.crawlsCompleted,
		s.crawlRuntime,
		s.itemsTotal,
		s.itemsCompleted,
		s.completedRatio,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageCrawlStart:
			s.crawlsStarted.Inc()
			s.itemsTotal.Set(float64(evt.Total))
			s.itemsCompleted.Set(0)
			s.completedRatio.Set(0)
		case progress.StageItemDone:
			s.itemsTotal.Set(float64(evt.Total))
			s.itemsCompleted.Set(float64(evt.Completed))
			s.completedRatio.Set(evt.Fraction())
		case progress.StageCrawlDone:
			s.finish(evt, "success")
		case progress.StageCrawlError:
			s.finish(evt, "error")
		}
	}
	return nil
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.crawlsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.crawlRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
