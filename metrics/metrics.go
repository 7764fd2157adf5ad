package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/uvcompat/resource"
	"github.com/wippyai/uvcompat/status"
)

const namespace = "uvcompat"

// Collector exports handle, stream and accept loop activity as prometheus
// metrics. It observes a resource.Table, streams and TCP servers.
type Collector struct {
	handlesActive   *prometheus.GaugeVec
	handlesCreated  *prometheus.CounterVec
	bytesRead       *prometheus.CounterVec
	bytesWritten    *prometheus.CounterVec
	consumerPanics  *prometheus.CounterVec
	accepts         *prometheus.CounterVec
	acceptBackoff   prometheus.Histogram
	acceptFailures  prometheus.Counter
	acceptSucceeded prometheus.Counter
}

// New creates a Collector. Register it with a prometheus.Registerer to export it.
func New() *Collector {
	c := &Collector{
		handlesActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "active",
			Help:      "The number of live handles and pending requests",
		}, []string{"provider"}),
		handlesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "created_total",
			Help:      "The total number of handles and requests created",
		}, []string{"provider"}),
		bytesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "read_bytes_total",
			Help:      "The number of bytes delivered to read callbacks",
		}, []string{"provider"}),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "written_bytes_total",
			Help:      "The number of bytes written by completed write requests",
		}, []string{"provider"}),
		consumerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "consumer_panics_total",
			Help:      "The number of read callbacks that panicked",
		}, []string{"provider"}),
		accepts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "accepts_total",
			Help:      "The number of accept attempts by result",
		}, []string{"result"}),
		acceptBackoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "accept_backoff_seconds",
			Help:      "Delays applied before retrying a failed accept",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 9),
		}),
	}
	c.acceptSucceeded = c.accepts.WithLabelValues("ok")
	c.acceptFailures = c.accepts.WithLabelValues("error")
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.collectors() {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.collectors() {
		m.Collect(ch)
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.handlesActive,
		c.handlesCreated,
		c.bytesRead,
		c.bytesWritten,
		c.consumerPanics,
		c.accepts,
		c.acceptBackoff,
	}
}

// OnResourceEvent implements resource.Observer.
func (c *Collector) OnResourceEvent(e resource.Event) {
	p := e.Provider.String()
	switch e.Type {
	case resource.EventCreated:
		c.handlesCreated.WithLabelValues(p).Inc()
		c.handlesActive.WithLabelValues(p).Inc()
	case resource.EventClosed:
		c.handlesActive.WithLabelValues(p).Dec()
	}
}

// OnStreamRead implements stream.Observer.
func (c *Collector) OnStreamRead(provider resource.Provider, n int) {
	c.bytesRead.WithLabelValues(provider.String()).Add(float64(n))
}

// OnStreamWrite implements stream.Observer.
func (c *Collector) OnStreamWrite(provider resource.Provider, n int) {
	c.bytesWritten.WithLabelValues(provider.String()).Add(float64(n))
}

// OnConsumerPanic implements stream.Observer.
func (c *Collector) OnConsumerPanic(provider resource.Provider) {
	c.consumerPanics.WithLabelValues(provider.String()).Inc()
}

// OnAccept implements tcp.Observer.
func (c *Collector) OnAccept(code status.Code) {
	if code.OK() {
		c.acceptSucceeded.Inc()
		return
	}
	c.acceptFailures.Inc()
}

// OnAcceptBackoff implements tcp.Observer.
func (c *Collector) OnAcceptBackoff(delay time.Duration) {
	c.acceptBackoff.Observe(delay.Seconds())
}
