package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons reported by the receiver.
const (
	DropMalformed = "malformed"
	DropStale     = "stale"
	DropOversize  = "oversize"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "udpstream",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "udpstream",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)

	framesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udpstream",
		Subsystem: "sender",
		Name:      "frames_total",
		Help:      "Source items consumed by the fragmenter.",
	})
	emptyFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udpstream",
		Subsystem: "sender",
		Name:      "empty_frames_total",
		Help:      "Zero-length source items that produced no fragments.",
	})
	fragmentsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udpstream",
		Subsystem: "sender",
		Name:      "fragments_total",
		Help:      "Fragments written to the transport.",
	})
	bytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udpstream",
		Subsystem: "sender",
		Name:      "bytes_total",
		Help:      "Datagram bytes written, headers included.",
	})
	sendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "udpstream",
			Subsystem: "sender",
			Name:      "failures_total",
			Help:      "Streams aborted, by failure class.",
		},
		[]string{"kind"},
	)

	datagramsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udpstream",
		Subsystem: "receiver",
		Name:      "datagrams_total",
		Help:      "Datagrams read from the transport.",
	})
	datagramsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "udpstream",
			Subsystem: "receiver",
			Name:      "dropped_total",
			Help:      "Datagrams skipped without terminating the stream.",
		},
		[]string{"reason"},
	)
	framesEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udpstream",
		Subsystem: "receiver",
		Name:      "evicted_total",
		Help:      "Incomplete frames discarded when their slot was reused.",
	})
	framesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "udpstream",
		Subsystem: "receiver",
		Name:      "frames_total",
		Help:      "Frames reassembled and emitted.",
	})
	frameSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "udpstream",
		Subsystem: "receiver",
		Name:      "frame_bytes",
		Help:      "Size of reassembled frames in bytes.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
	})
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesSent, emptyFrames, fragmentsSent, bytesSent, sendFailures,
			datagramsReceived, datagramsDropped, framesEvicted, framesCompleted, frameSize,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordFrameSent counts one source item and the fragments it produced.
func RecordFrameSent(fragments, bytes int) {
	RegisterMetrics()
	framesSent.Inc()
	if fragments == 0 {
		emptyFrames.Inc()
		return
	}
	fragmentsSent.Add(float64(fragments))
	bytesSent.Add(float64(bytes))
}

func RecordSendFailure(kind string) {
	RegisterMetrics()
	sendFailures.WithLabelValues(kind).Inc()
}

func RecordDatagram() {
	RegisterMetrics()
	datagramsReceived.Inc()
}

func RecordDrop(reason string) {
	RegisterMetrics()
	datagramsDropped.WithLabelValues(reason).Inc()
}

func RecordEviction() {
	RegisterMetrics()
	framesEvicted.Inc()
}

func RecordFrameCompleted(bytes int) {
	RegisterMetrics()
	framesCompleted.Inc()
	frameSize.Observe(float64(bytes))
}
