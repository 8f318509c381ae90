/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics counts transfers as Prometheus metrics.
package metrics // import "github.com/sonatype/wagon-ahc/pkg/metrics"

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sonatype/wagon-ahc/pkg/transfer"
)

const namespace = "wagon"

// Listener is a transfer.Listener that records transfer metrics in its own
// registry.
type Listener struct {
	registry *prometheus.Registry
	textfile string

	transfers *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	refused   prometheus.Counter

	mu      sync.Mutex
	started map[string]time.Time
}

// Option configures a Listener.
type Option func(*Listener)

// WithTextfile writes the metrics to path in the Prometheus text format
// when the listener is closed.
func WithTextfile(path string) Option {
	return func(l *Listener) {
		l.textfile = path
	}
}

// NewListener creates a Listener with a fresh registry.
func NewListener(opts ...Option) *Listener {
	l := &Listener{
		registry: prometheus.NewRegistry(),
		started:  map[string]time.Time{},
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Total number of finished transfers by direction and outcome.",
			},
			[]string{"direction", "outcome"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transferred_bytes_total",
				Help:      "Total number of bytes moved by direction.",
			},
			[]string{"direction"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Time from the start of a transfer to its completion.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"direction"},
		),
		refused: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "connections_refused_total",
				Help:      "Total number of requests refused for lack of authorization.",
			},
		),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.registry.MustRegister(l.transfers, l.bytes, l.duration, l.refused)
	return l
}

// Registry returns the registry the metrics live in.
func (l *Listener) Registry() *prometheus.Registry { return l.registry }

func key(e transfer.Event) string {
	return e.Direction.String() + " " + e.URL
}

// TransferEvent implements transfer.Listener.
func (l *Listener) TransferEvent(e transfer.Event) {
	dir := e.Direction.String()
	switch e.Type {
	case transfer.Started:
		l.mu.Lock()
		l.started[key(e)] = e.Timestamp
		l.mu.Unlock()
	case transfer.Progress:
		l.bytes.WithLabelValues(dir).Add(float64(e.Bytes))
	case transfer.Completed:
		l.transfers.WithLabelValues(dir, e.Outcome.String()).Inc()
		l.observe(e)
	case transfer.Failed:
		l.transfers.WithLabelValues(dir, transfer.TransferFailed.String()).Inc()
		l.observe(e)
	case transfer.SessionConnectionRefused:
		l.refused.Inc()
	}
}

func (l *Listener) observe(e transfer.Event) {
	l.mu.Lock()
	start, ok := l.started[key(e)]
	delete(l.started, key(e))
	l.mu.Unlock()
	if ok && !start.IsZero() && !e.Timestamp.IsZero() {
		l.duration.WithLabelValues(e.Direction.String()).Observe(e.Timestamp.Sub(start).Seconds())
	}
}

// Close writes the text file, if one was configured.
func (l *Listener) Close() error {
	if l.textfile == "" {
		return nil
	}
	return errors.Wrapf(prometheus.WriteToTextfile(l.textfile, l.registry), "writing metrics to %s", l.textfile)
}
