// Package prometheus collects metrics about an extraction run and writes them
// for the textfile collector of the node exporter.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics interface {
	Register(cs prometheus.Collector) error
	UnregisterAll()
	Reader
}

type Reader interface {
	// Gatherer returns the gatherer of all registered collectors.
	Gatherer() prometheus.Gatherer

	// WriteTextfile writes the metrics in the text exposition format
	// to the file. The file is replaced atomically.
	WriteTextfile(path string) error
}

type metrics struct {
	registry   *prometheus.Registry
	collectors []prometheus.Collector
}

func New() Metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
	}

	return m
}

func (m *metrics) Register(cs prometheus.Collector) error {
	if err := m.registry.Register(cs); err != nil {
		return err
	}

	m.collectors = append(m.collectors, cs)

	return nil
}

func (m *metrics) UnregisterAll() {
	for _, cs := range m.collectors {
		m.registry.Unregister(cs)
	}

	m.collectors = nil
}

func (m *metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
