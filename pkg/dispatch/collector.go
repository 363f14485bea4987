// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	descPoolActive = prometheus.NewDesc(
		"chargeport_pool_active_commands",
		"Number of admitted commands awaiting retrieval.",
		[]string{"port"}, nil,
	)
	descPoolUnused = prometheus.NewDesc(
		"chargeport_pool_unused_slots",
		"Number of free command slots.",
		[]string{"port"}, nil,
	)
	descPoolCapacity = prometheus.NewDesc(
		"chargeport_pool_capacity",
		"Fixed number of command slots.",
		nil, nil,
	)
	descAdmitted = prometheus.NewDesc(
		"chargeport_commands_admitted_total",
		"Total number of commands admitted to the pool.",
		nil, nil,
	)
	descRetrieved = prometheus.NewDesc(
		"chargeport_commands_retrieved_total",
		"Total number of commands retrieved from the pool.",
		nil, nil,
	)
	descRejected = prometheus.NewDesc(
		"chargeport_operations_rejected_total",
		"Total number of rejected pool operations by reason.",
		[]string{"reason"}, nil,
	)
)

type poolCollector struct {
	pool *Pool
}

// Check if poolCollector implements necessary interface
var _ prometheus.Collector = &poolCollector{}

// NewCollector exposes the pool's occupancy and statistics as Prometheus
// metrics. Occupancy gauges are only reported while the pool is initialized.
func NewCollector(pool *Pool) prometheus.Collector {
	return &poolCollector{pool: pool}
}

// Describe implements the prometheus.Collector interface.
func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descPoolActive
	ch <- descPoolUnused
	ch <- descPoolCapacity
	ch <- descAdmitted
	ch <- descRetrieved
	ch <- descRejected
}

// Collect implements the prometheus.Collector interface.
func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(descPoolCapacity, prometheus.GaugeValue, float64(c.pool.Capacity()))

	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(descAdmitted, prometheus.CounterValue, float64(s.Admitted))
	ch <- prometheus.MustNewConstMetric(descRetrieved, prometheus.CounterValue, float64(s.Retrieved))
	for reason, n := range map[string]uint64{
		"full":            s.RejectedFull,
		"invalid":         s.RejectedInvalid,
		"missing":         s.RejectedNoCommand,
		"not_initialized": s.RejectedUninitialized,
		"config":          s.RejectedConfig,
	} {
		ch <- prometheus.MustNewConstMetric(descRejected, prometheus.CounterValue, float64(n), reason)
	}

	o, ok := c.pool.occupancy()
	if !ok {
		return
	}
	ch <- prometheus.MustNewConstMetric(descPoolActive, prometheus.GaugeValue, float64(o.active), o.port)
	ch <- prometheus.MustNewConstMetric(descPoolUnused, prometheus.GaugeValue, float64(o.unused), o.port)
}
