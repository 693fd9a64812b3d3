package main

import "github.com/prometheus/client_golang/prometheus"

// poolMetrics mirrors, as Prometheus gauges/counters, exactly the
// quantities the free-list invariants in spec.md talk about: pool
// size, free bytes, free-list fragmentation (extent count), plus the
// self-test loop's own cumulative allocation, deallocation and failure
// counts. Nothing here is read by
// lockmem itself — it is computed by polling the allocator's public
// API from the self-test loop in main.go.
type poolMetrics struct {
	poolBytesTotal     prometheus.Gauge
	poolBytesFree      prometheus.Gauge
	freeExtents        prometheus.Gauge
	allocationsTotal   prometheus.Counter
	deallocationsTotal prometheus.Counter
	allocationFailures prometheus.Counter
	selfTestRoundTrips prometheus.Counter
}

func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	m := &poolMetrics{
		poolBytesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lockmem_pool_bytes_total",
			Help: "Size of the locked pool in bytes, 0 if disabled.",
		}),
		poolBytesFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lockmem_pool_bytes_free",
			Help: "Free bytes in the locked pool, as of the last self-test.",
		}),
		freeExtents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lockmem_free_extents",
			Help: "Number of disjoint free extents in the free list.",
		}),
		allocationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockmem_allocations_total",
			Help: "Successful Allocate calls made by the self-test loop.",
		}),
		deallocationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockmem_deallocations_total",
			Help: "Successful Deallocate calls made by the self-test loop.",
		}),
		allocationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockmem_allocation_failures_total",
			Help: "Allocate calls from the self-test loop that returned 0.",
		}),
		selfTestRoundTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockmem_self_test_round_trips_total",
			Help: "Completed allocate/zero-check/deallocate round trips.",
		}),
	}
	reg.MustRegister(
		m.poolBytesTotal,
		m.poolBytesFree,
		m.freeExtents,
		m.allocationsTotal,
		m.deallocationsTotal,
		m.allocationFailures,
		m.selfTestRoundTrips,
	)
	return m
}
