/*
 * Copyright 2025 SharedMemory Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// Process-local operation counters. Registration is opt-in via
// RegisterMetrics; the counters are collected either way.
var (
	writesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shm_writes_total",
		Help: "Records published by writers in this process.",
	})
	readsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shm_reads_total",
		Help: "Records consumed by readers in this process.",
	})
	readTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shm_read_timeouts_total",
		Help: "Reads that timed out waiting for new data.",
	})
	continuityLossTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shm_continuity_loss_total",
		Help: "Reads that found their expected record overwritten.",
	})
)

// RegisterMetrics registers the package's collectors with r.
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		writesTotal, readsTotal, readTimeoutsTotal, continuityLossTotal,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck returns a liveness check that fails once the buffer is closed
// or its mapping is gone.
func (b *CircularBuffer) HealthCheck() healthcheck.Check {
	return func() error {
		if b.closed.Load() || b.seg.mem == nil {
			return fmt.Errorf("buffer %q is closed", b.name)
		}
		return nil
	}
}
