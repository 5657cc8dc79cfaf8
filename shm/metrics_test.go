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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"shm_writes_total",
		"shm_reads_total",
		"shm_read_timeouts_total",
		"shm_continuity_loss_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestCountersTrackOperations(t *testing.T) {
	buf := newTestBuffer(t, 4, 16)
	w := buf.NewWriter()
	r := buf.NewReader()

	writesBefore := counterValue(t, writesTotal)
	readsBefore := counterValue(t, readsTotal)
	timeoutsBefore := counterValue(t, readTimeoutsTotal)

	_, err := w.Write([]byte("metered"))
	require.NoError(t, err)
	_, err = r.Read(make([]byte, 16), time.Second)
	require.NoError(t, err)
	_, err = r.Read(make([]byte, 16), 50*time.Millisecond)
	require.ErrorIs(t, err, ErrReadTimeout)

	assert.Equal(t, writesBefore+1, counterValue(t, writesTotal))
	assert.Equal(t, readsBefore+1, counterValue(t, readsTotal))
	assert.Equal(t, timeoutsBefore+1, counterValue(t, readTimeoutsTotal))
}

func TestHealthCheckFollowsLifecycle(t *testing.T) {
	buf := newTestBuffer(t, 2, 16)

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("shm-buffer", buf.HealthCheck())

	rec := httptest.NewRecorder()
	health.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, buf.Close())
	rec = httptest.NewRecorder()
	health.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
