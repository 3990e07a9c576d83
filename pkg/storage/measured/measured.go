// Copyright 2024 The skylark Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package measuredrepository

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/skylark-im/skylark/pkg/storage/repository"
)

const (
	createOp = "create"
	updateOp = "update"
	fetchOp  = "fetch"
	deleteOp = "delete"
)

var (
	repOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skylark",
			Subsystem: "repository",
			Name:      "operations_total",
			Help:      "The total number of repository operations.",
		},
		[]string{"type", "success"},
	)
	repOperationDurationBucket = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skylark",
			Subsystem: "repository",
			Name:      "operations_duration_bucket",
			Help:      "Bucketed histogram of repository operations duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"type", "success"},
	)
)

func init() {
	prometheus.MustRegister(repOperations)
	prometheus.MustRegister(repOperationDurationBucket)
}

// Measured is a measured Repository implementation.
type Measured struct {
	measuredRosterRep
	rep repository.Repository
}

// New returns a new initialized Measured repository.
func New(rep repository.Repository) repository.Repository {
	return &Measured{
		measuredRosterRep: measuredRosterRep{rep: rep},
		rep:               rep,
	}
}

// Start initializes repository.
func (m *Measured) Start(ctx context.Context) error {
	return m.rep.Start(ctx)
}

// Stop releases all underlying repository resources.
func (m *Measured) Stop(ctx context.Context) error {
	return m.rep.Stop(ctx)
}

func reportOpMetric(opType string, durationInSecs float64, success bool) {
	metricLabel := prometheus.Labels{
		"type":    opType,
		"success": strconv.FormatBool(success),
	}
	repOperations.With(metricLabel).Inc()
	repOperationDurationBucket.With(metricLabel).Observe(durationInSecs)
}
