// Copyright 2025 Tom Barlow
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

package netsvc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distclang_netsvc_connections_accepted_total",
			Help: "Total inbound connections accepted, by listener transport",
		},
		[]string{"transport"},
	)

	connectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distclang_netsvc_connections_rejected_total",
			Help: "Total inbound connections rejected, by reason",
		},
		[]string{"reason"},
	)

	connectAsyncCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distclang_netsvc_connect_async_total",
			Help: "Total asynchronous outbound connect attempts, by outcome",
		},
		[]string{"outcome"},
	)

	pendingConnects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "distclang_netsvc_pending_connects",
			Help: "Number of asynchronous connects registered on the shared epoll instance",
		},
	)
)

func recordAccepted(transport string) {
	connectionsAccepted.WithLabelValues(transport).Inc()
}

func recordRejected(reason string) {
	connectionsRejected.WithLabelValues(reason).Inc()
}

func recordAsyncOutcome(outcome string) {
	connectAsyncCompleted.WithLabelValues(outcome).Inc()
}
