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

package daemon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distclang_daemon_requests_total",
			Help: "Total Execute requests received, by source language",
		},
		[]string{"language"},
	)

	repliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distclang_daemon_replies_total",
			Help: "Total Status replies sent, by status code",
		},
		[]string{"code"},
	)
)

func recordRequest(language string) {
	if language == "" {
		language = "unknown"
	}
	requestsTotal.WithLabelValues(language).Inc()
}

func recordReply(code string) {
	repliesTotal.WithLabelValues(code).Inc()
}
