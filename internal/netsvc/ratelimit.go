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
	"net"

	"golang.org/x/time/rate"
)

// RateLimitedListener wraps a net.Listener and throttles Accept with a
// token bucket, so a burst of malformed or hostile clients can't starve
// the daemon's connect-completion workers.
type RateLimitedListener struct {
	net.Listener
	limiter *rate.Limiter
}

// NewRateLimitedListener wraps ln with a limiter admitting up to rps new
// connections per second, with burst as the initial allowance.
func NewRateLimitedListener(ln net.Listener, rps float64, burst int) *RateLimitedListener {
	return &RateLimitedListener{
		Listener: ln,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Accept blocks until the underlying listener has a connection AND the
// limiter admits it; a connection accepted but not admitted is closed
// immediately rather than queued, so slow admission never backs up the
// kernel accept queue silently.
func (l *RateLimitedListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		if !l.limiter.Allow() {
			conn.Close()
			recordRejected("rate_limited")
			continue
		}

		recordAccepted(l.transport())
		return conn, nil
	}
}

func (l *RateLimitedListener) transport() string {
	if l.Addr().Network() == "unix" {
		return "unix"
	}
	return "tcp"
}
