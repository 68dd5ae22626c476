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

//go:build !linux

package netsvc

import (
	"context"
	"net"
	"sync"
	"time"
)

// GoroutinePool is the portable Connector fallback: platforms without
// epoll get one goroutine per pending connect instead of a shared
// descriptor. The external contract (callback fires exactly once) is
// identical to EpollPool's.
type GoroutinePool struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewConnectPool creates a Connector backed by per-connect goroutines.
// workers is accepted for interface parity with the epoll pool but does
// not bound concurrency here.
func NewConnectPool(workers int) (Connector, error) {
	return &GoroutinePool{timeout: 30 * time.Second}, nil
}

func (p *GoroutinePool) ConnectSync(ctx context.Context, network, addr string) (net.Conn, error) {
	return ConnectSync(ctx, network, addr)
}

func (p *GoroutinePool) ConnectAsync(addr string, cb ConnectCallback) error {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		conn, err := ConnectSync(ctx, "tcp", addr)
		if err != nil {
			recordAsyncOutcome("error")
		} else {
			recordAsyncOutcome("ok")
		}
		cb(conn, err)
	}()
	return nil
}

func (p *GoroutinePool) Close() error {
	p.wg.Wait()
	return nil
}
