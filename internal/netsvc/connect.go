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
	"context"
	"net"
)

// ConnectCallback receives the outcome of one asynchronous connect
// attempt. It runs at most once: on a pool worker goroutine, or on the
// goroutine calling ConnectAsync when the connect completes immediately.
type ConnectCallback func(conn net.Conn, err error)

// Connector performs synchronous and asynchronous outbound connects,
// sharing a bounded worker pool the way spec.md §4.C's event loop shares
// one epoll instance across connect completions.
type Connector interface {
	// ConnectSync dials network/addr and blocks until the connection is
	// established, ctx is done, or the attempt fails.
	ConnectSync(ctx context.Context, network, addr string) (net.Conn, error)

	// ConnectAsync starts a non-blocking connect to addr. cb fires
	// exactly once when it resolves; when the connect completes
	// immediately, cb runs inline before ConnectAsync returns. If
	// ConnectAsync returns an error, cb is not called, and EpollPool does
	// not call the callbacks of connects still pending at Close.
	ConnectAsync(addr string, cb ConnectCallback) error

	// Close stops the pool's workers and releases any shared descriptor.
	Close() error
}

// ConnectSync dials network/addr directly. It backs both Connector
// implementations' ConnectSync and the client's own connection to the
// daemon socket (spec.md §4.E step 5).
func ConnectSync(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}
