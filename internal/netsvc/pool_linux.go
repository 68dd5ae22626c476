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

//go:build linux

package netsvc

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/andrey-malets/dist-clang/internal/assert"
)

// EpollPool implements Connector with one shared epoll instance servicing
// every pending non-blocking connect, mirroring the original NetworkService
// design: a fixed worker pool pumps epoll_wait on a single descriptor,
// each pending fd is registered one-shot for writability, and its callback
// fires exactly once when the connect resolves or fails.
type EpollPool struct {
	epfd int

	mu      sync.Mutex
	pending map[int]ConnectCallback

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewConnectPool creates a Connector backed by a shared epoll fd serviced
// by workers goroutines.
func NewConnectPool(workers int) (Connector, error) {
	if workers <= 0 {
		workers = 1
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("netsvc: epoll_create1: %w", err)
	}

	p := &EpollPool{
		epfd:    epfd,
		pending: make(map[int]ConnectCallback),
		closeCh: make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.workerLoop()
	}

	return p, nil
}

func (p *EpollPool) ConnectSync(ctx context.Context, network, addr string) (net.Conn, error) {
	return ConnectSync(ctx, network, addr)
}

// ConnectAsync issues a non-blocking connect and registers the resulting
// fd on the shared epoll instance if it doesn't complete immediately.
func (p *EpollPool) ConnectAsync(addr string, cb ConnectCallback) error {
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("netsvc: resolve %s: %w", addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("netsvc: socket: %w", err)
	}

	sa, err := toSockaddrInet4(raddr)
	if err != nil {
		unix.Close(fd)
		return err
	}

	connErr := unix.Connect(fd, sa)
	if connErr == nil {
		conn, err := fdToConn(fd)
		recordAsyncOutcome(outcomeLabel(err))
		cb(conn, err)
		return nil
	}
	if connErr != unix.EINPROGRESS {
		unix.Close(fd)
		recordAsyncOutcome("error")
		return fmt.Errorf("netsvc: connect %s: %w", addr, connErr)
	}

	p.mu.Lock()
	p.pending[fd] = cb
	pendingConnects.Set(float64(len(p.pending)))
	p.mu.Unlock()

	ev := unix.EpollEvent{Events: unix.EPOLLOUT | unix.EPOLLONESHOT, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		p.mu.Lock()
		delete(p.pending, fd)
		pendingConnects.Set(float64(len(p.pending)))
		p.mu.Unlock()
		unix.Close(fd)
		recordAsyncOutcome("error")
		return fmt.Errorf("netsvc: epoll_ctl add: %w", err)
	}

	return nil
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *EpollPool) workerLoop() {
	defer p.wg.Done()

	events := make([]unix.EpollEvent, 16)
	for {
		select {
		case <-p.closeCh:
			return
		default:
		}

		n, err := unix.EpollWait(p.epfd, events, 250)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}

		for i := 0; i < n; i++ {
			assert.That(events[i].Events&unix.EPOLLOUT != 0, "netsvc: epoll event on fd %d missing EPOLLOUT", events[i].Fd)
			p.handleCompletion(int(events[i].Fd))
		}
	}
}

func (p *EpollPool) handleCompletion(fd int) {
	p.mu.Lock()
	cb, ok := p.pending[fd]
	delete(p.pending, fd)
	pendingConnects.Set(float64(len(p.pending)))
	p.mu.Unlock()
	assert.That(ok, "netsvc: epoll reported fd %d with no pending callback", fd)

	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)

	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		unix.Close(fd)
		recordAsyncOutcome("error")
		cb(nil, fmt.Errorf("netsvc: getsockopt SO_ERROR: %w", err))
		return
	}
	if soErr != 0 {
		unix.Close(fd)
		recordAsyncOutcome("error")
		cb(nil, syscall.Errno(soErr))
		return
	}

	conn, err := fdToConn(fd)
	recordAsyncOutcome(outcomeLabel(err))
	cb(conn, err)
}

func (p *EpollPool) Close() error {
	p.closeOnce.Do(func() { close(p.closeCh) })
	p.wg.Wait()
	return unix.Close(p.epfd)
}

func toSockaddrInet4(addr *net.TCPAddr) (unix.Sockaddr, error) {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("netsvc: async connect only supports IPv4 addresses, got %s", addr.IP)
	}
	sa := &unix.SockaddrInet4{Port: addr.Port}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

// fdToConn wraps a connected fd in a net.Conn. os.NewFile followed by
// net.FileConn dups the descriptor, so the original fd is closed here
// (once, through file.Close).
func fdToConn(fd int) (net.Conn, error) {
	file := os.NewFile(uintptr(fd), "netsvc-connect")
	defer file.Close()

	conn, err := net.FileConn(file)
	if err != nil {
		return nil, fmt.Errorf("netsvc: fdconn: %w", err)
	}
	return conn, nil
}
