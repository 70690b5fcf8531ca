// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/eventflow/lib/fault"
	"github.com/bureau-foundation/eventflow/lib/netutil"
)

// DefaultInitialBuffer is the receive buffer size before the first
// doubling.
const DefaultInitialBuffer = 64 << 10

// Config configures a Receiver.
type Config struct {
	// Address is the TCP listen address, e.g. "127.0.0.1:7400" or
	// ":0" for an ephemeral port.
	Address string

	// InitialBuffer is the starting capacity of the receive buffer.
	// Zero means DefaultInitialBuffer.
	InitialBuffer int

	// MaxSize bounds the bytes accepted from one connection. Zero
	// means no bound.
	MaxSize int

	// IdleTimeout closes a connection whose peer sends nothing for
	// this long. Zero disables the deadline.
	IdleTimeout time.Duration

	// Logger receives connection lifecycle messages. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Stats counts receiver activity.
type Stats struct {
	Connections int
	Bytes       int64
	Truncated   int
}

// Receiver is a single-connection-at-a-time TCP server. Calls are
// serialized by an internal mutex; a second caller blocks until the
// first transfer completes.
type Receiver struct {
	address     string
	initial     int
	maxSize     int
	idleTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	stats    Stats
}

// New creates a Receiver. It does not bind; call Listen, or let the
// first Receive bind lazily.
func New(config Config) (*Receiver, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("receiver address is required")
	}
	if config.InitialBuffer < 0 {
		return nil, fmt.Errorf("initial buffer must not be negative, got %d", config.InitialBuffer)
	}
	if config.MaxSize < 0 {
		return nil, fmt.Errorf("max size must not be negative, got %d", config.MaxSize)
	}
	initial := config.InitialBuffer
	if initial == 0 {
		initial = DefaultInitialBuffer
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		address:     config.Address,
		initial:     initial,
		maxSize:     config.MaxSize,
		idleTimeout: config.IdleTimeout,
		logger:      logger,
	}, nil
}

// Listen binds the listen address with SO_REUSEADDR. Calling Listen on
// a bound receiver is a state error.
func (r *Receiver) Listen(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fault.State("receiver is closed")
	}
	if r.listener != nil {
		return fault.State("receiver already listening on %s", r.listener.Addr())
	}
	return r.listenLocked(ctx)
}

func (r *Receiver) listenLocked(ctx context.Context) error {
	listener, err := netutil.ListenReusable(ctx, r.address)
	if err != nil {
		return err
	}
	r.listener = listener
	r.logger.Info("receiver listening", "address", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (r *Receiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Receive accepts exactly one connection and returns every byte the
// peer sent before closing. Ownership of the returned buffer passes to
// the caller.
//
// Cancelling ctx closes the listener and returns ctx.Err(); the next
// Receive binds again. A peer that resets the connection mid-transfer
// yields the bytes received so far with a logged warning: the framing
// layer reports the truncation.
func (r *Receiver) Receive(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fault.State("receiver is closed")
	}
	if r.listener == nil {
		if err := r.listenLocked(ctx); err != nil {
			return nil, err
		}
	}
	listener := r.listener

	// Unblock Accept and Read when the context is cancelled.
	var connection net.Conn
	var connectionMu sync.Mutex
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
		connectionMu.Lock()
		if connection != nil {
			connection.Close()
		}
		connectionMu.Unlock()
	})
	defer stop()

	accepted, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			r.listener = nil
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accepting connection on %s: %w", listener.Addr(), err)
	}
	connectionMu.Lock()
	connection = accepted
	connectionMu.Unlock()
	defer accepted.Close()

	r.stats.Connections++
	peer := accepted.RemoteAddr().String()
	r.logger.Info("receiving bucket stream", "peer", peer)

	data, err := r.drain(accepted)
	if ctx.Err() != nil {
		r.listener = nil
		return nil, ctx.Err()
	}
	if err != nil {
		if !netutil.IsPeerReset(err) {
			return nil, fmt.Errorf("receiving from %s: %w", peer, err)
		}
		r.stats.Truncated++
		r.logger.Warn("connection reset mid-transfer",
			"peer", peer,
			"bytes", len(data),
			"error", err,
		)
	}
	r.stats.Bytes += int64(len(data))
	r.logger.Info("bucket stream received", "peer", peer, "bytes", len(data))
	return data, nil
}

// drain reads connection to EOF into a buffer that doubles when full.
// On error it returns the bytes read so far together with the error.
func (r *Receiver) drain(connection net.Conn) ([]byte, error) {
	buffer := make([]byte, r.initial)
	filled := 0
	for {
		if filled == len(buffer) {
			grown := make([]byte, 2*len(buffer))
			copy(grown, buffer[:filled])
			buffer = grown
		}
		if r.idleTimeout > 0 {
			connection.SetReadDeadline(time.Now().Add(r.idleTimeout))
		}
		count, err := connection.Read(buffer[filled:])
		filled += count
		if r.maxSize > 0 && filled > r.maxSize {
			return buffer[:filled], fault.WireFormat("peer sent more than %d bytes", r.maxSize)
		}
		if errors.Is(err, io.EOF) {
			return buffer[:filled], nil
		}
		if err != nil {
			return buffer[:filled], err
		}
	}
}

// Stats returns activity counters.
func (r *Receiver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Close stops listening. Closing twice is a state error.
func (r *Receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fault.State("receiver closed twice")
	}
	r.closed = true
	if r.listener == nil {
		return nil
	}
	err := r.listener.Close()
	r.listener = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("closing listener: %w", err)
	}
	return nil
}
