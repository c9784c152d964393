package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/entrhq/booker/pkg/logging"
	"github.com/entrhq/booker/pkg/types"
)

// DefaultAddr is the default control listen address.
const DefaultAddr = "127.0.0.1:4567"

// DefaultReadTimeout closes control connections idle for this long.
const DefaultReadTimeout = 60 * time.Second

const (
	writeTimeout = 5 * time.Second

	// maxLineSize bounds a single control line.
	maxLineSize = 1024
)

var log = logging.NewLogger("control")

// Listener accepts line-oriented control connections. Each recognised token
// (pause, resume, stop) is written to the State and acknowledged with
// PAUSED, RESUMED or STOPPING. Unrecognised lines are ignored.
type Listener struct {
	addr        string
	state       *State
	readTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener

	activeConnections sync.WaitGroup
}

// NewListener creates a listener for addr. A non-positive readTimeout
// selects DefaultReadTimeout.
func NewListener(addr string, state *State, readTimeout time.Duration) *Listener {
	if addr == "" {
		addr = DefaultAddr
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Listener{addr: addr, state: state, readTimeout: readTimeout}
}

// Listen binds the socket. Serve calls it when needed; calling it first lets
// callers learn the bound address (e.g. with port 0).
func (l *Listener) Listen() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.addr, err)
	}
	l.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then waits for active
// connections to finish.
func (l *Listener) Serve(ctx context.Context) error {
	if err := l.Listen(); err != nil {
		return err
	}

	l.mu.Lock()
	ln := l.listener
	l.mu.Unlock()
	defer ln.Close()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Infof("control listener on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Errorf("accept failed: %v", err)
			continue
		}

		l.activeConnections.Add(1)
		go func() {
			defer l.activeConnections.Done()
			l.handleConnection(ctx, conn)
		}()
	}

	l.activeConnections.Wait()
	return nil
}

func (l *Listener) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64), maxLineSize)

	for {
		conn.SetReadDeadline(time.Now().Add(l.readTimeout))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && ctx.Err() == nil {
				log.Debugf("control connection %s closed: %v", conn.RemoteAddr(), err)
			}
			return
		}

		cmd, ok := types.ParseCommand(scanner.Text())
		if !ok {
			continue
		}
		l.state.Set(cmd)
		log.Infof("control command %s from %s", cmd, conn.RemoteAddr())

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := fmt.Fprintf(conn, "%s\n", cmd.Ack()); err != nil {
			log.Debugf("failed to acknowledge %s: %v", cmd, err)
			return
		}
	}
}
