package control

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/booker/pkg/types"
)

func startListener(t *testing.T, readTimeout time.Duration) (*Listener, *State) {
	t.Helper()

	state := NewState()
	l := NewListener("127.0.0.1:0", state, readTimeout)
	require.NoError(t, l.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("listener did not shut down")
		}
	})
	return l, state
}

func TestListener_AcknowledgesCommands(t *testing.T) {
	l, state := startListener(t, time.Second)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	tests := []struct {
		line string
		ack  string
		want types.ControlCommand
	}{
		{"pause", "PAUSED", types.CommandPause},
		{"  RESUME  ", "RESUMED", types.CommandResume},
		{"Stop\r", "STOPPING", types.CommandStop},
	}

	for _, tt := range tests {
		_, err := fmt.Fprintf(conn, "%s\n", tt.line)
		require.NoError(t, err)

		reply, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, tt.ack, strings.TrimSpace(reply))
		assert.Equal(t, tt.want, state.Get())
	}
}

func TestListener_IgnoresUnknownInput(t *testing.T) {
	l, state := startListener(t, time.Second)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = fmt.Fprint(conn, "hello\nrestart\npause\n")
	require.NoError(t, err)

	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PAUSED", strings.TrimSpace(reply), "unknown lines produce no reply")
	assert.Equal(t, types.CommandPause, state.Get())
}

func TestListener_ClosesIdleConnections(t *testing.T) {
	l, _ := startListener(t, 50*time.Millisecond)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = bufio.NewReader(conn).ReadString('\n')
	assert.Error(t, err, "server should close the idle connection")
}

func TestSend(t *testing.T) {
	l, state := startListener(t, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ack, err := Send(ctx, l.Addr().String(), types.CommandStop)
	require.NoError(t, err)
	assert.Equal(t, "STOPPING", ack)
	assert.Equal(t, types.CommandStop, state.Get())
}

func TestSend_NoListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Send(context.Background(), addr, types.CommandPause)
	assert.Error(t, err)
}
