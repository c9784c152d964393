package control

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/entrhq/booker/pkg/types"
)

// Send delivers one command to a running listener and returns its
// acknowledgement.
func Send(ctx context.Context, addr string, cmd types.ControlCommand) (string, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("connecting to control listener at %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		return "", fmt.Errorf("sending %s: %w", cmd, err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading acknowledgement: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
