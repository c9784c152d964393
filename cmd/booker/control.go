package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/booker/pkg/control"
	"github.com/entrhq/booker/pkg/types"
)

func controlCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:       "control <pause|resume|stop>",
		Short:     "Send a command to a running pipeline",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"pause", "resume", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command, ok := types.ParseCommand(args[0])
			if !ok {
				return fmt.Errorf("unknown command %q (want pause, resume or stop)", args[0])
			}
			if addr == "" {
				settings, err := loadSettings(cmd)
				if err != nil {
					return err
				}
				addr = settings.Control.Addr
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			ack, err := control.Send(ctx, addr, command)
			if err != nil {
				return err
			}
			fmt.Println(ack)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listener address (default from settings)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "time to wait for the acknowledgement")
	return cmd
}
