package main

import (
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coregx/chat/internal/client"
)

func newClientCmd(log zerolog.Logger) *cobra.Command {
	var hostname string
	var port int

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := net.JoinHostPort(hostname, fmt.Sprintf("%d", port))
			c, err := client.Dial(addr, log)
			if err != nil {
				return err
			}
			return c.Run(os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&hostname, "hostname", "127.0.0.1", "server address")
	cmd.Flags().IntVar(&port, "port", 11111, "server TCP port")
	return cmd
}
