package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coregx/chat/internal/admin"
	"github.com/coregx/chat/internal/bus"
	"github.com/coregx/chat/internal/listener"
	"github.com/coregx/chat/internal/store"
)

func newServerCmd(log zerolog.Logger) *cobra.Command {
	var hostname string
	var port int
	var webPort int
	var dbPath string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), log, hostname, port, webPort, dbPath)
		},
	}

	cmd.Flags().StringVar(&hostname, "hostname", "0.0.0.0", "address to listen on")
	cmd.Flags().IntVar(&port, "port", 11111, "TCP port for the chat protocol")
	cmd.Flags().IntVar(&webPort, "web-port", 8080, "port for the admin HTTP console")
	cmd.Flags().StringVar(&dbPath, "db", "server.db", "path to the SQLite database file")
	return cmd
}

func runServer(ctx context.Context, log zerolog.Logger, hostname string, port, webPort int, dbPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(dbPath, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	b := bus.New()
	go b.Run()
	defer b.Close()

	adminSecret := []byte(adminCookieSecret())
	adminSrv := admin.New(st, adminSecret, log)
	httpSrv := &http.Server{
		Addr:    net.JoinHostPort(hostname, fmt.Sprintf("%d", webPort)),
		Handler: adminSrv,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin console failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	l := &listener.Listener{
		Addr:  net.JoinHostPort(hostname, fmt.Sprintf("%d", port)),
		Store: st,
		Bus:   b,
		Log:   log,
	}
	return l.ListenAndServe(ctx)
}

// adminCookieSecret resolves the HMAC key for admin session cookies. A
// production deployment should set CHAT_ADMIN_SECRET; without it, a
// process-lifetime-only value is used, which logs every administrator
// out on restart but never ships a hardcoded key.
func adminCookieSecret() string {
	if s := os.Getenv("CHAT_ADMIN_SECRET"); s != "" {
		return s
	}
	return randomHex(32)
}
