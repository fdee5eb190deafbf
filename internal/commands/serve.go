package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diogo/techtouch/internal/server"
)

var serveAddrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API for the web front-end",
	Long: `Serve chat, news and channel lookups over HTTP. Chat and the news
stream use server-sent events. The listen address defaults to server.addr
from the config file.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (host:port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddrFlag
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	srv := server.New(server.Config{
		Addr:         addr,
		AllowOrigins: a.cfg.Server.AllowOrigins,
		ModelName:    a.model.Label,
	}, a.chat, a.feeds, a.logger)

	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s (Ctrl+C to stop)\n", srv.Addr())
	return srv.Start(ctx)
}
