package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/dashboard"
	"github.com/smartm-app/smartm/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Run auto-sync, notification checks and the dashboard (foreground)",
	Long: `Run the SmartM background services until interrupted:

  1. Auto-sync: a pass every syncFrequency minutes while auto-sync is on and
     changes are pending
  2. Storage watch (file driver): changes written by other processes are
     picked up and re-broadcast
  3. Notification checks: personnel returns, task deadlines, low operability
  4. Dashboard: JSON API and WebSocket feed of the sync state

Endpoints:
  GET  /api/sync            current sync state
  POST /api/sync            run a pass ({"types": [...], "mode": "online"})
  PUT  /api/sync/settings   {"autoSync": true, "syncFrequency": 15}
  GET  /api/operability     operability and presence
  GET  /ws                  sync_state and sync_result messages
  GET  /health`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		port := cfg.Dashboard.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		noDashboard, _ := cmd.Flags().GetBool("no-dashboard")

		d, err := a.Daemon()
		if err != nil {
			fatalf("creating daemon: %v", err)
		}

		var server *dashboard.Server
		if !noDashboard {
			server = dashboard.NewServer(&dashboard.Config{Port: port, Logger: logger})
			handler := dashboard.NewHandler(server, a.Sync, a.Service, a.Mode)
			if err := server.Start(); err != nil {
				fatalf("failed to start dashboard: %v", err)
			}
			handler.Start(ctx)

			fmt.Printf("%s Dashboard on http://localhost:%d\n", ui.RenderAccent("●"), port)
			fmt.Printf("   WebSocket: ws://localhost:%d/ws\n", port)
		}
		fmt.Printf("%s Storage: %s, mode: %s\n", ui.RenderAccent("●"), a.Kind, a.Mode)
		fmt.Println("\nPress Ctrl+C to stop...")

		err = d.Run(ctx)

		if server != nil {
			fmt.Println("\nShutting down dashboard...")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Warn("dashboard shutdown failed", zap.Error(stopErr))
			}
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
			_ = a.Close()
			os.Exit(1)
		}
		fmt.Println("Stopped")
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8787, "Dashboard port (default from config)")
	serveCmd.Flags().Bool("no-dashboard", false, "Run without the HTTP dashboard")
	rootCmd.AddCommand(serveCmd)
}
