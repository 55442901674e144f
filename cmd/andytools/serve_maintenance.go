package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// serveMaintenanceCmd keeps the lifecycle manager's cron schedule running
// in the foreground, so the hourly maintenance sweep and the cache's
// periodic expiry reaping actually fire.
var serveMaintenanceCmd = &cobra.Command{
	Use:   "serve-maintenance",
	Short: "Run the lifecycle manager's maintenance schedule in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHost(cfgFile)
		if err != nil {
			return err
		}
		defer h.close()
		if err := h.lifecycle.Initialize(); err != nil {
			return err
		}

		fmt.Println("maintenance schedule running, press Ctrl+C to stop")

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		return nil
	},
}
