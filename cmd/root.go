package cmd

import (
	"fmt"
	"os"

	"github.com/jmehdipour/clinic-notify/cmd/worker"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "clinic-notify",
		Short: "Clinic WhatsApp reminder service",
		Long: `clinic-notify books appointment reminders, fires them as WhatsApp
template messages at their send time, and reconciles patient replies
(confirm / reschedule) with their latest appointment.

Reminder jobs are persisted before they are armed, so "serve" re-arms
every scheduled job after a restart.`,
		SilenceUsage: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}
