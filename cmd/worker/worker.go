// Package worker holds the commands of processes that run beside "serve".
package worker

import "github.com/spf13/cobra"

// NewWorkerCmd groups the background processes fed by the notification
// events topic.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "worker",
		Short:   "Run background workers",
		Long:    "Background workers consuming the notification events Kafka topic.",
		Example: "  clinic-notify worker audit --config config.yaml",
	}
	cmd.AddCommand(auditCmd)
	return cmd
}
