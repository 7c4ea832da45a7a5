package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/edgerun/pkg/config"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Validate a worker manifest",
	Long: `apply parses and validates a worker manifest the way serve --manifest
would consume it at startup, without needing a running edgerun process —
edgerun has no cluster control plane to apply against, so this is a dry
run: it reports what would be prebooted and any errors in the manifest.

Examples:
  edgerun apply -f services.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to validate (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, _ []string) error {
	filename, _ := cmd.Flags().GetString("file")

	m, err := config.LoadManifest(filename)
	if err != nil {
		return err
	}

	if len(m.Services) == 0 {
		fmt.Println("Manifest defines no services.")
		return nil
	}

	fmt.Printf("Manifest defines %d service(s):\n", len(m.Services))
	for _, svc := range m.Services {
		opts := svc.WorkerInitOpts()
		fmt.Printf("  %s\n", svc.ServicePath)
		fmt.Printf("    env vars:              %d\n", len(opts.EnvVars))
		fmt.Printf("    wall clock limit (ms): %d\n", opts.Limits.WallClockMS)
		fmt.Printf("    max CPU bursts:        %d\n", opts.Limits.MaxCPUBursts)
	}

	return nil
}
