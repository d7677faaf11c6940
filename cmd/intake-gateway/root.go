package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "intake-gateway",
		Short: "Problem intake gateway: validation and per-visitor rate limiting",
		Long: `intake-gateway sits between the lead-generation funnel and the AI orchestration
service. Every problem submission is validated (length, word count, repetition)
and rate limited per visitor before it is proxied upstream.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "YAML config file (env vars override it)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newSubmissionsCmd())
	return root
}
