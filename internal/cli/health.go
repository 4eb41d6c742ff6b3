package cli

import (
	"github.com/spf13/cobra"
)

// healthResult mirrors the /health body
type healthResult struct {
	Status string `json:"status"`
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.Health(cmd.Context()); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(healthResult{Status: "ok"})
			return nil
		},
	}
}
