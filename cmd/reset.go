package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/topic-crawler/internal/app"
)

// newResetCmd creates the 'reset' subcommand.
func newResetCmd() *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete a topic's artifacts, mappings and content hashes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.ResetTopic(cmd.Context(), rt.cfg, topic, app.Options{Logger: rt.logger}); err != nil {
				return fmt.Errorf("reset topic: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "topic state reset")
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic to reset (default is default_topic)")
	return cmd
}
