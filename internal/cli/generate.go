package cli

import (
	"github.com/spf13/cobra"

	"moodcanvas/internal/app"
)

var (
	generateForce    bool
	generateOverride string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the painting pipeline once for the current bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().GenerateOnce(cmd.Context(), app.GenerateOptions{
			Force:          generateForce,
			OverrideTokens: generateOverride,
		})
	},
}

func init() {
	generateCmd.Flags().BoolVar(&generateForce, "force", false, "Regenerate even if the bucket already has a painting")
	generateCmd.Flags().StringVar(&generateOverride, "tokens", "", "Comma-separated ticker override list for this run")
}
