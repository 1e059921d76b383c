package cli

import (
	"github.com/spf13/cobra"

	"moodcanvas/internal/app"
)

var runOnStart bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled painting loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{RunOnStart: runOnStart})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Paint the current bucket immediately before entering the loop")
}
