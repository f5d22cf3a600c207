package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-brain/internal/dialogue"
)

func init() {
	cmd := &cobra.Command{
		Use:   "touch <zone>",
		Short: "React to a touch without speech",
		Long:  "Run a pure touch turn. The zone is head, back, chest or its sensor number 0-2.",
		Args:  cobra.ExactArgs(1),
		Run:   runTouch,
	}

	cmd.Flags().StringP("session", "s", "", "Session id (default: start a new session)")

	RootCmd.AddCommand(cmd)
}

func runTouch(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	zone, err := parseZone(args[0])
	if err != nil {
		exitErr("touch", err)
	}
	respond(cmd, dialogue.Turn{SessionID: sessionID, TouchZone: &zone})
}
