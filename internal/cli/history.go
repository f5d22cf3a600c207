package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show a session's conversation history",
		Long:  "Show the recent exchanges of a session as chat messages, oldest first, within the configured char budget.",
		Args:  cobra.ExactArgs(1),
		Run:   runHistory,
	}

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	msgs := a.memory.History(cmd.Context(), args[0])
	if len(msgs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "[]")
		return
	}

	b, _ := json.MarshalIndent(msgs, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
