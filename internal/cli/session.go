package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Session management",
	}

	startCmd := &cobra.Command{
		Use:   "start [session-id]",
		Short: "Start a session (idempotent)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runSessionStart,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the robot's sessions, newest first",
		Run:   runSessionList,
	}
	listCmd.Flags().IntP("limit", "l", 20, "Max results")

	purgeCmd := &cobra.Command{
		Use:   "purge <session-id>",
		Short: "Delete a session and its memories",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionPurge,
	}

	sessionCmd.AddCommand(startCmd, listCmd, purgeCmd)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionStart(cmd *cobra.Command, args []string) {
	var sessionID string
	if len(args) > 0 {
		sessionID = args[0]
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	id, err := a.memory.StartSession(cmd.Context(), a.robot(), sessionID)
	if err != nil {
		exitErr("start session", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"robot_id":%q,"session_id":%q}`+"\n", a.robot(), id)
}

func runSessionList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	sessions, err := a.store.ListSessions(cmd.Context(), a.robot(), limit)
	if err != nil {
		exitErr("list sessions", err)
	}

	b, _ := json.MarshalIndent(sessions, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func runSessionPurge(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	n, err := a.memory.PurgeSession(cmd.Context(), args[0])
	if err != nil {
		exitErr("purge session", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"session_id":%q,"deleted":%d}`+"\n", args[0], n)
}
