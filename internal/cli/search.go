package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-brain/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by keyword",
		Long:  "Search user and robot text for matching substrings, most recent first.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("session", "s", "", "Filter by session")
	cmd.Flags().StringP("mood", "m", "", "Filter by mood")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	mood, _ := cmd.Flags().GetString("mood")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	results, err := a.store.Search(cmd.Context(), store.SearchParams{
		OwnerID:   a.robot(),
		SessionID: sessionID,
		Query:     query,
		Mood:      mood,
		Limit:     limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "[]")
		return
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
