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
		Use:   "list",
		Short: "List the robot's memories",
		Run:   runList,
	}

	cmd.Flags().StringP("moods", "m", "", "Filter by moods (comma-separated)")
	cmd.Flags().Bool("important", false, "Order by importance score")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("ids-only", false, "Only output session/id pairs")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	moodsStr, _ := cmd.Flags().GetString("moods")
	important, _ := cmd.Flags().GetBool("important")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	var moods []string
	if moodsStr != "" {
		for _, m := range strings.Split(moodsStr, ",") {
			m = strings.TrimSpace(m)
			if m != "" {
				moods = append(moods, m)
			}
		}
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	records, err := a.store.ScanByOwner(cmd.Context(), a.robot(), limit, store.ScanFilter{
		Moods:        moods,
		ByImportance: important,
	})
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, r := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\n", r.SessionID, r.ID)
		}
		return
	}

	b, _ := json.MarshalIndent(records, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
