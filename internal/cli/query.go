package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-brain/internal/fusion"
)

func init() {
	cmd := &cobra.Command{
		Use:   "query [prompt]",
		Short: "Recall memories relevant to a prompt",
		Long:  "Fuse semantic, session and emotional recall into a ranked, deduplicated memory list with a summary.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runQuery,
	}

	cmd.Flags().StringP("session", "s", "", "Session whose window feeds context recall")
	cmd.Flags().IntP("top-k", "k", 0, "Max memories (default: memory.default_top_k)")
	cmd.Flags().Bool("no-context", false, "Skip session context recall")

	RootCmd.AddCommand(cmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	topK, _ := cmd.Flags().GetInt("top-k")
	noContext, _ := cmd.Flags().GetBool("no-context")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	if topK <= 0 {
		topK = a.cfg.Memory.DefaultTopK
	}
	result, err := a.memory.Query(cmd.Context(), fusion.QueryParams{
		OwnerID:    a.robot(),
		Prompt:     strings.Join(args, " "),
		TopK:       topK,
		SessionID:  sessionID,
		UseContext: !noContext,
	})
	if err != nil {
		exitErr("query", err)
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
