package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-brain/internal/dialogue"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Render the prompts a turn would send",
		Long:  "Render the system and interaction prompts for a turn without calling the model or changing memory.",
		Run:   runPrompt,
	}

	cmd.Flags().StringP("session", "s", "", "Session id")
	cmd.Flags().StringP("mood", "m", "", "User mood (default: perceived from the text)")
	cmd.Flags().StringP("touch", "t", "", "Touch zone: head, back, chest or 0-2")
	cmd.Flags().String("only", "", "Print only one prompt as text: system or interaction")

	RootCmd.AddCommand(cmd)
}

func runPrompt(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	mood, _ := cmd.Flags().GetString("mood")
	touch, _ := cmd.Flags().GetString("touch")
	only, _ := cmd.Flags().GetString("only")

	turn := dialogue.Turn{SessionID: sessionID, UserText: strings.Join(args, " "), Mood: mood}
	if touch != "" {
		zone, err := parseZone(touch)
		if err != nil {
			exitErr("prompt", err)
		}
		turn.TouchZone = &zone
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	engine, err := a.engine()
	if err != nil {
		exitErr("open engine", err)
	}
	turn.OwnerID = a.robot()

	p, err := engine.Preview(cmd.Context(), turn)
	if err != nil {
		exitErr("prompt", err)
	}

	switch only {
	case "system":
		fmt.Fprintln(cmd.OutOrStdout(), p.System)
	case "interaction":
		fmt.Fprintln(cmd.OutOrStdout(), p.Interaction)
	case "":
		b, _ := json.MarshalIndent(p, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	default:
		exitErr("prompt", fmt.Errorf("--only must be system or interaction, got %q", only))
	}
}
