package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-brain/internal/dialogue"
	"github.com/rcliao/companion-brain/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat [text]",
		Short: "Run one conversational turn",
		Long:  "Run one turn through memory, prompts, the language model and speech. Text can be a positional arg or piped via stdin.",
		Run:   runChat,
	}

	cmd.Flags().StringP("session", "s", "", "Session id (default: start a new session)")
	cmd.Flags().StringP("mood", "m", "", "User mood (default: perceived from the text)")
	cmd.Flags().StringP("touch", "t", "", "Touch zone: head, back, chest or 0-2")
	cmd.Flags().Float64("audio-seconds", 0, "Length of the voice input, in seconds")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	mood, _ := cmd.Flags().GetString("mood")
	touch, _ := cmd.Flags().GetString("touch")
	audio, _ := cmd.Flags().GetFloat64("audio-seconds")

	// Get text: positional arg first, then check stdin
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		text = string(b)
	}

	turn := dialogue.Turn{
		SessionID:    sessionID,
		UserText:     strings.TrimSpace(text),
		Mood:         mood,
		AudioSeconds: audio,
	}
	if touch != "" {
		zone, err := parseZone(touch)
		if err != nil {
			exitErr("chat", err)
		}
		turn.TouchZone = &zone
	}
	respond(cmd, turn)
}

// respond runs turn with the configured engine and prints the reply.
func respond(cmd *cobra.Command, turn dialogue.Turn) {
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

	reply, err := engine.Respond(cmd.Context(), turn)
	if err != nil {
		exitErr("chat", err)
	}

	b, _ := json.MarshalIndent(reply, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

// parseZone accepts a zone name or its sensor number.
func parseZone(s string) (model.TouchZone, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, z := range []model.TouchZone{model.TouchHead, model.TouchBack, model.TouchChest} {
		if s == z.String() {
			return z, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || !model.TouchZone(n).Valid() {
		return 0, fmt.Errorf("unknown touch zone %q", s)
	}
	return model.TouchZone(n), nil
}
