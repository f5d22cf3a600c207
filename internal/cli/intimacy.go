package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	intimacyCmd := &cobra.Command{
		Use:   "intimacy",
		Short: "Intimacy between the robot and its owner",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the intimacy value, level and history",
		Run:   runIntimacyShow,
	}

	decayCmd := &cobra.Command{
		Use:   "decay",
		Short: "Apply one round of intimacy decay",
		Long:  "Apply one round of decay. Meant to run from a scheduler after a day without interaction.",
		Run:   runIntimacyDecay,
	}

	intimacyCmd.AddCommand(showCmd, decayCmd)
	RootCmd.AddCommand(intimacyCmd)
}

func runIntimacyShow(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	in, err := a.intimacy.For(a.robot())
	if err != nil {
		exitErr("intimacy", err)
	}

	b, _ := json.MarshalIndent(in.Stats(), "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func runIntimacyDecay(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	in, err := a.intimacy.For(a.robot())
	if err != nil {
		exitErr("intimacy", err)
	}
	change, err := in.Decay()
	if err != nil {
		exitErr("decay", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"old":%d,"new":%d,"level":%q}`+"\n", change.Old, change.New, change.NewLevel)
}
