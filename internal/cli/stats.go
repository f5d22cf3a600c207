package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-brain/internal/fusion"
	"github.com/rcliao/companion-brain/internal/persona"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory, growth and intimacy statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	Memory   *fusion.Stats         `json:"memory"`
	Growth   growthOutput          `json:"growth"`
	Intimacy persona.IntimacyStats `json:"intimacy"`
}

type growthOutput struct {
	Stage        string  `json:"stage"`
	Days         int     `json:"days"`
	Interactions int     `json:"interactions"`
	AudioSeconds float64 `json:"audio_seconds"`
}

func runStats(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	robot := a.robot()

	mem, err := a.memory.Stats(ctx, robot)
	if err != nil {
		exitErr("stats", err)
	}
	prog, err := a.memory.Progress(ctx, robot)
	if err != nil {
		exitErr("progress", err)
	}
	in, err := a.intimacy.For(robot)
	if err != nil {
		exitErr("intimacy", err)
	}

	days := persona.DaysSince(prog.FirstSeen, time.Now())
	stage := string(persona.StageFor(days, prog.Interactions, prog.AudioSeconds))
	if a.cfg.Robot.Stage != "" {
		stage = a.cfg.Robot.Stage
	}

	b, _ := json.MarshalIndent(statsOutput{
		Memory: mem,
		Growth: growthOutput{
			Stage:        stage,
			Days:         days,
			Interactions: prog.Interactions,
			AudioSeconds: prog.AudioSeconds,
		},
		Intimacy: in.Stats(),
	}, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
