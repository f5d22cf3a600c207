package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-brain/internal/config"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config.toml",
		Run:   runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Run:   runConfigShow,
	}

	configCmd.AddCommand(initCmd, showCmd)
	RootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")

	path := configPath
	if path == "" {
		path = filepath.Join(config.Default().Storage.DataDir, "config.toml")
	}
	if _, err := os.Stat(path); err == nil && !force {
		exitErr("config init", fmt.Errorf("%s exists, use --force to overwrite", path))
	}
	if err := config.Write(path, config.Default()); err != nil {
		exitErr("config init", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"path":%q}`+"\n", path)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	// secrets stay out of terminal output
	cfg.LLM.APIKey = ""
	cfg.Embedding.APIKey = ""

	if err := config.Encode(cmd.OutOrStdout(), cfg); err != nil {
		exitErr("config show", err)
	}
}
