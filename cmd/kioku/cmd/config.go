package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kioku-dev/kioku/internal/config"
	"github.com/kioku-dev/kioku/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the user-level kioku config",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigBackupsCmd())
	cmd.AddCommand(newConfigRestoreCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default user-level config, backing up any existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing user config")
	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			return fmt.Errorf("user config already exists at %s; pass --force to overwrite", path)
		}
		backupPath, err := config.BackupUserConfig()
		if err != nil {
			return fmt.Errorf("failed to back up existing config: %w", err)
		}
		if backupPath != "" {
			out.Statusf("i", "backed up existing config to %s", backupPath)
		}
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	out.Successf("wrote default config to %s", path)
	return nil
}

func newConfigBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List available user config backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigBackups(cmd)
		},
	}
}

func runConfigBackups(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	backups, err := config.ListUserConfigBackups()
	if err != nil {
		return fmt.Errorf("failed to list config backups: %w", err)
	}
	if len(backups) == 0 {
		out.Status("i", "no config backups found")
		return nil
	}
	for _, b := range backups {
		out.Statusf("-", "%s", b)
	}
	return nil
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user config from a backup, backing up the current one first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigRestore(cmd, args[0])
		},
	}
}

func runConfigRestore(cmd *cobra.Command, backupPath string) error {
	out := output.New(cmd.OutOrStdout())
	if err := config.RestoreUserConfig(backupPath); err != nil {
		return fmt.Errorf("failed to restore config: %w", err)
	}
	out.Successf("restored config from %s", backupPath)
	return nil
}
