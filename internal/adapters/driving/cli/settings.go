package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage sync preferences",
	RunE:  runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsAutoSyncCmd = &cobra.Command{
	Use:   "auto-sync <on|off>",
	Short: "Toggle the periodic sync timer",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsAutoSync,
}

var settingsMeteredCmd = &cobra.Command{
	Use:   "metered <on|off>",
	Short: "Allow sync over metered networks",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsMetered,
}

var settingsIntervalCmd = &cobra.Command{
	Use:   "interval <minutes>",
	Short: "Set the periodic sync interval",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsInterval,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsAutoSyncCmd)
	settingsCmd.AddCommand(settingsMeteredCmd)
	settingsCmd.AddCommand(settingsIntervalCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Sync Settings")
	cmd.Println("=============")
	cmd.Println()
	cmd.Printf("  Auto sync:          %s\n", onOff(settings.AutoSync))
	cmd.Printf("  Sync interval:      %s\n", settings.Interval)
	cmd.Printf("  Metered networks:   %s\n", onOff(settings.AllowMetered))
	cmd.Printf("  Background window:  %s\n", settings.BackgroundWindow)
	cmd.Println()
	cmd.Printf("Config file: %s\n", configStore.Path())
	return nil
}

func runSettingsAutoSync(cmd *cobra.Command, args []string) error {
	enabled, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	if err := settingsService.SetAutoSync(enabled); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	cmd.Printf("Auto sync %s.\n", onOff(enabled))
	return nil
}

func runSettingsMetered(cmd *cobra.Command, args []string) error {
	allow, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	if err := settingsService.SetAllowMetered(allow); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	cmd.Printf("Sync over metered networks %s.\n", onOff(allow))
	return nil
}

func runSettingsInterval(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes <= 0 {
		return fmt.Errorf("interval must be a positive number of minutes")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	settings.Interval = time.Duration(minutes) * time.Minute
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	cmd.Printf("Sync interval set to %s.\n", settings.Interval)
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected 'on' or 'off', got %q", s)
	}
}
