package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hatrans/hatrans/internal/common/config"
	"github.com/hatrans/hatrans/internal/common/logger"
	"github.com/hatrans/hatrans/internal/common/output"
	"github.com/hatrans/hatrans/internal/hass"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the hatrans configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Run:   runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active configuration",
	Run:   runConfigShow,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and test the connection",
	Run:   runConfigCheck,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path, err := config.DefaultConfigPath()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	if _, err := os.Stat(path); err == nil {
		output.PrintWarning("Configuration already exists at %s", path)
		return
	}

	if err := config.Default().SaveTo(path); err != nil {
		logger.Error("writing config: %v", err)
		os.Exit(1)
	}

	output.PrintSuccess("Created %s", path)
	output.PrintInfo("Fill in homeassistant.url, homeassistant.token and translator.agent")
	output.PrintInfo("Run 'hatrans agents' to list available conversation agents")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	configPath, err := config.FindConfigPath()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		logger.Error("loading config: %v", err)
		os.Exit(1)
	}

	fmt.Println()
	output.Header.Println("Configuration")
	fmt.Println()
	fmt.Printf("  File:          %s\n", configPath)
	fmt.Printf("  Server:        %s\n", valueOrUnset(cfg.HomeAssistant.URL))
	fmt.Printf("  Token:         %s\n", maskToken(cfg.HomeAssistant.Token))
	fmt.Printf("  Agent:         %s\n", valueOrUnset(cfg.Translator.Agent))
	fmt.Printf("  Poll interval: %s\n", valueOrUnset(cfg.Translator.PollInterval))
	fmt.Printf("  Notes TTL:     %s\n", valueOrUnset(cfg.Translator.NotesTTL))
	fmt.Printf("  Reapply:       %v\n", cfg.Translator.Reapply)
	fmt.Printf("  Mirror attrs:  %v\n", cfg.Translator.MirrorAttributes)
	fmt.Printf("  GitHub token:  %s\n", maskToken(cfg.GitHub.Token))
	fmt.Println()
	fmt.Printf("  Prompt:        %s\n", firstLine(cfg.Prompt()))
	fmt.Println()
}

func runConfigCheck(cmd *cobra.Command, args []string) {
	configPath, err := config.FindConfigPath()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		logger.Error("loading config: %v", err)
		os.Exit(1)
	}

	if err := cfg.Validate(configPath); err != nil {
		output.PrintError("%v", err)
		os.Exit(1)
	}
	output.PrintSuccess("Configuration is valid")

	serverURL, _ := cfg.ServerURL()
	client := hass.NewClient(serverURL, cfg.HomeAssistant.Token)
	ctx := context.Background()

	if err := client.CheckAPI(ctx); err != nil {
		output.PrintError("Home Assistant unreachable: %v", err)
		os.Exit(1)
	}
	output.PrintSuccess("Connected to %s", serverURL)

	agent, err := client.State(ctx, cfg.Translator.Agent)
	if err != nil {
		output.PrintError("Agent %s not found: %v", cfg.Translator.Agent, err)
		os.Exit(1)
	}
	output.PrintSuccess("Agent %s is available (%s)", agent.EntityID, agent.State)

	updates, err := client.StatesByDomain(ctx, "update")
	if err != nil {
		output.PrintError("Listing update entities: %v", err)
		os.Exit(1)
	}
	output.PrintSuccess("Found %d update entity(ies)", len(updates))
}

func valueOrUnset(s string) string {
	if s == "" {
		return output.Sprint(output.Dim, "(not set)")
	}
	return s
}

func maskToken(token string) string {
	if token == "" {
		return output.Sprint(output.Dim, "(not set)")
	}
	if strings.HasPrefix(token, "${") {
		// Environment reference, safe to show as-is.
		return token
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "…" + token[len(token)-4:]
}
