package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hatrans/hatrans/internal/common/config"
	"github.com/hatrans/hatrans/internal/common/logger"
	"github.com/hatrans/hatrans/internal/common/output"
	"github.com/hatrans/hatrans/internal/hass"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List available conversation agents",
	Long: `List the conversation entities exposed by Home Assistant. Put one of
them in the configuration as translator.agent.`,
	Run: runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) {
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

	serverURL, err := cfg.ServerURL()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	if cfg.HomeAssistant.Token == "" {
		logger.Error("%v", config.ErrTokenNotSet)
		os.Exit(1)
	}

	client := hass.NewClient(serverURL, cfg.HomeAssistant.Token)
	agents, err := client.StatesByDomain(context.Background(), "conversation")
	if err != nil {
		logger.Error("listing conversation entities: %v", err)
		os.Exit(1)
	}

	if len(agents) == 0 {
		logger.Info("No conversation agents found")
		return
	}

	fmt.Println()
	output.Header.Println("Conversation Agents")
	fmt.Println()

	for _, agent := range agents {
		marker := "  "
		if agent.EntityID == cfg.Translator.Agent {
			marker = output.Sprint(output.Success, "* ")
		}
		fmt.Printf("%s%s", marker, output.FormatEntity(agent.EntityID))
		if name := agent.FriendlyName(); name != "" && name != agent.EntityID {
			output.Dim.Printf("  (%s)", name)
		}
		fmt.Println()
	}

	fmt.Println()
	if cfg.Translator.Agent == "" {
		output.Info.Println("Set translator.agent in the config to pick one")
	}
}
