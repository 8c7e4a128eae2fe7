package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hatrans/hatrans/internal/common/logger"
	"github.com/hatrans/hatrans/internal/common/output"
	"github.com/hatrans/hatrans/internal/hass"
	"github.com/hatrans/hatrans/internal/translator"
	"github.com/spf13/cobra"
)

var (
	translateAll    bool
	translateForce  bool
	translateDryRun bool
)

var translateCmd = &cobra.Command{
	Use:   "translate [entity_id]",
	Short: "Translate release notes for one or all update entities",
	Long: `Run the translation pipeline once, for a single entity or for every
update entity.

Examples:
  hatrans translate update.home_assistant_core   Translate one entity
  hatrans translate --all                        Translate all pending updates
  hatrans translate update.zigbee2mqtt --force   Retranslate even if already done
  hatrans translate --all --dry-run              Show what would be translated`,
	Args: cobra.MaximumNArgs(1),
	Run:  runTranslate,
}

func init() {
	translateCmd.Flags().BoolVar(&translateAll, "all", false, "Process every update entity")
	translateCmd.Flags().BoolVar(&translateForce, "force", false, "Translate even if the version was already processed")
	translateCmd.Flags().BoolVar(&translateDryRun, "dry-run", false, "Resolve notes but do not call the agent or write anything")
	rootCmd.AddCommand(translateCmd)
}

func runTranslate(cmd *cobra.Command, args []string) {
	if len(args) == 0 && !translateAll {
		cmd.Help()
		os.Exit(1)
	}

	p, err := buildPipeline()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if translateDryRun {
		runTranslateDryRun(ctx, p, args)
		return
	}

	var results []translator.Result
	if translateAll {
		results, err = p.watcher.ProcessAll(ctx, translateForce)
		if err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
	} else {
		results = []translator.Result{p.watcher.ProcessEntity(ctx, args[0], translateForce)}
	}

	displayResults(results)
}

// runTranslateDryRun resolves release notes without touching the agent or
// the entities.
func runTranslateDryRun(ctx context.Context, p *pipeline, args []string) {
	states, err := dryRunStates(ctx, p, args)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	fmt.Println()
	output.Header.Println("Dry Run")
	fmt.Println()

	for i := range states {
		preview, err := p.watcher.Preview(ctx, &states[i], translateForce)
		entity := output.FormatEntity(states[i].EntityID)
		switch {
		case err != nil:
			output.Error.Printf("  %s: %v\n", states[i].EntityID, err)
		case preview.Action == translator.ActionSkipped:
			output.Dim.Printf("  %s: skipped (%s)\n", states[i].EntityID, preview.Reason)
		default:
			output.Success.Printf("  %s %s would be translated\n", entity, preview.Version)
			fmt.Printf("    Source: %s\n", preview.Notes.Source)
			fmt.Printf("    Notes:  %s\n", firstLine(preview.Notes.Text))
		}
	}
	fmt.Println()
}

func dryRunStates(ctx context.Context, p *pipeline, args []string) ([]hass.State, error) {
	if len(args) > 0 {
		state, err := p.client.State(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return []hass.State{*state}, nil
	}
	return p.client.StatesByDomain(ctx, "update")
}

func displayResults(results []translator.Result) {
	if len(results) == 0 {
		logger.Info("No update entities found")
		return
	}

	var translated, failed, skipped int

	fmt.Println()
	output.Header.Println("Translation Results")
	fmt.Println()

	for _, r := range results {
		switch r.Action {
		case translator.ActionTranslated:
			translated++
			cacheIndicator := ""
			if r.Notes.FromCache {
				cacheIndicator = output.Sprintf(output.Dim, " (cached notes)")
			}
			output.Success.Printf("  %s %s translated%s\n", r.EntityID, r.Version, cacheIndicator)
			fmt.Printf("    Source: %s\n", r.Notes.Source)
			fmt.Printf("    Result: %s\n", firstLine(r.Translated))
		case translator.ActionReapplied:
			translated++
			output.Info.Printf("  %s %s translation reapplied\n", r.EntityID, r.Version)
		case translator.ActionFailed:
			failed++
			output.Error.Printf("  %s: %s: %v\n", r.EntityID, r.Reason, r.Err)
		case translator.ActionSkipped:
			skipped++
			output.Dim.Printf("  %s: %s\n", r.EntityID, r.Reason)
		}
	}

	fmt.Println()
	if translated > 0 {
		output.Success.Printf("%d entity(ies) updated\n", translated)
	}
	if skipped > 0 {
		output.Dim.Printf("%d skipped\n", skipped)
	}
	if failed > 0 {
		output.Warning.Printf("%d failed, see 'hatrans list --status failed'\n", failed)
		os.Exit(1)
	}
}

// firstLine truncates multi-line text for compact display.
func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " …"
		}
		if i > 120 {
			return s[:i] + "…"
		}
	}
	return s
}
