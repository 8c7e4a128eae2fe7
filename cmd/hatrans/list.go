package main

import (
	"fmt"
	"os"

	"github.com/hatrans/hatrans/internal/common/config"
	"github.com/hatrans/hatrans/internal/common/logger"
	"github.com/hatrans/hatrans/internal/common/output"
	"github.com/hatrans/hatrans/internal/translator"
	"github.com/spf13/cobra"
)

var (
	listStatus string
	listClear  bool
	listForget string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the translation ledger",
	Long: `Show which (entity, version) pairs have been translated, reapplied or
failed.

Examples:
  hatrans list                          Show all records
  hatrans list --status failed          Show failed attempts only
  hatrans list --forget update.core@2026.8.0   Drop a record so it can run again
  hatrans list --clear                  Drop all records`,
	Run: runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (applied, translated, failed)")
	listCmd.Flags().StringVar(&listForget, "forget", "", "Remove one record, given as entity_id@version")
	listCmd.Flags().BoolVar(&listClear, "clear", false, "Remove all records")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) {
	ledgerPath, err := config.LedgerPath()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	ledger, err := translator.NewLedger(ledgerPath)
	if err != nil {
		logger.Error("loading ledger: %v", err)
		os.Exit(1)
	}

	switch {
	case listClear:
		if err := ledger.Clear(); err != nil {
			logger.Error("clearing ledger: %v", err)
			os.Exit(1)
		}
		output.PrintSuccess("Ledger cleared")
		return
	case listForget != "":
		runForget(ledger, listForget)
		return
	}

	var records []translator.TranslationRecord
	if listStatus != "" {
		records = ledger.ListByStatus(listStatus)
	} else {
		records = ledger.List()
	}
	displayRecords(records)
}

func runForget(ledger *translator.Ledger, key string) {
	entityID, version, ok := splitLedgerKey(key)
	if !ok {
		logger.Error("invalid record key %q, expected entity_id@version", key)
		os.Exit(1)
	}
	if err := ledger.Delete(entityID, version); err != nil {
		logger.Error("removing record: %v", err)
		os.Exit(1)
	}
	output.PrintSuccess("Forgot %s, it will be processed on the next run", key)
}

// splitLedgerKey splits an entity_id@version key. Entity IDs never
// contain '@', so the first one is the separator even when the version
// carries its own.
func splitLedgerKey(key string) (entityID, version string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '@' {
			return key[:i], key[i+1:], i > 0 && i < len(key)-1
		}
	}
	return "", "", false
}

func displayRecords(records []translator.TranslationRecord) {
	if len(records) == 0 {
		logger.Info("No translation records")
		return
	}

	fmt.Println()
	output.Header.Println("Translation Ledger")
	fmt.Println()

	for _, r := range records {
		output.Entity.Printf("  %s\n", r.EntityID)
		fmt.Printf("    Version:   %s\n", r.Version)
		fmt.Printf("    Status:    %s\n", output.FormatStatus(r.Status))
		if r.Translated != "" {
			fmt.Printf("    Summary:   %s\n", firstLine(r.Translated))
		}
		if r.Error != "" {
			output.Error.Printf("    Error:     %s\n", r.Error)
		}
		fmt.Printf("    Processed: %s\n", r.ProcessedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}

	output.Info.Printf("Total: %d record(s)\n", len(records))
}
