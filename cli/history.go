package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sightline-labs/sightflow/bus"
)

// NewHistoryCmd creates the "history" subcommand.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect events persisted in a SQLite event store",
		Long: "History reads a SQLite event store written by a demo run (or any\n" +
			"process using the store) and lists its runs or the events of one run.",
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().String("db", "", "Path to the SQLite event store (required)")
	cmd.Flags().String("run", "", "Run ID to list events for (default: list run IDs)")
	cmd.Flags().Uint64("after-seq", 0, "Only events with sequence number greater than this")
	cmd.Flags().Int("limit", 0, "Maximum events to return (0 = no limit)")
	cmd.Flags().String("format", "text", "Output format: text | json")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	runID, _ := cmd.Flags().GetString("run")
	afterSeq, _ := cmd.Flags().GetUint64("after-seq")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	// Opening a store creates the file, so probe first to keep a typo
	// from materializing an empty database.
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "event store not found: %s", dbPath)
		}
		return exitError(exitRuntime, "%v", err)
	}

	store, err := bus.NewSQLiteEventStore(bus.SQLiteStoreConfig{DSN: dbPath})
	if err != nil {
		return exitError(exitRuntime, "opening event store: %v", err)
	}
	defer store.Close()

	if runID == "" {
		return listHistoryRuns(cmd, out, store, format)
	}
	return listHistoryEvents(cmd, out, store, runID, afterSeq, limit, format)
}

func listHistoryRuns(cmd *cobra.Command, w io.Writer, store *bus.SQLiteEventStore, format string) error {
	ids, err := store.RunIDs(cmd.Context())
	if err != nil {
		return exitError(exitRuntime, "listing runs: %v", err)
	}

	if format == "json" {
		if ids == nil {
			ids = []string{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ids)
	}

	if len(ids) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

func listHistoryEvents(
	cmd *cobra.Command,
	w io.Writer,
	store *bus.SQLiteEventStore,
	runID string,
	afterSeq uint64,
	limit int,
	format string,
) error {
	events, err := store.List(cmd.Context(), runID, afterSeq, limit)
	if err != nil {
		return exitError(exitRuntime, "listing events: %v", err)
	}

	if format == "json" {
		msgs := make([]map[string]any, 0, len(events))
		for _, e := range events {
			msgs = append(msgs, bus.EventJSON(e))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}

	if len(events) == 0 {
		fmt.Fprintf(w, "No events for run %s.\n", runID)
		return nil
	}
	for _, e := range events {
		fmt.Fprintf(w, "%s %s\n", e.Time.UTC().Format(time.RFC3339), eventLine(e))
	}
	fmt.Fprintf(w, "\n%d %s\n", len(events), pluralize("event", len(events)))
	return nil
}
