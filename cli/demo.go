package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sightline-labs/sightflow/bus"
	"github.com/sightline-labs/sightflow/core"
	"github.com/sightline-labs/sightflow/pipeline"
	"github.com/sightline-labs/sightflow/step"
)

// Exit codes returned to the shell.
const (
	exitSuccess      = 0
	exitValidation   = 1
	exitRuntime      = 2
	exitFileNotFound = 3
	exitInputParse   = 4
	exitTimeout      = 10
)

// NewDemoCmd creates the "demo" subcommand.
func NewDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo <file>",
		Short: "Run one recognize-then-act cycle with scripted collaborators",
		Long: "Demo loads a pipeline file and executes a single recognition step\n" +
			"followed by an action step, using a synthetic frame and a scripted\n" +
			"recognizer. It exercises a pipeline's gating and telemetry without\n" +
			"a real capture device.",
		Args: cobra.ExactArgs(1),
		RunE: runDemo,
	}

	cmd.Flags().String("entry", "", "Entry node (default: first node by name)")
	cmd.Flags().StringSlice("candidates", nil, "Candidate nodes in evaluation order (default: the entry node)")
	cmd.Flags().String("match", "", "Candidate the scripted recognizer matches (default: last candidate; a name outside the list forces a miss)")
	cmd.Flags().Bool("debug", false, "Emit lifecycle events for every node")
	cmd.Flags().Bool("focus", false, "Force focus on every node")
	cmd.Flags().String("format", "pretty", "Output format: pretty | json")
	cmd.Flags().String("db", "", "Append emitted events to a SQLite event store at this path")
	cmd.Flags().Duration("timeout", time.Minute, "Execution timeout")

	return cmd
}

// demoPlan is the resolved shape of one demo cycle.
type demoPlan struct {
	entry      string
	candidates []string
	match      string
}

func runDemo(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	format, _ := cmd.Flags().GetString("format")
	debug, _ := cmd.Flags().GetBool("debug")
	focus, _ := cmd.Flags().GetBool("focus")
	out := cmd.OutOrStdout()

	def, err := loadPipelineForDemo(cmd, filePath)
	if err != nil {
		return err
	}
	if focus {
		for name, cfg := range def {
			cfg.Focus = true
			def[name] = cfg
		}
	}

	plan, err := resolveDemoPlan(cmd, def)
	if err != nil {
		return err
	}

	store, err := openDemoStore(cmd)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	log := &eventLog{}
	handlers := []step.EventHandler{log.add}
	if format != "json" {
		handlers = append(handlers, printEventHandler(out))
	}
	if store != nil {
		handlers = append(handlers, func(e step.Event) {
			_ = store.Append(context.Background(), e)
		})
	}

	session := step.NewSession(step.SessionConfig{
		Debug:   debug,
		Handler: step.MultiEventHandler(handlers...),
		Logger:  demoLogger(cmd.ErrOrStderr(), debug),
	})
	runner := session.NewRunner(step.RunnerConfig{
		Entry:      plan.entry,
		Exec:       pipeline.NewContext(def),
		Controller: demoController(),
		Recognizer: demoRecognizer(session, plan.match),
		Actuator:   demoActuator(),
	})

	ctx, cancel, timeout := demoContext(cmd)
	defer cancel()

	img, err := runner.Screencap(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return exitError(exitTimeout, "demo timed out after %s", timeout)
		}
		return exitError(exitRuntime, "capturing frame: %v", err)
	}

	rec := runner.RunRecognition(ctx, img, plan.candidates)

	var record core.StepRecord
	acted := false
	if rec.Matched() {
		record = runner.RunAction(ctx, rec)
		acted = true
	}

	return writeDemoOutput(out, format, runner, rec, record, acted, log.events)
}

func loadPipelineForDemo(cmd *cobra.Command, filePath string) (core.Definition, error) {
	def, err := pipeline.Load(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, exitError(exitFileNotFound, "file not found: %s", filePath)
		}
		return nil, exitError(exitInputParse, "%v", err)
	}
	if len(def) == 0 {
		return nil, exitError(exitValidation, "pipeline defines no nodes")
	}
	return def, nil
}

func resolveDemoPlan(cmd *cobra.Command, def core.Definition) (demoPlan, error) {
	entry, _ := cmd.Flags().GetString("entry")
	candidates, _ := cmd.Flags().GetStringSlice("candidates")
	match, _ := cmd.Flags().GetString("match")

	if entry == "" {
		names := make([]string, 0, len(def))
		for name := range def {
			names = append(names, name)
		}
		sort.Strings(names)
		entry = names[0]
	}
	if len(candidates) == 0 {
		candidates = []string{entry}
	}
	if match == "" {
		match = candidates[len(candidates)-1]
	}

	diags := pipeline.Validate(def)
	diags = append(diags, pipeline.ValidateEntry(def, entry)...)
	if pipeline.HasErrors(diags) {
		printDiagnosticsText(cmd.ErrOrStderr(), diags)
		return demoPlan{}, exitError(exitValidation, "%v", &pipeline.DiagnosticError{Diagnostics: diags})
	}

	return demoPlan{entry: entry, candidates: candidates, match: match}, nil
}

func openDemoStore(cmd *cobra.Command) (*bus.SQLiteEventStore, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return nil, nil
	}
	store, err := bus.NewSQLiteEventStore(bus.SQLiteStoreConfig{DSN: dbPath})
	if err != nil {
		return nil, exitError(exitRuntime, "opening event store: %v", err)
	}
	return store, nil
}

func demoContext(cmd *cobra.Command) (context.Context, context.CancelFunc, time.Duration) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return ctx, cancel, timeout
}

func demoLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// demoController captures a synthetic 1280x720 frame.
func demoController() core.Controller {
	return core.ControllerFunc(func(context.Context) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 1280, 720)), nil
	})
}

// demoRecognizer matches exactly one scripted candidate, reporting the
// centered half-frame as its region. Every attempt consumes a
// recognition id, hits and misses alike.
func demoRecognizer(session *step.Session, match string) core.RecognizerFactory {
	return func(_ core.ExecContext, img image.Image) core.Recognizer {
		bounds := img.Bounds()
		return core.RecognizerFunc(func(_ context.Context, cfg core.NodeConfig) core.Recognition {
			res := core.Recognition{Node: cfg.Name, RecoID: session.NextRecoID()}
			if cfg.Name == match {
				res.Region = &core.Rect{
					X:      bounds.Dx() / 4,
					Y:      bounds.Dy() / 4,
					Width:  bounds.Dx() / 2,
					Height: bounds.Dy() / 2,
				}
			}
			return res
		})
	}
}

// demoActuator completes every action without touching anything.
func demoActuator() core.ActuatorFactory {
	return func(core.ExecContext) core.Actuator {
		return core.ActuatorFunc(func(context.Context, core.Rect, int64, core.NodeConfig) bool {
			return true
		})
	}
}

// eventLog collects events in emit order.
type eventLog struct {
	events []step.Event
}

func (l *eventLog) add(e step.Event) {
	l.events = append(l.events, e)
}

func printEventHandler(w io.Writer) step.EventHandler {
	return func(e step.Event) {
		fmt.Fprintln(w, eventLine(e))
	}
}

// eventLine renders one event as a compact text line.
func eventLine(e step.Event) string {
	line := fmt.Sprintf("[%3d] %-22s node=%s", e.Seq, e.Kind, e.Node)
	switch {
	case e.StepID != 0:
		line += fmt.Sprintf(" step_id=%d", e.StepID)
	case e.RecoID != 0:
		line += fmt.Sprintf(" reco_id=%d", e.RecoID)
	case len(e.Candidates) > 0:
		line += fmt.Sprintf(" candidates=%s", strings.Join(e.Candidates, ","))
	}
	return line
}

func writeDemoOutput(
	w io.Writer,
	format string,
	runner *step.Runner,
	rec core.Recognition,
	record core.StepRecord,
	acted bool,
	events []step.Event,
) error {
	switch format {
	case "json":
		return writeDemoJSON(w, runner, rec, record, acted, events)
	case "pretty":
		fmt.Fprint(w, formatDemoPretty(runner, rec, record, acted, len(events)))
		return nil
	default:
		return exitError(exitInputParse, "unknown format %q (use pretty or json)", format)
	}
}

func writeDemoJSON(
	w io.Writer,
	runner *step.Runner,
	rec core.Recognition,
	record core.StepRecord,
	acted bool,
	events []step.Event,
) error {
	msgs := make([]map[string]any, 0, len(events))
	for _, e := range events {
		msgs = append(msgs, bus.EventJSON(e))
	}

	result := map[string]any{
		"run_id":  runner.RunID(),
		"entry":   runner.Entry(),
		"matched": rec.Matched(),
		"events":  msgs,
	}
	if rec.Matched() {
		result["node"] = rec.Node
		result["reco_id"] = rec.RecoID
		result["region"] = rec.Region
	}
	if acted {
		result["record"] = record
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// formatDemoPretty returns a human-readable summary of the cycle.
func formatDemoPretty(runner *step.Runner, rec core.Recognition, record core.StepRecord, acted bool, emitted int) string {
	var sb strings.Builder

	sb.WriteString("=== Recognition ===\n")
	sb.WriteString(fmt.Sprintf("  Run ID: %s\n", runner.RunID()))
	sb.WriteString(fmt.Sprintf("  Matched: %v\n", rec.Matched()))
	if rec.Matched() {
		sb.WriteString(fmt.Sprintf("  Node: %s\n", rec.Node))
		sb.WriteString(fmt.Sprintf("  Reco ID: %d\n", rec.RecoID))
		sb.WriteString(fmt.Sprintf("  Region: (%d,%d) %dx%d\n",
			rec.Region.X, rec.Region.Y, rec.Region.Width, rec.Region.Height))
	}

	if acted {
		sb.WriteString("\n=== Step Record ===\n")
		sb.WriteString(fmt.Sprintf("  ID: %d\n", record.ID))
		sb.WriteString(fmt.Sprintf("  Node: %s\n", record.Node))
		sb.WriteString(fmt.Sprintf("  Reco ID: %d\n", record.RecoID))
		sb.WriteString(fmt.Sprintf("  Completed: %v\n", record.Completed))
	}

	sb.WriteString(fmt.Sprintf("\n%d %s emitted\n", emitted, pluralize("event", emitted)))
	return sb.String()
}
