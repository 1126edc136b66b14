package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cozy-creator/hf-mirror/internal/config"
	"github.com/cozy-creator/hf-mirror/internal/db"
	"github.com/cozy-creator/hf-mirror/internal/db/models"
	"github.com/cozy-creator/hf-mirror/internal/services/history"
	"github.com/cozy-creator/hf-mirror/pkg/logger"
	"github.com/google/uuid"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent download runs, or the attempts of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	Cmd.Flags().Int("limit", 20, "Number of runs to list")
	Cmd.Flags().Bool("json", false, "Print JSON instead of a table")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	if cfg.DB == nil || cfg.DB.DSN == "" {
		if err := cfg.CreateHomeDir(); err != nil {
			return err
		}
	}

	conn, err := db.Open(cmd.Context(), cfg.DSN())
	if err != nil {
		return err
	}
	defer conn.Close()

	svc := history.NewService(conn, logger.GetLogger())
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}

		details, err := svc.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, details)
		}
		return writeDetails(out, details)
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	runs, err := svc.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, runs)
	}
	return writeRuns(out, runs)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRuns(w io.Writer, runs []models.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODEL\tSTATUS\tSTATE\tATTEMPTS\tSTARTED")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			run.ID, run.Model, run.Status, run.FinalState, run.Attempts, run.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func writeDetails(w io.Writer, details *history.RunDetails) error {
	run := details.Run
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Model:     %s\n", run.Model)
	fmt.Fprintf(w, "Status:    %s (%s)\n", run.Status, run.FinalState)
	if run.LocalDir != "" {
		fmt.Fprintf(w, "Local dir: %s\n", run.LocalDir)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", run.Error)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tATTEMPT\tEXIT\tDURATION\tERROR")
	for _, a := range details.Attempts {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			a.Phase, a.Number, a.ExitCode, time.Duration(a.DurationMs)*time.Millisecond, a.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if m := details.Materialized; m != nil {
		fmt.Fprintf(w, "\nMaterialized %d files and %d directories (%d bytes)\n", m.Files, m.Dirs, m.Bytes)
	}
	if p := details.Published; p != nil {
		fmt.Fprintf(w, "Published %d files\n", p.Files)
	}

	return nil
}
