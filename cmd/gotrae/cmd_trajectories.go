package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/config"
	"github.com/elee1766/gotrae/src/storage"
)

// TrajectoriesCmd inspects the trajectory database.
type TrajectoriesCmd struct {
	List   TrajectoriesListCmd   `cmd:"" default:"withargs" help:"List recorded executions, newest first"`
	Show   TrajectoriesShowCmd   `cmd:"" help:"Show one execution and its steps"`
	Export TrajectoriesExportCmd `cmd:"" help:"Write one execution to a JSON file"`
}

// dbFlags locate the trajectory database.
type dbFlags struct {
	StoragePath string `name:"storage-path" type:"path" help:"Trajectory database path"`
}

// withDB opens the configured database for the duration of fn.
func (c dbFlags) withDB(cli *CLI, fn func(ctx context.Context, db *storage.DB) error) error {
	e, err := setup(cli, config.Overrides{StoragePath: c.StoragePath})
	if err != nil {
		return err
	}
	defer e.Close()
	if e.cfg.Storage.Disabled {
		return errors.New("trajectory storage is disabled")
	}
	db, err := e.openStorage()
	if err != nil {
		return err
	}
	return fn(context.Background(), db)
}

// TrajectoriesListCmd lists stored executions.
type TrajectoriesListCmd struct {
	dbFlags `embed:""`

	Limit int  `short:"n" default:"20" help:"Maximum number of executions; 0 lists all"`
	JSON  bool `help:"Print JSON"`
}

func (c *TrajectoriesListCmd) Run(kctx *kong.Context, cli *CLI) error {
	return c.withDB(cli, func(ctx context.Context, db *storage.DB) error {
		list, err := storage.ListTrajectories(ctx, db.DB(), c.Limit)
		if err != nil {
			return fmt.Errorf("failed to list trajectories: %w", err)
		}
		if c.JSON {
			return writeJSON(kctx.Stdout, list)
		}
		return printTrajectories(kctx.Stdout, list)
	})
}

// TrajectoriesShowCmd prints one execution.
type TrajectoriesShowCmd struct {
	dbFlags `embed:""`

	ID   string `arg:"" help:"Execution ID"`
	JSON bool   `help:"Print JSON"`
}

func (c *TrajectoriesShowCmd) Run(kctx *kong.Context, cli *CLI) error {
	return c.withDB(cli, func(ctx context.Context, db *storage.DB) error {
		export, err := storage.LoadExport(ctx, db.DB(), c.ID)
		if err != nil {
			return fmt.Errorf("trajectory %s: %w", c.ID, err)
		}
		if c.JSON {
			return writeJSON(kctx.Stdout, export)
		}
		printTrajectory(kctx.Stdout, export)
		return nil
	})
}

// TrajectoriesExportCmd writes one execution as JSON.
type TrajectoriesExportCmd struct {
	dbFlags `embed:""`

	ID     string `arg:"" help:"Execution ID"`
	Output string `arg:"" type:"path" help:"Output file"`
}

func (c *TrajectoriesExportCmd) Run(kctx *kong.Context, cli *CLI) error {
	return c.withDB(cli, func(ctx context.Context, db *storage.DB) error {
		if err := storage.ExportJSON(ctx, db.DB(), afero.NewOsFs(), c.ID, c.Output); err != nil {
			return fmt.Errorf("trajectory %s: %w", c.ID, err)
		}
		fmt.Fprintf(kctx.Stdout, "Trajectory saved to %s\n", c.Output)
		return nil
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTrajectories(w io.Writer, list []storage.Trajectory) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No trajectories recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATE\tSUCCESS\tMODEL\tTASK")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			t.ID, t.StartTime.Local().Format(time.DateTime), t.State, t.Success, t.Model, ansi.Truncate(oneLine(t.Task), 60, "…"))
	}
	return tw.Flush()
}

func printTrajectory(w io.Writer, e *storage.TrajectoryExport) {
	fmt.Fprintf(w, "ID:       %s\n", e.ID)
	fmt.Fprintf(w, "Task:     %s\n", e.Task)
	fmt.Fprintf(w, "Project:  %s\n", e.ProjectPath)
	fmt.Fprintf(w, "Model:    %s/%s\n", e.Provider, e.Model)
	fmt.Fprintf(w, "State:    %s (success: %t)\n", e.State, e.Success)
	fmt.Fprintf(w, "Duration: %v\n", time.Duration(e.ExecutionTimeMs)*time.Millisecond)
	fmt.Fprintf(w, "Tokens:   %d in, %d out\n", e.InputTokens, e.OutputTokens)
	if e.FinalResult != nil {
		fmt.Fprintf(w, "Result:   %s\n", *e.FinalResult)
	}
	for _, s := range e.Steps {
		fmt.Fprintf(w, "\n[%d] %s\n", s.StepNumber, s.State)
		if s.Content != "" {
			fmt.Fprintf(w, "  %s\n", ansi.Truncate(oneLine(s.Content), 120, "…"))
		}
		if s.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", s.Error)
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
