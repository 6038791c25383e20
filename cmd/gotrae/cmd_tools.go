package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/shell"
	"github.com/elee1766/gotrae/src/traeagent/tools"
)

// ToolsCmd represents all tool-related commands
type ToolsCmd struct {
	List ToolsListCmd `cmd:"" default:"withargs" help:"List available tools"`
	Show ToolsShowCmd `cmd:"" help:"Show a tool's description and parameter schema"`
}

// ToolsListCmd lists available tools
type ToolsListCmd struct {
	Format string `short:"f" enum:"table,json,simple" default:"table" help:"Output format"`
}

func (c *ToolsListCmd) Run(kctx *kong.Context) error {
	all, err := buildTools(tools.AllToolNames)
	if err != nil {
		return err
	}
	return printTools(kctx.Stdout, c.Format, all)
}

// ToolsShowCmd shows tool details
type ToolsShowCmd struct {
	Name string `arg:"" help:"Tool name"`
}

func (c *ToolsShowCmd) Run(kctx *kong.Context) error {
	if !tools.IsKnown(c.Name) {
		return fmt.Errorf("unknown tool: %s (available: %s)", c.Name, strings.Join(tools.AllToolNames, ", "))
	}
	built, err := buildTools([]string{c.Name})
	if err != nil {
		return err
	}
	t := built[0]
	schema, err := json.MarshalIndent(t.GetParameters(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	fmt.Fprintf(kctx.Stdout, "%s\n\n%s\n\nParameters:\n%s\n", t.GetName(), t.GetDescription(), schema)
	return nil
}

// buildTools constructs the named tools without touching the real filesystem
// or starting a shell.
func buildTools(names []string) ([]agent.Tool, error) {
	deps := tools.Deps{Fs: afero.NewMemMapFs(), Shell: shell.Options{}}
	out := make([]agent.Tool, 0, len(names))
	for _, name := range names {
		t, err := tools.New(name, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func printTools(w io.Writer, format string, list []agent.Tool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(agent.ToChatTools(list))
	case "simple":
		for _, t := range list {
			fmt.Fprintln(w, t.GetName())
		}
		return nil
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDEFAULT\tDESCRIPTION")
		for _, t := range list {
			def := ""
			if slices.Contains(tools.DefaultToolNames, t.GetName()) {
				def = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.GetName(), def, firstLine(t.GetDescription()))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
