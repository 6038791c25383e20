package executor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/theme"
)

// ConsoleProcessorConfig configures the console event processor
type ConsoleProcessorConfig struct {
	Out io.Writer
	// Verbose shows step states and tool result previews.
	Verbose bool
	// ShowUsage prints token usage after every model call.
	ShowUsage bool
	// MaxResultPreview is the width of one-line previews.
	MaxResultPreview int
}

// ConsoleEventProcessor renders engine events as styled terminal lines.
type ConsoleEventProcessor struct {
	config  ConsoleProcessorConfig
	styles  theme.Styles
	midLine bool
}

// NewConsoleEventProcessor creates a new console event processor
func NewConsoleEventProcessor(config ConsoleProcessorConfig) *ConsoleEventProcessor {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.MaxResultPreview <= 0 {
		config.MaxResultPreview = 120
	}
	return &ConsoleEventProcessor{config: config, styles: theme.NewStyles()}
}

// Process handles a single event
func (p *ConsoleEventProcessor) Process(event Event) error {
	if e, ok := event.(*OutputEvent); ok && e.Delta {
		p.midLine = !strings.HasSuffix(e.Content, "\n")
		_, err := io.WriteString(p.config.Out, e.Content)
		return err
	}
	if p.midLine {
		p.println("")
		p.midLine = false
	}

	switch e := event.(type) {
	case *StateChangeEvent:
		if p.config.Verbose && e.StepState != "" {
			p.println(p.styles.Muted.Render(fmt.Sprintf("step %d: %s", e.StepNumber, e.StepState)))
		}
	case *OutputEvent:
		p.println(p.styles.Text.Render(strings.TrimRight(e.Content, "\n")))
	case *ToolCallEvent:
		p.println(p.styles.Tool.Render("› "+e.Call.Name) + " " + p.styles.Muted.Render(p.preview(e.Description)))
	case *ToolResultEvent:
		p.processToolResult(e.Result)
	case *UsageEvent:
		if p.config.ShowUsage {
			p.println(p.styles.Muted.Render(formatUsage(e.Delta, e.Total)))
		}
	case *StepEvent:
		if e.Step.Reflection != "" && p.config.Verbose {
			p.println(p.styles.Warning.Render(p.preview(e.Step.Reflection)))
		}
	case *ErrorEvent:
		p.println(p.styles.Error.Render(fmt.Sprintf("error in %s: %v", e.Context, e.Err)))
	case *CompleteEvent:
		p.processComplete(e)
	}
	return nil
}

// Close cleans up resources
func (p *ConsoleEventProcessor) Close() error {
	if p.midLine {
		p.println("")
	}
	return nil
}

func (p *ConsoleEventProcessor) processToolResult(r aisdk.ToolResult) {
	if !r.Success {
		p.println("  " + p.styles.Error.Render("✗ "+p.preview(r.Error)))
		return
	}
	if p.config.Verbose {
		p.println("  " + p.styles.Success.Render("✓ ") + p.styles.Muted.Render(p.preview(r.Result)))
		return
	}
	p.println("  " + p.styles.Success.Render("✓ "+r.Name))
}

func (p *ConsoleEventProcessor) processComplete(e *CompleteEvent) {
	took := e.Duration.Round(10 * time.Millisecond)
	if e.Success {
		p.println(p.styles.Success.Render(fmt.Sprintf("Task completed in %d steps (%v)", e.Steps, took)))
		if e.FinalResult != "" {
			p.println(e.FinalResult)
		}
	} else {
		p.println(p.styles.Error.Render(fmt.Sprintf("Task did not complete after %d steps (%v)", e.Steps, took)))
	}
	p.println(p.styles.Muted.Render(fmt.Sprintf("tokens: %d in, %d out", e.Usage.InputTokens, e.Usage.OutputTokens)))
}

// preview flattens s to one line and truncates it to the preview width.
func (p *ConsoleEventProcessor) preview(s string) string {
	return ansi.Truncate(strings.Join(strings.Fields(s), " "), p.config.MaxResultPreview, "…")
}

func (p *ConsoleEventProcessor) println(s string) {
	fmt.Fprintln(p.config.Out, s)
}

func formatUsage(delta, total aisdk.Usage) string {
	return fmt.Sprintf("tokens +%d/+%d (total %d/%d)", delta.InputTokens, delta.OutputTokens, total.InputTokens, total.OutputTokens)
}
