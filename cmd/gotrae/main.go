package main

import (
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	ConfigFile string `name:"config" short:"c" type:"path" help:"Config file (YAML or JSON)"`
	LogLevel   string `enum:"debug,info,warn,error," default:"" help:"Log level (debug, info, warn, error)"`
	LogFile    bool   `help:"Also write JSON logs to a file under the state directory"`

	Run          RunCmd          `cmd:"" help:"Run the agent on a task"`
	Tools        ToolsCmd        `cmd:"" help:"List the available tools"`
	Trajectories TrajectoriesCmd `cmd:"" help:"Inspect recorded executions"`
	Config       ConfigCmd       `cmd:"" help:"Show or create the configuration"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gotrae"),
		kong.Description("LLM agent for software engineering tasks"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	os.Exit(NewErrorHandler(os.Stderr).Handle(err))
}
