package tool_bash

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/shell"
	"github.com/elee1766/gotrae/src/traeagent/toolsutil"
)

// Tool name constant
const Name = "bash"

const bashPrompt = `Run commands in a bash shell
* When invoking this tool, the contents of the "command" parameter does NOT need to be XML-escaped.
* You have access to a mirror of common linux and python packages via apt and pip.
* State is persistent across command calls and discussions with the user.
* To inspect a particular line range of a file, e.g. lines 10-25, try 'sed -n 10,25p /path/to/the/file'.
* Please avoid commands that may produce a very large amount of output.
* Please run long lived commands in the background, e.g. 'sleep 10 &' or start a server in the background.`

// BashInput represents the parameters for bash
type BashInput struct {
	Command string `json:"command" description:"The bash command to run."`
	Restart bool   `json:"restart,omitempty" description:"Set to true to restart the bash session."`
}

// Tool returns the bash tool. It owns one persistent session, which Reset stops.
func Tool(opts shell.Options) (agent.Tool, error) {
	session := shell.NewSession(opts)
	return agent.NewGenericTool(Name, bashPrompt, makeBashHandler(session),
		agent.WithReset[BashInput](func() {
			if err := session.Stop(); err != nil {
				toolsutil.GetLogger().Warn("failed to stop shell session", "error", err)
			}
		}),
		agent.WithDescriber(func(in BashInput) string {
			if in.Restart {
				return "restart bash session"
			}
			return "run: " + in.Command
		}),
	)
}

func makeBashHandler(session *shell.Session) agent.GenericToolHandler[BashInput] {
	return func(ctx context.Context, input BashInput) (string, error) {
		logger := toolsutil.GetLogger()
		if err := toolsutil.CheckCancelled(ctx); err != nil {
			return "", err
		}

		if input.Restart {
			if err := session.Stop(); err != nil {
				logger.Warn("failed to stop shell session", "error", err)
			}
			if err := session.Start(); err != nil {
				return "", fmt.Errorf("failed to restart shell: %w", err)
			}
			logger.Info("restarted shell session")
			return "tool has been restarted.", nil
		}

		if strings.TrimSpace(input.Command) == "" {
			return "", errors.New("no command provided")
		}

		if session.State() == shell.StateNotStarted {
			if err := session.Start(); err != nil {
				return "", fmt.Errorf("failed to start shell: %w", err)
			}
		}

		logger.Info("running command", "command", input.Command)
		res, err := session.Run(ctx, input.Command)
		if err != nil {
			logger.Error("command failed", "command", input.Command, "error", err)
			return "", err
		}

		out := formatResult(res)
		if res.ExitCode != 0 {
			logger.Info("command exited non-zero", "command", input.Command, "exit_code", res.ExitCode)
			if out == "" {
				return "", fmt.Errorf("command exited with code %d", res.ExitCode)
			}
			return "", fmt.Errorf("command exited with code %d\n%s", res.ExitCode, out)
		}
		return out, nil
	}
}

func formatResult(res *shell.Result) string {
	if res.Error == "" {
		return res.Output
	}
	if res.Output == "" {
		return "stderr:\n" + res.Error
	}
	return res.Output + "\nstderr:\n" + res.Error
}
