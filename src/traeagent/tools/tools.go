// Package tools collects the agent's tools behind one constructor so the
// allow-list in config and on the command line can name them.
package tools

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/shell"
	tool_bash "github.com/elee1766/gotrae/src/traeagent/tools/tool_bash"
	tool_edit "github.com/elee1766/gotrae/src/traeagent/tools/tool_edit"
	tool_listdir "github.com/elee1766/gotrae/src/traeagent/tools/tool_listdir"
	tool_readfile "github.com/elee1766/gotrae/src/traeagent/tools/tool_readfile"
	tool_taskdone "github.com/elee1766/gotrae/src/traeagent/tools/tool_taskdone"
	tool_todolist "github.com/elee1766/gotrae/src/traeagent/tools/tool_todolist"
	tool_webfetch "github.com/elee1766/gotrae/src/traeagent/tools/tool_webfetch"
	tool_writefile "github.com/elee1766/gotrae/src/traeagent/tools/tool_writefile"
)

// Tool name constants - re-exported from individual packages
const (
	BashName          = tool_bash.Name
	EditName          = tool_edit.Name
	ReadFileName      = tool_readfile.Name
	WriteFileName     = tool_writefile.Name
	ListDirectoryName = tool_listdir.Name
	TodoListName      = tool_todolist.Name
	TaskDoneName      = tool_taskdone.Name
	WebFetchName      = tool_webfetch.Name
)

// DefaultToolNames is the tool set used when no allow-list is given.
var DefaultToolNames = []string{BashName, EditName, TaskDoneName, TodoListName}

// AllToolNames lists every tool this package can build.
var AllToolNames = []string{BashName, EditName, ReadFileName, WriteFileName, ListDirectoryName, TodoListName, TaskDoneName, WebFetchName}

// IsKnown reports whether name is a tool this package can build.
func IsKnown(name string) bool {
	return slices.Contains(AllToolNames, name)
}

// Deps carries what the tool constructors need.
type Deps struct {
	Fs    afero.Fs
	Shell shell.Options
	// HTTPClient is used by web_fetch; nil means a default client.
	HTTPClient *http.Client
}

func (d Deps) fs() afero.Fs {
	if d.Fs == nil {
		return afero.NewOsFs()
	}
	return d.Fs
}

// New builds the named tool.
func New(name string, deps Deps) (agent.Tool, error) {
	switch name {
	case BashName:
		return tool_bash.Tool(deps.Shell)
	case EditName:
		return tool_edit.Tool(deps.fs())
	case ReadFileName:
		return tool_readfile.Tool(deps.fs())
	case WriteFileName:
		return tool_writefile.Tool(deps.fs())
	case ListDirectoryName:
		return tool_listdir.Tool(deps.fs())
	case TodoListName:
		return tool_todolist.Tool()
	case TaskDoneName:
		return tool_taskdone.Tool()
	case WebFetchName:
		return tool_webfetch.Tool(deps.HTTPClient)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// Register builds each named tool and registers it on tb, in order. An empty
// names list registers DefaultToolNames.
func Register(tb *agent.Toolbox, names []string, deps Deps) error {
	if len(names) == 0 {
		names = DefaultToolNames
	}
	for _, name := range names {
		if tb.HasTool(name) {
			continue
		}
		tool, err := New(name, deps)
		if err != nil {
			return err
		}
		if err := tb.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	return nil
}
