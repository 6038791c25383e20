package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/elee1766/gotrae/src/config"
	"github.com/elee1766/gotrae/src/executor"
	"github.com/elee1766/gotrae/src/storage"
	"github.com/elee1766/gotrae/src/traeagent/tools"
)

func TestPrintTools(t *testing.T) {
	list, err := buildTools(tools.AllToolNames)
	require.NoError(t, err)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printTools(&buf, "table", list))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, len(tools.AllToolNames)+1)
		assert.True(t, strings.HasPrefix(lines[0], "NAME"))
		assert.Regexp(t, `^bash\s+yes\s+Run commands in a bash shell$`, lines[1])
	})

	t.Run("simple", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printTools(&buf, "simple", list))
		assert.Equal(t, strings.Join(tools.AllToolNames, "\n")+"\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printTools(&buf, "json", list))
		var decoded []struct {
			Type     string `json:"type"`
			Function struct {
				Name       string         `json:"name"`
				Parameters map[string]any `json:"parameters"`
			} `json:"function"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, len(tools.AllToolNames))
		assert.Equal(t, "function", decoded[0].Type)
		assert.Equal(t, tools.BashName, decoded[0].Function.Name)
		assert.Equal(t, "object", decoded[0].Function.Parameters["type"])
	})

	t.Run("unknown format", func(t *testing.T) {
		assert.Error(t, printTools(&bytes.Buffer{}, "xml", list))
	})
}

func TestRunCmdTask(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/task.md", []byte("  fix the bug\n"), 0o644))

	got, err := (&RunCmd{Task: " add tests "}).task(fs)
	require.NoError(t, err)
	assert.Equal(t, "add tests", got)

	got, err = (&RunCmd{File: "/task.md"}).task(fs)
	require.NoError(t, err)
	assert.Equal(t, "fix the bug", got)

	_, err = (&RunCmd{Task: "x", File: "/task.md"}).task(fs)
	assert.Error(t, err)

	_, err = (&RunCmd{File: "/missing.md"}).task(fs)
	assert.Error(t, err)
}

func TestRunCmdOverrides(t *testing.T) {
	o := (&RunCmd{Provider: "openai", Model: "gpt-4o", MaxSteps: 5, Tools: []string{"bash"}}).overrides()
	assert.Equal(t, "openai", o.Provider)
	assert.Equal(t, "gpt-4o", o.Model)
	assert.Equal(t, 5, o.MaxSteps)
	assert.Equal(t, []string{"bash"}, o.Tools)
	assert.Nil(t, o.Stream)
	assert.Nil(t, o.RequireApproval)

	o = (&RunCmd{Stream: true, RequireApproval: true}).overrides()
	require.NotNil(t, o.Stream)
	assert.True(t, *o.Stream)
	require.NotNil(t, o.RequireApproval)
	assert.True(t, *o.RequireApproval)
}

func TestProjectPath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	got, err := projectPath("")
	require.NoError(t, err)
	assert.Equal(t, wd, got)

	got, err = projectPath("sub")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "sub"), got)
}

func TestExportTrajectoryWithoutDatabase(t *testing.T) {
	fs := afero.NewMemMapFs()
	exec := executor.NewExecution("task", "/repo", nil)
	exec.Success = true

	require.NoError(t, exportTrajectory(t.Context(), nil, fs, exec, "/out/run.json"))
	data, err := afero.ReadFile(fs, "/out/run.json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, exec.ID, decoded["id"])
	assert.Equal(t, true, decoded["success"])
}

func TestExportTrajectoryFromDatabase(t *testing.T) {
	db, err := storage.Open(storage.MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	exec := executor.NewExecution("task", "/repo", nil)
	rec := storage.NewRecorder(db.DB(), slog.Default())
	require.NoError(t, rec.Start(t.Context(), exec, "openai", "gpt-4o", 3))

	fs := afero.NewMemMapFs()
	require.NoError(t, exportTrajectory(t.Context(), db, fs, exec, "/run.json"))
	var decoded storage.TrajectoryExport
	data, err := afero.ReadFile(fs, "/run.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, exec.ID, decoded.ID)
	assert.Equal(t, "gpt-4o", decoded.Model)
	assert.Empty(t, decoded.Steps)
}

func TestPrintTrajectories(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTrajectories(&buf, nil))
	assert.Equal(t, "No trajectories recorded.\n", buf.String())

	buf.Reset()
	result := "done"
	list := []storage.Trajectory{{
		ID: "abc", Task: "fix\nthe   bug", State: "completed", Success: true, Model: "gpt-4o",
		StartTime: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), FinalResult: &result,
	}}
	require.NoError(t, printTrajectories(&buf, list))
	assert.Contains(t, buf.String(), "fix the bug")
	assert.Contains(t, buf.String(), "abc")

	buf.Reset()
	printTrajectory(&buf, &storage.TrajectoryExport{
		Trajectory: list[0],
		Steps:      []storage.TrajectoryStep{{StepNumber: 1, State: "completed", Content: "all good", Error: "warn"}},
	})
	out := buf.String()
	assert.Contains(t, out, "Result:   done")
	assert.Contains(t, out, "[1] completed")
	assert.Contains(t, out, "  all good")
	assert.Contains(t, out, "  error: warn")
}

func TestInitConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer

	require.NoError(t, initConfig(fs, "/cfg/gotrae.yaml", "openai", false, &out))
	assert.Equal(t, "Wrote /cfg/gotrae.yaml\n", out.String())

	data, err := afero.ReadFile(fs, "/cfg/gotrae.yaml")
	require.NoError(t, err)
	var decoded config.Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "openai", decoded.DefaultProvider)
	assert.Equal(t, config.DefaultConfig().Agent.MaxSteps, decoded.Agent.MaxSteps)

	err = initConfig(fs, "/cfg/gotrae.yaml", "", false, &out)
	assert.ErrorContains(t, err, "already exists")
	require.NoError(t, initConfig(fs, "/cfg/gotrae.yaml", "", true, &out))

	err = initConfig(fs, "/cfg/other.json", "nope", false, &out)
	assert.Equal(t, ExitConfig, ExitCode(err))
}

func TestTeeHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := teeHandler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	logger := slog.New(h).With("component", "test")

	logger.Debug("quiet")
	assert.Empty(t, a.String())
	assert.Contains(t, b.String(), `"msg":"quiet"`)

	logger.Warn("loud")
	assert.Contains(t, a.String(), "msg=loud component=test")
	assert.Contains(t, b.String(), `"component":"test"`)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel(""))
}

func TestLogFilePath(t *testing.T) {
	assert.Empty(t, logFilePath(false, config.DefaultConfig()))

	cfg := config.DefaultConfig()
	cfg.Logging.File = "/var/log/gotrae.log"
	assert.Equal(t, "/var/log/gotrae.log", logFilePath(false, cfg))

	got := logFilePath(true, config.DefaultConfig())
	assert.Equal(t, config.DefaultLogDir(), filepath.Dir(got))
	assert.True(t, strings.HasPrefix(filepath.Base(got), "gotrae_"))
}

func TestPrintPatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPatch(&buf, ""))
	assert.Equal(t, "No changes.\n", buf.String())

	buf.Reset()
	patch := "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-old\n+new\n"
	require.NoError(t, printPatch(&buf, patch))
	assert.Equal(t, patch, ansi.Strip(buf.String()))
}
