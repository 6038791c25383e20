package tool_taskdone

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskDone(t *testing.T) {
	tool, err := Tool()
	require.NoError(t, err)

	got, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Task done.", got)

	got, err = tool.Execute(context.Background(), map[string]any{"done": true})
	require.NoError(t, err)
	assert.Equal(t, Result, got)

	raw, err := json.Marshal(tool.GetParameters())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object"}`, string(raw))
}
