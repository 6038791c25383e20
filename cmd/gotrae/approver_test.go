package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gotrae/src/agent"
)

func TestPromptApprover(t *testing.T) {
	req := agent.ApprovalRequest{Tool: "bash", Message: "run: rm -rf build"}
	tests := []struct {
		name  string
		input string
		want  []bool
	}{
		{"yes", "y\n", []bool{true}},
		{"no", "no\n", []bool{false}},
		{"empty line denies", "\n", []bool{false}},
		{"reprompts on garbage", "maybe\nYES\n", []bool{true}},
		{"eof denies", "", []bool{false}},
		{"all approves the rest", "a\n", []bool{true, true, true}},
		{"answers in order", "y\nn\n", []bool{true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := newPromptApprover(strings.NewReader(tt.input), &out)
			for _, want := range tt.want {
				ok, err := p.Approve(context.Background(), req)
				require.NoError(t, err)
				assert.Equal(t, want, ok)
			}
			assert.Contains(t, out.String(), "Allow bash: run: rm -rf build?")
		})
	}
}

func TestPromptApproverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newPromptApprover(strings.NewReader("y\n"), &bytes.Buffer{})
	ok, err := p.Approve(ctx, agent.ApprovalRequest{Tool: "bash"})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
