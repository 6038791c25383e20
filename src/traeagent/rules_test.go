package traeagent

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProjectRules(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		rulesFile string
		want      string
	}{
		{
			name:  "default file",
			files: map[string]string{"/repo/Project_rules.md": "  use tabs\n"},
			want:  "use tabs",
		},
		{
			name:      "custom relative file",
			files:     map[string]string{"/repo/docs/rules.md": "no globals"},
			rulesFile: "docs/rules.md",
			want:      "no globals",
		},
		{
			name: "missing",
		},
		{
			name:      "outside project",
			files:     map[string]string{"/etc/rules.md": "x"},
			rulesFile: "../etc/rules.md",
		},
		{
			name:      "absolute outside project",
			files:     map[string]string{"/other/rules.md": "x"},
			rulesFile: "/other/rules.md",
		},
		{
			name:  "too large",
			files: map[string]string{"/repo/Project_rules.md": strings.Repeat("a", maxRulesSize+1)},
		},
		{
			name:  "control characters",
			files: map[string]string{"/repo/Project_rules.md": "bad\x00rules"},
		},
		{
			name:  "tabs and newlines allowed",
			files: map[string]string{"/repo/Project_rules.md": "a\tb\r\nc"},
			want:  "a\tb\r\nc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll("/repo", 0o755))
			for p, c := range tt.files {
				require.NoError(t, afero.WriteFile(fs, p, []byte(c), 0o644))
			}
			assert.Equal(t, tt.want, LoadProjectRules(fs, "/repo", tt.rulesFile))
		})
	}
}
