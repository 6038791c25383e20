package tool_readfile

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileTool(t *testing.T) {
	var ten strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&ten, "line %d\n", i)
	}

	tests := []struct {
		name    string
		setupFS func(afero.Fs) error
		args    map[string]any
		want    string
		wantErr string
	}{
		{
			name: "whole file",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/a.txt", []byte("x\ny\n"), 0o644)
			},
			args: map[string]any{"path": "/a.txt"},
			want: "     1\tx\n     2\ty\n",
		},
		{
			name: "offset and limit",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/ten.txt", []byte(ten.String()), 0o644)
			},
			args: map[string]any{"path": "/ten.txt", "offset": 3, "limit": 2},
			want: "     3\tline 3\n     4\tline 4\n... 6 more lines. Use offset 5 to continue.\n",
		},
		{
			name: "offset past end",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/a.txt", []byte("x\n"), 0o644)
			},
			args:    map[string]any{"path": "/a.txt", "offset": 5},
			wantErr: "offset 5 is beyond the end of the file (1 lines)",
		},
		{
			name: "long line truncated",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/long.txt", []byte(strings.Repeat("a", MaxLineLength+10)), 0o644)
			},
			args: map[string]any{"path": "/long.txt"},
			want: "     1\t" + strings.Repeat("a", MaxLineLength) + "... [truncated]\n",
		},
		{
			name: "empty",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/empty.txt", nil, 0o644)
			},
			args: map[string]any{"path": "/empty.txt"},
			want: "File /empty.txt is empty.",
		},
		{
			name: "binary",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/bin", []byte{0, 1, 2}, 0o644)
			},
			args:    map[string]any{"path": "/bin"},
			wantErr: "not a text file: /bin",
		},
		{
			name:    "directory",
			setupFS: func(fs afero.Fs) error { return fs.MkdirAll("/dir", 0o755) },
			args:    map[string]any{"path": "/dir"},
			wantErr: "path is a directory, not a file: /dir",
		},
		{
			name:    "missing",
			args:    map[string]any{"path": "/missing.txt"},
			wantErr: "file not found: /missing.txt",
		},
		{
			name:    "relative",
			args:    map[string]any{"path": "a.txt"},
			wantErr: "path is not absolute",
		},
		{
			name:    "no path",
			args:    map[string]any{},
			wantErr: "required field 'path' is missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tt.setupFS != nil {
				require.NoError(t, tt.setupFS(fs))
			}
			tool, err := Tool(fs)
			require.NoError(t, err)

			got, err := tool.Execute(context.Background(), tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFileTooLarge(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := fs.Create("/big.txt")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(11*1024*1024))
	require.NoError(t, f.Close())

	tool, err := Tool(fs)
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), map[string]any{"path": "/big.txt"})
	assert.ErrorContains(t, err, "file too large")
}
