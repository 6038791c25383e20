package main

import (
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2/quick"
)

// printPatch writes a unified diff to w with terminal colors. Highlighting
// failures fall back to the plain text.
func printPatch(w io.Writer, patch string) error {
	if patch == "" {
		_, err := fmt.Fprintln(w, "No changes.")
		return err
	}
	if err := quick.Highlight(w, patch, "diff", "terminal256", "monokai"); err != nil {
		_, err = io.WriteString(w, patch)
		return err
	}
	return nil
}
