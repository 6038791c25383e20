package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/elee1766/gotrae/src/agent"
)

// promptApprover asks on out and reads y/n answers from in. Calls are
// serialized so parallel tools do not interleave prompts.
type promptApprover struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
	// all is set once the user answers "a".
	all bool
}

var _ agent.Approver = (*promptApprover)(nil)

func newPromptApprover(in io.Reader, out io.Writer) *promptApprover {
	return &promptApprover{in: bufio.NewReader(in), out: out}
}

// Approve implements agent.Approver. EOF denies.
func (p *promptApprover) Approve(ctx context.Context, req agent.ApprovalRequest) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.all {
		return true, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(p.out, "Allow %s: %s? [y]es/[n]o/[a]ll: ", req.Tool, req.Message)
		line, err := p.in.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return false, nil
			}
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			return false, nil
		case "a", "all":
			p.all = true
			return true, nil
		}
	}
}
