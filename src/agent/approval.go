package agent

import (
	"context"

	"github.com/elee1766/gotrae/src/aisdk"
)

// ApprovalRequest describes a tool call waiting for a decision.
type ApprovalRequest struct {
	Tool    string
	Call    aisdk.ToolCall
	Message string
}

// Approver decides whether a call that needs approval may run.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

// Approve implements Approver.
func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// DenyAll rejects every call that needs approval.
var DenyAll = ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) { return false, nil })

// approvalMiddleware enforces Tool.NeedsApproval. With a nil approver calls are
// approved and logged.
func (tm *Toolbox) approvalMiddleware(next ToolExecutor) ToolExecutor {
	return func(ctx context.Context, tool Tool, call aisdk.ToolCall) aisdk.ToolResult {
		if !tool.NeedsApproval(call.Arguments) {
			return next(ctx, tool, call)
		}
		msg := tool.DescriptiveMessage(call.Arguments)
		if tm.approver == nil {
			tm.logger.Info("auto-approving tool call", "tool", call.Name, "call", msg)
			return next(ctx, tool, call)
		}
		ok, err := tm.approver.Approve(ctx, ApprovalRequest{Tool: call.Name, Call: call, Message: msg})
		if err != nil {
			tm.logger.Warn("approval failed", "tool", call.Name, "error", err)
			return aisdk.NewToolFailure(call, "tool call denied: "+msg+": "+err.Error())
		}
		if !ok {
			tm.logger.Info("tool call denied", "tool", call.Name, "call", msg)
			return aisdk.NewToolFailure(call, "tool call denied: "+msg)
		}
		return next(ctx, tool, call)
	}
}
