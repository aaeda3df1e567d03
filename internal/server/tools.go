package server

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/michaelbrown/pyrunner/internal/executor"
	"github.com/michaelbrown/pyrunner/internal/format"
	"github.com/michaelbrown/pyrunner/internal/sandbox"
	"github.com/michaelbrown/pyrunner/internal/storage"
)

// Tool names exposed to MCP clients.
const (
	ToolRunPythonCode    = "run_python_code"
	ToolResetEnvironment = "reset_python_environment"
	ToolListVariables    = "list_defined_variables"
)

// Persistent is the executor behind the persistent tool set.
type Persistent interface {
	Run(ctx context.Context, code string) *executor.Result
	List(ctx context.Context) string
	Reset(ctx context.Context) string
}

var codeSchema = mcp.ToolInputSchema{
	Type: "object",
	Properties: map[string]any{
		"code": map[string]any{
			"type":        "string",
			"description": "Python source code to execute",
		},
	},
	Required: []string{"code"},
}

var emptySchema = mcp.ToolInputSchema{
	Type:       "object",
	Properties: map[string]any{},
}

// handlers turns tool calls into executor calls. Every outcome, including
// invalid input, is returned as text; handlers never return an error.
type handlers struct {
	isolated   sandbox.Sandbox
	persistent Persistent
	opts       Options
}

func (h *handlers) runIsolated(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := codeArg(request)
	if err := executor.Validate(code); err != nil {
		return textResult(executor.EmptyCodeMessage), nil
	}

	res := h.isolated.Run(ctx, executor.Request{Code: code, Timeout: h.opts.Timeout})
	h.record(ctx, storage.ModeIsolated, code, res)
	return textResult(format.Verbose(res)), nil
}

func (h *handlers) runPersistent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := codeArg(request)
	if err := executor.Validate(code); err != nil {
		return textResult(executor.EmptyCodeMessage), nil
	}

	res := h.persistent.Run(ctx, code)
	h.record(ctx, storage.ModePersistent, code, res)
	return textResult(format.Bare(res)), nil
}

func (h *handlers) resetEnvironment(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return textResult(h.persistent.Reset(ctx)), nil
}

func (h *handlers) listVariables(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return textResult(h.persistent.List(ctx)), nil
}

func (h *handlers) record(ctx context.Context, mode storage.Mode, code string, res *executor.Result) {
	h.opts.Logger.Info("python code executed",
		slog.String("mode", string(mode)),
		slog.Bool("success", res.Success),
		slog.Int("status_code", res.StatusCode),
		slog.Duration("elapsed", res.Elapsed),
	)
	if h.opts.Store == nil {
		return
	}
	if err := h.opts.Store.RecordExecution(ctx, storage.NewExecution(mode, code, res)); err != nil {
		h.opts.Logger.Warn("recording execution", slog.Any("error", err))
	}
}

func codeArg(request mcp.CallToolRequest) string {
	args, _ := request.Params.Arguments.(map[string]any)
	code, _ := args["code"].(string)
	return code
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}
