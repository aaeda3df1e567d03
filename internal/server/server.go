// Package server exposes the executors as MCP tools over stdio or
// streamable HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/pyrunner/internal/executor"
	"github.com/michaelbrown/pyrunner/internal/sandbox"
	"github.com/michaelbrown/pyrunner/internal/storage"
)

const (
	serverName    = "Python Interpreter"
	serverVersion = "0.1.0"

	instructions = `This server provides a python code interpreter.
Call run_python_code() to run python code.`

	persistentInstructions = instructions + `
Variables, functions and imports persist between calls.
Call list_defined_variables() to inspect them and reset_python_environment() to clear them.`
)

// Options configures the tool servers.
type Options struct {
	// Timeout is the limit applied to every isolated run. Callers cannot
	// change it. Zero means executor.DefaultTimeout.
	Timeout time.Duration

	// Store records every execution when set.
	Store storage.Store

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = executor.DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// NewIsolated builds an MCP server with a single run_python_code tool that
// runs every call in a fresh interpreter.
func NewIsolated(sb sandbox.Sandbox, opts Options) *mcpserver.MCPServer {
	opts.applyDefaults()
	h := &handlers{isolated: sb, opts: opts}

	s := mcpserver.NewMCPServer(serverName, serverVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(instructions),
	)
	s.AddTool(mcp.Tool{
		Name: ToolRunPythonCode,
		Description: fmt.Sprintf("Execute Python code in a fresh interpreter and return the result. "+
			"Nothing persists between calls. Execution is limited to %s.", opts.Timeout),
		InputSchema: codeSchema,
	}, h.runIsolated)
	return s
}

// NewPersistent builds an MCP server whose tools share one namespace.
func NewPersistent(p Persistent, opts Options) *mcpserver.MCPServer {
	opts.applyDefaults()
	h := &handlers{persistent: p, opts: opts}

	s := mcpserver.NewMCPServer(serverName, serverVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(persistentInstructions),
	)
	s.AddTool(mcp.Tool{
		Name:        ToolRunPythonCode,
		Description: "Execute Python code and return its output. Variables, functions and imports persist between calls.",
		InputSchema: codeSchema,
	}, h.runPersistent)
	s.AddTool(mcp.Tool{
		Name:        ToolResetEnvironment,
		Description: "Clear all variables, functions and imports defined by previous calls.",
		InputSchema: emptySchema,
	}, h.resetEnvironment)
	s.AddTool(mcp.Tool{
		Name:        ToolListVariables,
		Description: "List the variables, functions and imports currently defined.",
		InputSchema: emptySchema,
	}, h.listVariables)
	return s
}

// ServeStdio serves s on stdin and stdout until stdin closes.
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}

// HTTPServer serves an MCP server over streamable HTTP at /mcp.
type HTTPServer struct {
	router chi.Router
	http   *http.Server
	logger *slog.Logger
}

// NewHTTP creates an HTTP transport for s.
func NewHTTP(s *mcpserver.MCPServer, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &HTTPServer{
		router: chi.NewRouter(),
		logger: logger,
	}

	r := h.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s))

	return h
}

// Handler returns the router, for embedding or tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// Start begins listening on the given port.
func (h *HTTPServer) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	h.http = &http.Server{
		Addr:              addr,
		Handler:           h.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	h.logger.Info("MCP server listening", slog.String("url", fmt.Sprintf("http://localhost%s/mcp", addr)))
	if err := h.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	if h.http == nil {
		return nil
	}
	h.logger.Info("shutting down MCP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return h.http.Shutdown(shutdownCtx)
}

// requestLogger logs each request with slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
