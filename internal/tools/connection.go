// Package tools is the client side of the tool boundary: it connects to a
// pyrunner MCP server and calls its tools.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	clientName    = "pyrunner"
	clientVersion = "0.1.0"
)

// Target describes where an MCP server lives. Exactly one of Binary or URL
// is set.
type Target struct {
	// Binary is launched as a subprocess speaking MCP on stdio. Env is
	// appended to the current environment.
	Binary string
	Args   []string
	Env    []string

	// URL is the streamable HTTP endpoint, e.g. http://localhost:8080/mcp.
	URL string
}

// MCPConnection wraps an mcp-go client for a single tool server.
type MCPConnection struct {
	name   string
	client *client.Client
	tools  []mcp.Tool
}

// Connect starts or dials the server described by target and initializes
// the connection.
func Connect(ctx context.Context, name string, target Target) (*MCPConnection, error) {
	switch {
	case target.Binary != "" && target.URL != "":
		return nil, fmt.Errorf("connecting to %s: both binary and url set", name)
	case target.Binary != "":
		c, err := client.NewStdioMCPClient(target.Binary, target.Env, target.Args...)
		if err != nil {
			return nil, fmt.Errorf("starting MCP server %s (%s): %w", name, target.Binary, err)
		}
		return initialize(ctx, name, c)
	case target.URL != "":
		c, err := client.NewStreamableHttpClient(target.URL)
		if err != nil {
			return nil, fmt.Errorf("creating MCP client for %s (%s): %w", name, target.URL, err)
		}
		if err := c.Start(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("connecting to MCP server %s (%s): %w", name, target.URL, err)
		}
		return initialize(ctx, name, c)
	default:
		return nil, fmt.Errorf("connecting to %s: no binary or url", name)
	}
}

// ConnectInProcess connects to a server running in this process.
func ConnectInProcess(ctx context.Context, name string, s *mcpserver.MCPServer) (*MCPConnection, error) {
	c, err := client.NewInProcessClient(s)
	if err != nil {
		return nil, fmt.Errorf("creating in-process client for %s: %w", name, err)
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting in-process client for %s: %w", name, err)
	}
	return initialize(ctx, name, c)
}

func initialize(ctx context.Context, name string, c *client.Client) (*MCPConnection, error) {
	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing MCP server %s: %w", name, err)
	}

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("listing tools from %s: %w", name, err)
	}

	return &MCPConnection{
		name:   name,
		client: c,
		tools:  result.Tools,
	}, nil
}

// CallTool invokes a tool and returns its text content.
func (mc *MCPConnection) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if !mc.HasTool(name) {
		return "", fmt.Errorf("unknown tool %s on %s (have %s)", name, mc.name, strings.Join(mc.ToolNames(), ", "))
	}

	result, err := mc.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling tool %s on %s: %w", name, mc.name, err)
	}

	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}

	text := strings.Join(parts, "\n")
	if result.IsError {
		return "error: " + text, nil
	}
	return text, nil
}

// Tools returns the tools the server advertised.
func (mc *MCPConnection) Tools() []mcp.Tool {
	return mc.tools
}

// ToolNames returns the names of all tools on this server.
func (mc *MCPConnection) ToolNames() []string {
	names := make([]string, len(mc.tools))
	for i, t := range mc.tools {
		names[i] = t.Name
	}
	return names
}

// HasTool reports whether the server advertised a tool with this name.
func (mc *MCPConnection) HasTool(name string) bool {
	for _, t := range mc.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Close shuts down the connection and any server subprocess.
func (mc *MCPConnection) Close() {
	mc.client.Close()
}
