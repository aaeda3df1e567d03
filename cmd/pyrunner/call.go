package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/pyrunner/internal/server"
	"github.com/michaelbrown/pyrunner/internal/tools"
)

var (
	callModeFlag    string
	callURLFlag     string
	callCodeFlags   []string
	callTimeoutFlag time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Call a tool on a pyrunner MCP server",
	Long: `Connect to a pyrunner MCP server as a client and call one of its tools.

Without --url a server is spawned from this binary over stdio. Each --code
value is sent as a separate call on the same connection, so in persistent mode
later snippets see definitions from earlier ones.

Examples:
  pyrunner call run_python_code --code 'print(1 + 1)'
  pyrunner call run_python_code --mode persistent --code 'x = 5' --code 'print(x)'
  pyrunner call list_defined_variables --url http://localhost:8080/mcp`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callModeFlag, "mode", modeIsolated, "Server mode when spawning: isolated or persistent")
	callCmd.Flags().StringVar(&callURLFlag, "url", "", "Streamable HTTP endpoint of a running server")
	callCmd.Flags().StringArrayVarP(&callCodeFlags, "code", "c", nil, "Code to send (repeatable)")
	callCmd.Flags().DurationVar(&callTimeoutFlag, "timeout", time.Minute, "Overall deadline for the calls")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	tool := args[0]

	target, err := callTarget()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeoutFlag)
	defer cancel()

	conn, err := tools.Connect(ctx, "pyrunner", target)
	if err != nil {
		return err
	}
	defer conn.Close()

	if tool != server.ToolRunPythonCode {
		text, err := conn.CallTool(ctx, tool, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}

	if len(callCodeFlags) == 0 {
		return fmt.Errorf("%s needs at least one --code", server.ToolRunPythonCode)
	}
	for _, code := range callCodeFlags {
		text, err := conn.CallTool(ctx, tool, map[string]any{"code": code})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}
	return nil
}

func callTarget() (tools.Target, error) {
	if callURLFlag != "" {
		return tools.Target{URL: callURLFlag}, nil
	}

	switch callModeFlag {
	case modeIsolated, modePersistent:
	default:
		return tools.Target{}, fmt.Errorf("invalid --mode %q (want %s or %s)", callModeFlag, modeIsolated, modePersistent)
	}

	self, err := os.Executable()
	if err != nil {
		return tools.Target{}, fmt.Errorf("locating pyrunner binary: %w", err)
	}

	args := []string{"serve", callModeFlag, "--transport", "stdio"}
	if configFlag != "" {
		args = append(args, "--config", configFlag)
	}
	if logLevelFlag != "" {
		args = append(args, "--log-level", logLevelFlag)
	}
	return tools.Target{Binary: self, Args: args}, nil
}
