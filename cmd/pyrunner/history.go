package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/pyrunner/internal/config"
	"github.com/michaelbrown/pyrunner/internal/storage"
)

var (
	historyModeFlag   string
	historyFailedFlag bool
	historyLimitFlag  int
	exportFormat      string
	exportOutput      string
	pruneOlderFlag    time.Duration
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h"},
	Short:   "Inspect the execution audit log",
	Long: `Inspect executions recorded by the server, run and repl commands.

Recording is enabled by setting storage.db_path in the config.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded executions",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show an execution's code and output",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export executions as markdown, JSON or YAML",
	Args:  cobra.NoArgs,
	RunE:  runHistoryExport,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete executions older than a given age",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyExportCmd, historyPruneCmd)

	for _, c := range []*cobra.Command{historyListCmd, historyExportCmd} {
		c.Flags().StringVar(&historyModeFlag, "mode", "", "Filter by mode (isolated, persistent)")
		c.Flags().BoolVar(&historyFailedFlag, "failed", false, "Only failed executions")
		c.Flags().IntVar(&historyLimitFlag, "limit", 20, "Max executions")
	}

	historyExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md, json or yaml")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	historyPruneCmd.Flags().DurationVar(&pruneOlderFlag, "older-than", 30*24*time.Hour, "Delete executions older than this")
}

func openHistory() (storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openConfiguredStore(cfg)
}

func openConfiguredStore(cfg *config.Config) (storage.Store, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("execution history is disabled (set storage.db_path)")
	}
	return store, nil
}

func listOptions() (storage.ListOptions, error) {
	mode := storage.Mode(historyModeFlag)
	switch mode {
	case "", storage.ModeIsolated, storage.ModePersistent:
	default:
		return storage.ListOptions{}, fmt.Errorf("invalid --mode %q", historyModeFlag)
	}
	return storage.ListOptions{
		Mode:       mode,
		FailedOnly: historyFailedFlag,
		Limit:      historyLimitFlag,
	}, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	opts, err := listOptions()
	if err != nil {
		return err
	}
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	execs, err := store.ListExecutions(context.Background(), opts)
	if err != nil {
		return err
	}

	if len(execs) == 0 {
		fmt.Println("No executions found.")
		return nil
	}

	fmt.Printf("%-10s %-11s %-8s %-9s %-40s %s\n", "ID", "MODE", "STATUS", "ELAPSED", "CODE", "CREATED")
	fmt.Println(strings.Repeat("─", 95))

	for _, e := range execs {
		status := "ok"
		if !e.Success {
			status = fmt.Sprintf("fail(%d)", e.StatusCode)
		}
		fmt.Printf("%-10s %-11s %-8s %-9s %-40s %s\n",
			e.ID[:8], e.Mode, status, fmt.Sprintf("%.3fs", e.Elapsed.Seconds()),
			firstLine(e.Code, 38), timeAgo(e.CreatedAt))
	}

	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	e, err := store.GetExecution(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Execution: %s\n", e.ID)
	fmt.Printf("Mode:      %s\n", e.Mode)
	fmt.Printf("Success:   %t\n", e.Success)
	fmt.Printf("Status:    %d\n", e.StatusCode)
	fmt.Printf("Elapsed:   %.3fs\n", e.Elapsed.Seconds())
	fmt.Printf("Created:   %s\n", e.CreatedAt.Format(time.RFC3339))

	fmt.Println("\nCode:")
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println(strings.TrimRight(e.Code, "\n"))

	if e.Stdout != "" {
		fmt.Println("\nStandard Output:")
		fmt.Println(strings.Repeat("─", 60))
		fmt.Println(strings.TrimRight(e.Stdout, "\n"))
	}
	if e.Stderr != "" {
		fmt.Println("\nStandard Error:")
		fmt.Println(strings.Repeat("─", 60))
		fmt.Printf("\033[31m%s\033[0m\n", strings.TrimRight(e.Stderr, "\n"))
	}

	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	opts, err := listOptions()
	if err != nil {
		return err
	}
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	execs, err := store.ListExecutions(context.Background(), opts)
	if err != nil {
		return err
	}

	var output string
	switch exportFormat {
	case "json":
		data, err := storage.ExportJSON(execs)
		if err != nil {
			return err
		}
		output = string(data) + "\n"
	case "yaml", "yml":
		data, err := storage.ExportYAML(execs)
		if err != nil {
			return err
		}
		output = string(data)
	case "md", "markdown":
		output = storage.ExportMarkdown(execs)
	default:
		return fmt.Errorf("unknown export format %q (want md, json or yaml)", exportFormat)
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, []byte(output), 0o644)
	}

	fmt.Print(output)
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	if pruneOlderFlag <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.DeleteBefore(context.Background(), time.Now().Add(-pruneOlderFlag))
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d execution(s)\n", n)
	return nil
}

// firstLine returns the first non-empty line of s, cut to maxLen runes.
func firstLine(s string, maxLen int) string {
	line := ""
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			line = strings.TrimSpace(l)
			break
		}
	}
	if r := []rune(line); len(r) > maxLen {
		return string(r[:maxLen]) + ".."
	}
	return line
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
