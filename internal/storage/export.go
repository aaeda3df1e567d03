package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportMarkdown renders executions as a markdown document.
func ExportMarkdown(execs []Execution) string {
	var b strings.Builder

	b.WriteString("# Python executions\n\n")
	for _, e := range execs {
		status := "success"
		if !e.Success {
			status = "failed"
		}
		b.WriteString(fmt.Sprintf("## %s\n\n", e.ID))
		b.WriteString(fmt.Sprintf("- **Mode:** %s\n", e.Mode))
		b.WriteString(fmt.Sprintf("- **Status:** %s (code %d)\n", status, e.StatusCode))
		b.WriteString(fmt.Sprintf("- **Elapsed:** %.3fs\n", e.Elapsed.Seconds()))
		b.WriteString(fmt.Sprintf("- **Created:** %s\n\n", e.CreatedAt.Format("2006-01-02 15:04:05")))
		b.WriteString(fmt.Sprintf("```python\n%s\n```\n\n", strings.TrimRight(e.Code, "\n")))
		if e.Stdout != "" {
			b.WriteString(fmt.Sprintf("<details>\n<summary>stdout</summary>\n\n```\n%s\n```\n</details>\n\n", strings.TrimRight(e.Stdout, "\n")))
		}
		if e.Stderr != "" {
			b.WriteString(fmt.Sprintf("<details>\n<summary>stderr</summary>\n\n```\n%s\n```\n</details>\n\n", strings.TrimRight(e.Stderr, "\n")))
		}
	}

	return b.String()
}

// ExportJSON renders executions as formatted JSON.
func ExportJSON(execs []Execution) ([]byte, error) {
	export := struct {
		Executions []Execution `json:"executions"`
	}{
		Executions: execs,
	}
	return json.MarshalIndent(export, "", "  ")
}

// ExportYAML renders executions as YAML.
func ExportYAML(execs []Execution) ([]byte, error) {
	export := struct {
		Executions []Execution `yaml:"executions"`
	}{
		Executions: execs,
	}
	return yaml.Marshal(export)
}
