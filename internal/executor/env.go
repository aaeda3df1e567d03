package executor

import (
	"os"
	"runtime"
	"sort"
)

// DefaultInterpreter is the Python binary name for the host platform.
func DefaultInterpreter() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// Environ returns the inherited environment with UTF-8 text I/O forced for
// the child interpreter, followed by the extra variables in key order.
func Environ(extra map[string]string) []string {
	env := os.Environ()
	env = append(env,
		"PYTHONIOENCODING=utf-8",
		"PYTHONLEGACYWINDOWSFSENCODING=0",
	)

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
