package ci

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// WriteOutputs appends step outputs to the file GitHub reads them from.
// An empty path is a no-op. Values containing newlines use the heredoc form.
func WriteOutputs(path string, outputs map[string]string) error {
	if path == "" || len(outputs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := outputs[k]
		if strings.Contains(v, "\n") {
			delim := "ghadelimiter_" + uuid.NewString()
			fmt.Fprintf(&b, "%s<<%s\n%s\n%s\n", k, delim, v, delim)
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	return appendFile(path, b.String())
}

// AppendSummary appends markdown to the job summary. An empty path is a no-op.
func AppendSummary(path, markdown string) error {
	if path == "" || markdown == "" {
		return nil
	}
	if !strings.HasSuffix(markdown, "\n") {
		markdown += "\n"
	}
	return appendFile(path, markdown)
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
