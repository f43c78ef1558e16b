package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// Load reads .mcpify.kdl from projectRoot when present, over defaults.
func Load(projectRoot string) (*Settings, error) {
	settings := Default()

	kdlPath := filepath.Join(projectRoot, ".mcpify.kdl")
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return settings, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .mcpify.kdl: %v", err)
	}
	if err := parseKDL(string(content), settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func parseKDL(content string, settings *Settings) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse .mcpify.kdl: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "detect":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "exclude":
					if patterns := collectStringArgs(cn); len(patterns) > 0 {
						settings.Detect.Exclude = patterns
					}
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						settings.Detect.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							settings.Detect.MaxFileSize = sz
						}
					}
				case "strategy":
					if s, ok := firstStringArg(cn); ok {
						settings.Detect.Strategy = s
					}
				}
			}
		case "dispatch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "timeout_seconds":
					if v, ok := firstIntArg(cn); ok && v > 0 {
						settings.Dispatch.Timeout = time.Duration(v) * time.Second
					}
				case "python":
					if s, ok := firstStringArg(cn); ok {
						settings.Dispatch.Python = s
					}
				}
			}
		}
	}
	return nil
}

// Helper functions leveraging the kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	// Block form: exclude { "pattern" } puts each string in a child node name
	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// parseSize handles size strings like "10MB", "500KB", "1GB"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
