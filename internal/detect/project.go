package detect

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// projectInfo is the project-level metadata every strategy reports.
type projectInfo struct {
	name        string
	description string
}

// pyprojectDoc is the subset of pyproject.toml this tool reads.
type pyprojectDoc struct {
	Project struct {
		Name        string `toml:"name"`
		Description string `toml:"description"`
	} `toml:"project"`
}

var setupNameRe = regexp.MustCompile(`name\s*=\s*["']([^"']+)["']`)

// extractProjectInfo recovers the project name and description from
// packaging metadata and the README, falling back to the directory name.
func extractProjectInfo(root string) projectInfo {
	info := projectInfo{name: projectName(root)}
	info.description = "API for " + info.name

	if data, err := os.ReadFile(filepath.Join(root, "pyproject.toml")); err == nil {
		var doc pyprojectDoc
		if toml.Unmarshal(data, &doc) == nil && doc.Project.Description != "" {
			info.description = doc.Project.Description
		}
	}
	if desc := readmeDescription(root); desc != "" {
		info.description = desc
	}
	return info
}

func projectName(root string) string {
	if data, err := os.ReadFile(filepath.Join(root, "pyproject.toml")); err == nil {
		var doc pyprojectDoc
		if toml.Unmarshal(data, &doc) == nil && doc.Project.Name != "" {
			return doc.Project.Name
		}
	}
	if data, err := os.ReadFile(filepath.Join(root, "setup.py")); err == nil {
		if m := setupNameRe.FindSubmatch(data); m != nil {
			return string(m[1])
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Base(root)
	}
	name := filepath.Base(abs)
	if name == "." || name == string(filepath.Separator) {
		return "project"
	}
	return name
}

// readmeDescription pulls the first substantial paragraph after the title
// out of a README, skipping badges and bare links.
func readmeDescription(root string) string {
	var readme string
	for _, candidate := range []string{"README.md", "README.rst", "README.txt", "README"} {
		if _, err := os.Stat(filepath.Join(root, candidate)); err == nil {
			readme = filepath.Join(root, candidate)
			break
		}
	}
	if readme == "" {
		return ""
	}
	data, err := os.ReadFile(readme)
	if err != nil {
		return ""
	}

	var parts []string
	foundTitle := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			foundTitle = true
			continue
		}
		if strings.Contains(line, "[![") || strings.HasPrefix(line, "http") {
			continue
		}
		if foundTitle && len(line) > 20 {
			parts = append(parts, line)
			if len(strings.Join(parts, " ")) > 100 {
				break
			}
		}
	}
	return strings.Join(parts, " ")
}
