package detect

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mcpify/mcpify/internal/config"
	"github.com/mcpify/mcpify/internal/debug"
)

// sourceFile is one Python file selected by the walk.
type sourceFile struct {
	relPath string
	content []byte
}

// collectPythonFiles walks root and returns the Python sources to analyze,
// sorted by relative path so detection output is deterministic. Excluded
// path segments are never descended into; files over the size ceiling are
// skipped; byte-identical files (vendored copies) are analyzed once.
func collectPythonFiles(root string, settings config.Detect) ([]sourceFile, error) {
	var files []sourceFile
	seen := make(map[uint64]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // unreadable subtree: skip, keep walking
		}
		if path == root {
			return nil
		}

		name := d.Name()
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = name
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchesAny(settings.Exclude, name) || matchesAny(settings.Exclude, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".py") ||
			matchesAny(settings.Exclude, name) || matchesAny(settings.Exclude, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if settings.MaxFileSize > 0 && info.Size() > settings.MaxFileSize {
			debug.LogDetect("skipping %s: %d bytes over size ceiling\n", path, info.Size())
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		hash := xxhash.Sum64(content)
		if prior, dup := seen[hash]; dup {
			debug.LogDetect("skipping %s: identical to %s\n", rel, prior)
			return nil
		}
		seen[hash] = rel

		files = append(files, sourceFile{relPath: rel, content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].relPath < files[j].relPath })
	return files, nil
}

// matchesAny checks a name segment or slash-separated relative path
// against the exclusion globs.
func matchesAny(patterns []string, segment string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, segment)
		if err != nil {
			// bad pattern shouldn't break scanning
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// analyzeFiles parses every source file, a worker per CPU, each worker
// owning its own tree-sitter parser. Results keep the input order.
func analyzeFiles(files []sourceFile) ([]*pyFile, error) {
	results := make([]*pyFile, len(files))
	indexes := make(chan int)

	var g errgroup.Group
	workers := runtime.NumCPU()
	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	var feed sync.WaitGroup
	feed.Add(1)
	go func() {
		defer feed.Done()
		for i := range files {
			indexes <- i
		}
		close(indexes)
	}()

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			analyzer, err := newPyAnalyzer()
			if err != nil {
				return err
			}
			defer analyzer.Close()
			for i := range indexes {
				results[i] = analyzer.Analyze(files[i].relPath, files[i].content)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// drain so the feeder goroutine can finish
		for range indexes {
		}
		feed.Wait()
		return nil, err
	}
	feed.Wait()
	return results, nil
}
