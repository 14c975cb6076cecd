package main

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// fileConfigSource reads the run configuration from a key=value file. It
// stands in for the production config tab on local runs; an empty path
// yields an empty map, so every key uses its default.
type fileConfigSource struct {
	path string
}

func newFileConfigSource(path string) *fileConfigSource {
	return &fileConfigSource{path: path}
}

// ConfigValues parses the file into a flat key-value map. Blank lines and
// #-comments are ignored.
func (s *fileConfigSource) ConfigValues(_ context.Context) (map[string]string, error) {
	kv := make(map[string]string)
	if s.path == "" {
		return kv, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config %s: %w", s.path, err)
	}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("run config %s line %d: missing '=' in %q", s.path, i+1, line)
		}
		kv[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return kv, nil
}
