package poller

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSource reads updates from a YAML or JSON file on every poll, so an
// external runner can report status by rewriting the file.
//
//	updates:
//	  - node_id: llm-1
//	    status: COMPLETED
//	    results: '{"answer": "42"}'
type FileSource struct {
	Path string
}

type statusFile struct {
	Updates []Update `yaml:"updates"`
}

// Poll implements Source. A missing file reports no updates.
func (s FileSource) Poll(ctx context.Context) ([]Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status file: %w", err)
	}

	var doc statusFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse status file %s: %w", s.Path, err)
	}
	return doc.Updates, nil
}
