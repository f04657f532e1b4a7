// Package eval measures retrieval quality offline. A golden query set pairs
// queries with the corpus paths that count as correct answers; the evaluator
// runs each query through the engine and reports Hit@K, Recall@K, and mean
// reciprocal rank.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
)

// Case is one golden query and the paths that count as correct answers.
type Case struct {
	Query    string   `json:"query"`
	Relevant []string `json:"relevant"`           // corpus-relative paths, any order
	Category string   `json:"category,omitempty"` // free-form grouping for the report
}

// Dataset is a golden query set for one corpus.
type Dataset struct {
	Name  string `json:"name"`
	Cases []Case `json:"cases"`
}

// LoadDataset reads a golden query set from a JSON file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	if len(ds.Cases) == 0 {
		return nil, fmt.Errorf("dataset %s has no cases", path)
	}
	for i, c := range ds.Cases {
		if c.Query == "" {
			return nil, fmt.Errorf("dataset %s: case %d has an empty query", path, i)
		}
		if len(c.Relevant) == 0 {
			return nil, fmt.Errorf("dataset %s: case %d (%q) names no relevant paths", path, i, c.Query)
		}
	}
	return &ds, nil
}
