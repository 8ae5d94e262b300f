// Package report writes run summaries as YAML files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/meme-metadata/harvester/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// RunConfig echoes the configuration a run executed with.
type RunConfig struct {
	Stage      string `yaml:"stage"`
	BatchSize  int    `yaml:"batchsize"`
	MaxWorkers int    `yaml:"maxworkers"`
	Timestamp  string `yaml:"timestamp"`
}

// RunReport is the persisted summary of one pipeline run.
type RunReport struct {
	Config     RunConfig `yaml:"config"`
	Total      int       `yaml:"total"`
	Processed  int       `yaml:"processed"`
	Failed     int       `yaml:"failed"`
	FailedKeys []string  `yaml:"failedkeys,omitempty"`
}

// Save writes the run summary under dir and returns the file path.
func Save(dir, stage string, cfg pipeline.Config, summary *pipeline.Summary) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	failedKeys := append([]string(nil), summary.FailedKeys...)
	sort.Strings(failedKeys)

	rpt := RunReport{
		Config: RunConfig{
			Stage:      stage,
			BatchSize:  cfg.BatchSize,
			MaxWorkers: cfg.MaxWorkers,
			Timestamp:  timestamp,
		},
		Total:      summary.Total,
		Processed:  summary.Processed,
		Failed:     summary.Failed,
		FailedKeys: failedKeys,
	}

	data, err := yaml.Marshal(&rpt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", stage, timestamp))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
