package crawler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/process"
	"github.com/Sriram-PR/quiz-scraper/pkg/render"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// RunReport summarizes one harvest. It is returned by Run and, when enabled,
// written as YAML beside the PDF.
type RunReport struct {
	RunID   string          `yaml:"run_id"`
	SeedURL string          `yaml:"seed_url"`
	Title   string          `yaml:"title"`
	Mode    models.LinkKind `yaml:"mode"`
	Resumed bool            `yaml:"resumed"`

	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
	Duration   time.Duration `yaml:"duration"`

	TopicsResolved  int `yaml:"topics_resolved"`
	TopicsSkipped   int `yaml:"topics_skipped"` // completed in an earlier run
	TopicsProcessed int `yaml:"topics_processed"`
	TopicsFailed    int `yaml:"topics_failed"`

	Failed        []models.FailedTopic `yaml:"failed,omitempty"`
	PDF           *render.Result       `yaml:"pdf,omitempty"`
	MarkdownPath  string               `yaml:"markdown_path,omitempty"`
	Images        process.ImageStats   `yaml:"images"`
	Interstitials int                  `yaml:"interstitials"`
	ProgressPath  string               `yaml:"progress_path"`
}

// WriteReport writes report as YAML to path, creating the directory if needed
func WriteReport(path string, report *RunReport, log *logrus.Entry) error {
	log.Infof("Preparing to write run report to: %s", path)

	yamlData, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("%w: marshal run report: %w", utils.ErrParsing, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: create report directory: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(path, yamlData, 0644); err != nil {
		return fmt.Errorf("%w: write run report '%s': %w", utils.ErrFilesystem, path, err)
	}

	log.Infof("Successfully wrote run report for %d topics to %s", report.TopicsResolved, path)
	return nil
}
