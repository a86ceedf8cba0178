// Package report persists the outcome of a provisioning run as a YAML
// document consumed by the status agent.
package report

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tyemirov/rigup/pkg/taskrunner"
)

const (
	// FileName is the report file written into the log directory.
	FileName = "report.yaml"

	reportFilePermissionsConstant      = 0o644
	reportDirectoryPermissionsConstant = 0o755
)

// TaskReport describes one task's terminal outcome.
type TaskReport struct {
	Name                  string `yaml:"name"`
	State                 string `yaml:"state"`
	DurationMilliseconds  int64  `yaml:"duration_ms"`
	FailureDetail         string `yaml:"failure_detail,omitempty"`
	StandardOutputLogPath string `yaml:"stdout_log,omitempty"`
	StandardErrorLogPath  string `yaml:"stderr_log,omitempty"`
}

// RunReport describes one complete provisioning run.
type RunReport struct {
	GeneratedAt  time.Time    `yaml:"generated_at"`
	StartedAt    time.Time    `yaml:"started_at"`
	FinishedAt   time.Time    `yaml:"finished_at"`
	Succeeded    bool         `yaml:"succeeded"`
	FailureCount int          `yaml:"failure_count"`
	Tasks        []TaskReport `yaml:"tasks"`
}

// FromRunOutcome converts an aggregated run outcome into its report form.
func FromRunOutcome(outcome taskrunner.RunOutcome) RunReport {
	runReport := RunReport{
		GeneratedAt:  time.Now(),
		StartedAt:    outcome.StartTime,
		FinishedAt:   outcome.EndTime,
		Succeeded:    outcome.Succeeded(),
		FailureCount: outcome.FailureCount,
		Tasks:        make([]TaskReport, 0, len(outcome.Tasks)),
	}

	for _, taskOutcome := range outcome.Tasks {
		taskReport := TaskReport{
			Name:                  taskOutcome.Name,
			State:                 string(taskOutcome.State),
			DurationMilliseconds:  taskOutcome.Duration.Milliseconds(),
			StandardOutputLogPath: taskOutcome.StandardOutputLogPath,
			StandardErrorLogPath:  taskOutcome.StandardErrorLogPath,
		}
		if taskOutcome.FailureError != nil {
			taskReport.FailureDetail = taskOutcome.FailureError.Error()
		}
		runReport.Tasks = append(runReport.Tasks, taskReport)
	}

	return runReport
}

// Save writes the report to reportPath, creating parent directories as needed.
func Save(reportPath string, runReport RunReport) error {
	if directoryError := os.MkdirAll(filepath.Dir(reportPath), reportDirectoryPermissionsConstant); directoryError != nil {
		return directoryError
	}

	encodedReport, marshalError := yaml.Marshal(runReport)
	if marshalError != nil {
		return marshalError
	}

	return os.WriteFile(reportPath, encodedReport, reportFilePermissionsConstant)
}

// Load reads a previously saved report from reportPath.
func Load(reportPath string) (RunReport, error) {
	reportContent, readError := os.ReadFile(reportPath)
	if readError != nil {
		return RunReport{}, readError
	}

	loadedReport := RunReport{}
	if unmarshalError := yaml.Unmarshal(reportContent, &loadedReport); unmarshalError != nil {
		return RunReport{}, unmarshalError
	}
	return loadedReport, nil
}
