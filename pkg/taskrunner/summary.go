package taskrunner

import (
	"fmt"
	"strings"
	"time"
)

const (
	summaryTotalTemplateConstant     = "Summary: total.tasks=%d"
	summarySucceededTemplateConstant = "succeeded=%d"
	summaryFailedTemplateConstant    = "failed=%d"
	summaryDurationHumanTemplate     = "duration_human=%s"
	summaryDurationMillisTemplate    = "duration_ms=%d"
	summaryPartSeparatorConstant     = " "
	zeroDurationHumanConstant        = "0s"
)

// RenderSummaryLine returns the summary line printed after a provisioning run.
func RenderSummaryLine(outcome RunOutcome) string {
	taskCount := len(outcome.Tasks)
	if taskCount == 0 {
		return ""
	}

	runDuration := outcome.EndTime.Sub(outcome.StartTime)
	if runDuration < 0 {
		runDuration = 0
	}

	durationHuman := runDuration.Round(time.Millisecond).String()
	if len(durationHuman) == 0 {
		durationHuman = zeroDurationHumanConstant
	}

	parts := []string{
		fmt.Sprintf(summaryTotalTemplateConstant, taskCount),
		fmt.Sprintf(summarySucceededTemplateConstant, taskCount-outcome.FailureCount),
		fmt.Sprintf(summaryFailedTemplateConstant, outcome.FailureCount),
		fmt.Sprintf(summaryDurationHumanTemplate, durationHuman),
		fmt.Sprintf(summaryDurationMillisTemplate, runDuration.Milliseconds()),
	}

	return strings.Join(parts, summaryPartSeparatorConstant)
}
