package logging

import (
	"strconv"
	"strings"
)

// FormatSubject builds the job/page/stage subject string used in console output.
// Job IDs are shortened to their first eight characters.
func FormatSubject(jobID string, page int, stage string) string {
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	parts := make([]string, 0, 3)
	if jobID != "" {
		parts = append(parts, "Job "+jobID)
	}
	if page > 0 {
		parts = append(parts, "p"+strconv.Itoa(page))
	}
	if stage != "" {
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}
