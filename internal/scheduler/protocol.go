package scheduler

import (
	"encoding/json"
	"strings"

	"github.com/saladfingers379/RIS-SIONNA/internal/progress"
)

const progressPrefix = "PROGRESS "

// parseProgressLine recognizes the §6 worker stdout protocol: a line
// beginning with "PROGRESS " followed by compact JSON matching
// ProgressRecord. Any other line, or malformed JSON after the prefix, is
// not a progress line and should be appended to run.log verbatim.
func parseProgressLine(line string) (progress.Record, bool) {
	if !strings.HasPrefix(line, progressPrefix) {
		return progress.Record{}, false
	}
	payload := strings.TrimPrefix(line, progressPrefix)
	var rec progress.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return progress.Record{}, false
	}
	return rec, true
}
