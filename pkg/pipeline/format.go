package pipeline

import (
	"fmt"
	"math"
)

// FormatMergeTime renders an average merge time for display: "N/A" when no
// data, minutes under an hour, hours under a day, days otherwise.
func FormatMergeTime(hours *float64) string {
	if hours == nil {
		return "N/A"
	}
	h := *hours
	switch {
	case h < 1:
		return fmt.Sprintf("%d min", int(math.Round(h*60)))
	case h < 24:
		return fmt.Sprintf("%.1f hrs", h)
	default:
		return fmt.Sprintf("%.1f days", h/24)
	}
}

// FormatRejection renders a 0-1 rejection rate as a whole percentage, or
// "N/A" when the learner has no closed PRs.
func FormatRejection(rate *float64) string {
	if rate == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", int(math.Round(*rate*100)))
}
