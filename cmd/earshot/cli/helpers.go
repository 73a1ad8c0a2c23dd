package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/earshot-dev/earshot/internal/storage"
)

// runStatus renders a run's outcome for listings.
func runStatus(m storage.Metadata) string {
	switch {
	case m.Error != "":
		return "failed"
	case m.StoppedAt.IsZero():
		return "running"
	case m.ExitCode != nil && *m.ExitCode != 0:
		return fmt.Sprintf("exit %d", *m.ExitCode)
	default:
		return "ok"
	}
}

func commandString(argv []string) string {
	return strings.Join(argv, " ")
}

// truncate shortens s for table display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}
