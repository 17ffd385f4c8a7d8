package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"chatwindow/internal/contextmgr"
)

// formatStatus renders s on one line, e.g. "1540/4096 tokens (38%)".
func formatStatus(s contextmgr.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d tokens (%d%%)", s.Current, s.Max, s.Percentage)
	switch {
	case s.IsNearLimit:
		b.WriteString(", near limit")
	case s.NeedsSummarization:
		b.WriteString(", will summarize")
	}
	return b.String()
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
