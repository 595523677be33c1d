package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/vulnscout/vulnscout/internal/report"
)

// RenderReport writes the styled text form of a report.
func RenderReport(w io.Writer, styles Styles, rep *report.Report) {
	fmt.Fprintln(w, styles.Header.Render("Vulnerability report"))
	fmt.Fprintf(w, "%s %s\n", styles.Label.Render("repository:"), rep.RepoURL)
	if rep.Revision != "" {
		fmt.Fprintf(w, "%s %s\n", styles.Label.Render("revision:  "), rep.Revision)
	}
	fmt.Fprintf(w, "%s %d files, %d chunks", styles.Label.Render("scanned:   "),
		rep.Summary.FilesScanned, rep.Summary.ChunksIndexed)
	if rep.Summary.IndexReused {
		fmt.Fprintf(w, " %s", styles.Dim.Render("(index reused)"))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %dms\n", styles.Label.Render("duration:  "), rep.Summary.DurationMS)
	fmt.Fprintln(w)

	if len(rep.Findings) == 0 {
		fmt.Fprintln(w, styles.Success.Render("No findings."))
		return
	}

	fmt.Fprintln(w, styles.Header.Render(fmt.Sprintf("%d finding(s)", len(rep.Findings))))
	for i, f := range rep.Findings {
		sev := styles.SeverityStyle(f.Severity).Render(strings.ToUpper(f.Severity))
		fmt.Fprintf(w, "\n%d. [%s] %s %s\n", i+1, sev, f.Title, styles.Dim.Render(f.VulnID))
		fmt.Fprintf(w, "   %s:%d-%d  %s\n",
			f.Location.File, f.Location.StartLine, f.Location.EndLine,
			styles.Label.Render(fmt.Sprintf("confidence %.2f", f.Confidence)))
		if f.CWE != "" {
			fmt.Fprintf(w, "   %s\n", styles.Label.Render(f.CWE))
		}
		if f.Rationale != "" {
			fmt.Fprintf(w, "   %s\n", f.Rationale)
		}
	}
}
