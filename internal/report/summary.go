package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteSummary renders the human summary: totals, histogram, committee
// outcomes and failures.
func (r *Report) WriteSummary(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Run:\t%s (%s)\n", r.RunID, r.Mode)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", r.Error)
	}
	_, _ = fmt.Fprintf(w, "Exit code:\t%d\n", r.ExitCode)
	_, _ = fmt.Fprintln(w)

	c := r.Counts
	_, _ = fmt.Fprintln(w, "SOURCES\tRECORDS\tMEMBERS OK/FAIL\tCOMMITTEES OK/FAIL\tPROPOSED\tREJECTED\tAPPLIED\tUNCHANGED")
	_, _ = fmt.Fprintf(w, "%d\t%d\t%d/%d\t%d/%d\t%d\t%d\t%d\t%d\n",
		c.Sources, c.Records, c.MemberMatched, c.MemberFailed, c.CommitteeMatched, c.CommitteeFailed,
		c.Proposed, c.Rejected, c.Applied, c.Unchanged)

	if len(c.GuardRejected) > 0 {
		rules := make([]string, 0, len(c.GuardRejected))
		for k, n := range c.GuardRejected {
			rules = append(rules, fmt.Sprintf("%s=%d", k, n))
		}
		sort.Strings(rules)
		_, _ = fmt.Fprintf(w, "Guard:\t%s\n", strings.Join(rules, " "))
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "CONFIDENCE\tRECORDS")
	for _, b := range r.Histogram {
		_, _ = fmt.Fprintf(w, "%d-%d\t%d\n", b.Low, b.High, b.Count)
	}

	if len(r.Committees) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "COMMITTEE\tCHAIR\tRANKING\tROSTER")
		for _, co := range r.Committees {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", co.Name, leaderName(co.Chair), leaderName(co.Ranking), co.RosterSize)
		}
	}

	if len(r.Failures) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "KIND\tRECORD\tPERSON\tCOMMITTEE\tREASON")
		for _, f := range r.Failures {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Kind, f.Record, f.Person, truncate(f.Committee, 40), f.Reason)
		}
	}
	return w.Flush()
}

func leaderName(l *Leader) string {
	if l == nil {
		return "-"
	}
	return l.Name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
