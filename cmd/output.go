package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// printNotices writes notices until ch is closed, then closes done.
func printNotices(w io.Writer, ch <-chan vsync.Notice, done chan<- struct{}) {
	defer close(done)
	for n := range ch {
		msg := strings.ReplaceAll(n.Message, "\n", " ")
		if n.Level == vsync.NoticeError {
			fmt.Fprintln(w, red("✗"), msg)
			continue
		}
		fmt.Fprintln(w, cyan("•"), msg)
	}
}

// printSummary writes the end-of-run tally and any failures.
func printSummary(w io.Writer, rep *vsync.Report) {
	if rep == nil {
		fmt.Fprintln(w, yellow("No SFTP host configured, nothing to do."))
		return
	}

	status := green("ok")
	switch {
	case rep.Err != "":
		status = red("failed")
	case rep.Failed() > 0:
		status = yellow("partial")
	}
	fmt.Fprintf(w, "%s %s %s in %s: %d succeeded, %d failed, %d skipped\n",
		faint(shortID(rep.RunID)), rep.Direction, status,
		rep.Duration().Round(time.Millisecond),
		rep.Succeeded(), rep.Failed(), rep.Skipped())

	types := make([]string, 0, len(rep.Tallies))
	for t := range rep.Tallies {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		tally := rep.Tallies[vsync.ActionType(t)]
		fmt.Fprintf(w, "  %-20s %s ok  %s failed  %s skipped\n", t,
			humanize.Comma(int64(tally.Succeeded)), humanize.Comma(int64(tally.Failed)), humanize.Comma(int64(tally.Skipped)))
	}

	for _, o := range rep.Failures() {
		fmt.Fprintf(w, "  %s %s %s: %s\n", red("✗"), o.Action.Type, o.Action.Target, o.Err)
	}
	if rep.Err != "" {
		fmt.Fprintf(w, "  %s %s\n", red("error:"), rep.Err)
	}
}

// printRuns tabulates run summaries, newest first.
func printRuns(w io.Writer, runs []vsync.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		state := green("ok")
		switch {
		case r.Err != "":
			state = red("failed")
		case r.Failed > 0:
			state = yellow("partial")
		}
		fmt.Fprintf(w, "%s  %-8s  %-8s  %-14s  %4d ok  %4d failed  %4d skipped\n",
			shortID(r.RunID), r.Direction, state, humanize.Time(r.StartedAt),
			r.Succeeded, r.Failed, r.Skipped)
	}
}

// printRun writes one stored report with its per-action outcomes.
func printRun(w io.Writer, rep *vsync.Report) {
	fmt.Fprintf(w, "Run %s (%s)\n", rep.RunID, rep.Direction)
	fmt.Fprintf(w, "  started  %s (%s)\n", rep.StartedAt.Format(time.RFC3339), humanize.Time(rep.StartedAt))
	fmt.Fprintf(w, "  duration %s\n", rep.Duration().Round(time.Millisecond))
	if rep.Err != "" {
		fmt.Fprintf(w, "  %s %s\n", red("error:"), rep.Err)
	}
	for i, o := range rep.Outcomes {
		mark := green("✓")
		switch o.Status {
		case vsync.StatusFailed:
			mark = red("✗")
		case vsync.StatusSkipped:
			mark = faint("-")
		}
		line := fmt.Sprintf("%4d %s %-18s %s", i+1, mark, o.Action.Type, o.Action.Target)
		if o.Err != "" {
			line += "  " + red(o.Err)
		}
		fmt.Fprintln(w, line)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
