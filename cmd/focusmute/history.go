package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/1broseidon/focusmute/internal/engine"
	"github.com/1broseidon/focusmute/internal/history"
	"github.com/1broseidon/focusmute/internal/ipc"
)

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 50, "Maximum entries to show")
	app := fs.String("app", "", "Only show transitions for this app")
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: focusmute history [--limit N] [--app NAME] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show recent mute, unmute and volume changes, newest first.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be positive")
		return 2
	}

	data, err := ipc.NewClient().GetHistory(*limit, *app)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(data)
	}
	printHistory(os.Stdout, data.Entries)
	return 0
}

func printHistory(w io.Writer, entries []history.Entry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tPID\tAPP\tREASON\t")
	for _, e := range entries {
		action := string(e.Action)
		if e.Action == engine.ActionVolume {
			action = fmt.Sprintf("volume %d%%", int(e.Volume*100+0.5))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n",
			e.Time.Local().Format("2006-01-02 15:04:05"), action, e.PID, e.App, e.Reason)
	}
	tw.Flush()
}
