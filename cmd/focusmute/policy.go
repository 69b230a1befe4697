package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pelletier/go-toml/v2"

	"github.com/1broseidon/focusmute/internal/ipc"
	"github.com/1broseidon/focusmute/internal/policy"
)

// errUsage marks argument errors that should exit with status 2.
var errUsage = errors.New("usage")

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}

func isHelp(args []string) bool {
	return len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help")
}

// requireArgs prints usage and returns errUsage when args has the wrong length.
func requireArgs(args []string, n int, usage string) error {
	if len(args) != n {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return errUsage
	}
	return nil
}

func runSessions(args []string) int {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: focusmute sessions [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List live audio sessions with the decision from the last tick.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	data, err := ipc.NewClient().ListSessions()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(data)
	}
	printSessions(os.Stdout, data)
	return 0
}

func printSessions(w io.Writer, data *ipc.SessionsData) {
	if data.Locked {
		fmt.Fprintln(w, "# locked: automatic muting is paused")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tAPP\tSTATE\tVOLUME\tREASON\t")
	for _, d := range data.Sessions {
		state := "audible"
		if d.Muted {
			state = "muted"
		}
		app := d.App
		if d.Foreground {
			app += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d%%\t%s\t\n", d.PID, app, state, int(d.Volume*100+0.5), d.Reason)
	}
	tw.Flush()
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runPolicy(args []string) int {
	fs := flag.NewFlagSet("policy", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON instead of TOML")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: focusmute policy [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Print the policy as the daemon currently holds it.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	doc, err := ipc.NewClient().GetPolicy()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(doc)
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

func runException(args []string) int {
	const usage = "focusmute exception add|remove <app> | list"
	if len(args) == 0 || isHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
	client := ipc.NewClient()

	switch args[0] {
	case "add":
		if err := requireArgs(args[1:], 1, "focusmute exception add <app>"); err != nil {
			return exitCode(err)
		}
		return exitCode(client.AddException(args[1]))
	case "remove", "rm":
		if err := requireArgs(args[1:], 1, "focusmute exception remove <app>"); err != nil {
			return exitCode(err)
		}
		return exitCode(client.RemoveException(args[1]))
	case "list", "ls":
		doc, err := client.GetPolicy()
		if err != nil {
			return exitCode(err)
		}
		for _, app := range doc.Exceptions {
			fmt.Println(app)
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown exception subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
}

// parseMuteState accepts muted/unmuted and the usual boolean spellings.
func parseMuteState(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "muted", "mute", "on":
		return true, nil
	case "unmuted", "unmute", "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid state %q (want muted or unmuted)", s)
	}
	return v, nil
}

func runOverride(args []string) int {
	const usage = "focusmute override set <app> muted|unmuted | clear <app>"
	if len(args) == 0 || isHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
	client := ipc.NewClient()

	switch args[0] {
	case "set":
		if err := requireArgs(args[1:], 2, "focusmute override set <app> muted|unmuted"); err != nil {
			return exitCode(err)
		}
		muted, err := parseMuteState(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		return exitCode(client.SetOverride(args[1], muted))
	case "clear":
		if err := requireArgs(args[1:], 1, "focusmute override clear <app>"); err != nil {
			return exitCode(err)
		}
		return exitCode(client.ClearOverride(args[1]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown override subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
}

func parseVolume(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q", s)
	}
	if v < 0 || v > 100 {
		return 0, policy.ErrVolumeRange
	}
	return v, nil
}

func runVolume(args []string) int {
	const usage = "focusmute volume set <app> <0-100> | clear <app>"
	if len(args) == 0 || isHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
	client := ipc.NewClient()

	switch args[0] {
	case "set":
		if err := requireArgs(args[1:], 2, "focusmute volume set <app> <0-100>"); err != nil {
			return exitCode(err)
		}
		v, err := parseVolume(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		return exitCode(client.SetVolume(args[1], v))
	case "clear":
		if err := requireArgs(args[1:], 1, "focusmute volume clear <app>"); err != nil {
			return exitCode(err)
		}
		return exitCode(client.ClearVolume(args[1]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown volume subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
}

func runGroup(args []string) int {
	const usage = "focusmute group add <app> <app>... | remove <index> | list"
	if len(args) == 0 || isHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
	client := ipc.NewClient()

	switch args[0] {
	case "add":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: focusmute group add <app> <app>...")
			return 2
		}
		return exitCode(client.AddGroup(args[1:]))
	case "remove", "rm":
		if err := requireArgs(args[1:], 1, "focusmute group remove <index>"); err != nil {
			return exitCode(err)
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid index %q\n", args[1])
			return 2
		}
		return exitCode(client.RemoveGroup(idx))
	case "list", "ls":
		doc, err := client.GetPolicy()
		if err != nil {
			return exitCode(err)
		}
		for i, g := range doc.MuteGroups {
			fmt.Printf("%d: %s\n", i, strings.Join(g, ", "))
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown group subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
}

func runPIDMatch(args []string) int {
	const usage = "focusmute pidmatch add|remove <app>"
	if len(args) == 0 || isHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
	client := ipc.NewClient()

	switch args[0] {
	case "add":
		if err := requireArgs(args[1:], 1, "focusmute pidmatch add <app>"); err != nil {
			return exitCode(err)
		}
		return exitCode(client.AddPIDMatch(args[1]))
	case "remove", "rm":
		if err := requireArgs(args[1:], 1, "focusmute pidmatch remove <app>"); err != nil {
			return exitCode(err)
		}
		return exitCode(client.RemovePIDMatch(args[1]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown pidmatch subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
}

func runFlag(args []string) int {
	const usage = "focusmute flag list | set <name> true|false"
	if len(args) == 0 || isHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
	client := ipc.NewClient()

	switch args[0] {
	case "list", "ls":
		doc, err := client.GetPolicy()
		if err != nil {
			return exitCode(err)
		}
		for _, f := range policy.AllFlags {
			fmt.Printf("%-40s %v\n", f, doc.Flags.Get(f))
		}
		return 0
	case "set":
		if err := requireArgs(args[1:], 2, "focusmute flag set <name> true|false"); err != nil {
			return exitCode(err)
		}
		flagName, err := policy.ParseFlag(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "unknown flag %q\n", args[1])
			return 2
		}
		v, err := strconv.ParseBool(args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid value %q (want true or false)\n", args[2])
			return 2
		}
		return exitCode(client.SetFlag(string(flagName), v))
	default:
		fmt.Fprintf(os.Stderr, "Unknown flag subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		return 2
	}
}
