package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/focusmute/internal/actionlog"
	"github.com/1broseidon/focusmute/internal/config"
	"github.com/1broseidon/focusmute/internal/daemon"
	"github.com/1broseidon/focusmute/internal/engine"
	"github.com/1broseidon/focusmute/internal/history"
	"github.com/1broseidon/focusmute/internal/hotkeys"
	"github.com/1broseidon/focusmute/internal/ipc"
	"github.com/1broseidon/focusmute/internal/metrics"
	"github.com/1broseidon/focusmute/internal/platform"
	"github.com/1broseidon/focusmute/internal/policy"
	"github.com/1broseidon/focusmute/internal/runtimepath"
	"github.com/1broseidon/focusmute/internal/store"
	"github.com/1broseidon/focusmute/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		if len(os.Args) > 2 && (os.Args[2] == "help" || os.Args[2] == "-h" || os.Args[2] == "--help") {
			fmt.Fprintln(os.Stdout, "Usage: focusmute daemon")
			os.Exit(0)
		}
		if len(os.Args) > 2 {
			fmt.Fprintln(os.Stderr, "daemon takes no arguments")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Usage: focusmute daemon")
			os.Exit(2)
		}
		os.Exit(runDaemon())
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "sessions":
		os.Exit(runSessions(os.Args[2:]))
	case "policy":
		os.Exit(runPolicy(os.Args[2:]))
	case "lock":
		os.Exit(runLock(os.Args[2:], true))
	case "unlock":
		os.Exit(runLock(os.Args[2:], false))
	case "exception":
		os.Exit(runException(os.Args[2:]))
	case "override":
		os.Exit(runOverride(os.Args[2:]))
	case "volume":
		os.Exit(runVolume(os.Args[2:]))
	case "group":
		os.Exit(runGroup(os.Args[2:]))
	case "pidmatch":
		os.Exit(runPIDMatch(os.Args[2:]))
	case "flag":
		os.Exit(runFlag(os.Args[2:]))
	case "history":
		os.Exit(runHistory(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: focusmute <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the focusmute daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  reload              Reload config and policy file")
	fmt.Fprintln(w, "  sessions            List audio sessions and the last decision")
	fmt.Fprintln(w, "  policy              Print the persisted policy")
	fmt.Fprintln(w, "  lock / unlock       Pause or resume automatic muting")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  exception add       Never auto-mute an app")
	fmt.Fprintln(w, "  exception remove    Remove an exception")
	fmt.Fprintln(w, "  exception list      List exceptions")
	fmt.Fprintln(w, "  override set        Pin an app muted or unmuted")
	fmt.Fprintln(w, "  override clear      Remove a manual override")
	fmt.Fprintln(w, "  volume set          Set an app's target volume")
	fmt.Fprintln(w, "  volume clear        Reset an app's target volume")
	fmt.Fprintln(w, "  group add           Add a mute group")
	fmt.Fprintln(w, "  group remove        Remove a mute group")
	fmt.Fprintln(w, "  pidmatch add        Require exact pid match for an app")
	fmt.Fprintln(w, "  pidmatch remove     Drop the pid match requirement")
	fmt.Fprintln(w, "  flag list           Show policy flags")
	fmt.Fprintln(w, "  flag set            Set a policy flag")
	fmt.Fprintln(w, "  history             Show recent transitions")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open interactive TUI")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'focusmute <command> --help' for command-specific options.")
}

// parseNoArgs handles --help for commands that take no arguments.
func parseNoArgs(name, usage string, args []string) (int, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: focusmute "+name)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, usage)
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", name)
		fs.Usage()
		return 2, false
	}
	return 0, true
}

func runStatus(args []string) int {
	if code, ok := parseNoArgs("status", "Show daemon status via IPC.", args); !ok {
		return code
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running:       %v\n", status.DaemonRunning)
	if pid := readDaemonPID(); pid > 0 {
		fmt.Printf("daemon_pid:           %d\n", pid)
	}
	fmt.Printf("backend:              %s\n", status.Backend)
	fmt.Printf("locked:               %v\n", status.Locked)
	fmt.Printf("uptime_seconds:       %d\n", status.UptimeSeconds)
	fmt.Printf("tick_interval_ms:     %d\n", status.TickIntervalMillis)
	fmt.Printf("ticks:                %d\n", status.Ticks)
	fmt.Printf("session_count:        %d\n", status.SessionCount)
	fmt.Printf("foreground:           %s (pid %d)\n", displayOrDefault(status.ForegroundApp, "-"), status.ForegroundPID)
	fmt.Printf("exception_audio:      %v\n", status.AnyExceptionActive)
	fmt.Printf("zero_activity_ticks:  %d\n", status.ZeroActivityCount)
	return 0
}

func runReload(args []string) int {
	if code, ok := parseNoArgs("reload", "Reload the daemon configuration and policy file.", args); !ok {
		return code
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("reloaded")
	return 0
}

func runLock(args []string, locked bool) int {
	name, usage := "lock", "Pause automatic muting. Sessions keep their current state."
	if !locked {
		name, usage = "unlock", "Resume automatic muting."
	}
	if code, ok := parseNoArgs(name, usage, args); !ok {
		return code
	}
	if err := ipc.NewClient().SetLock(locked); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  focusmute config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  focusmute config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  focusmute config explain [--path PATH] <yaml.path>")
		return 2
	}

	load := func(path string) (*config.LoadResult, error) {
		if path == "" {
			return config.LoadWithSources()
		}
		return config.LoadFromPath(path)
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/focusmute/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := load(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/focusmute/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		_ = fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := load(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/focusmute/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := load(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func runTUI(args []string) int {
	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stderr, "Usage: focusmute tui")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive dashboard for the running daemon.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  tab, 1-3   Switch between Sessions, Policy and History")
		fmt.Fprintln(os.Stderr, "  e          Toggle exception for the selected session")
		fmt.Fprintln(os.Stderr, "  m/u/c      Force mute, force unmute, clear override")
		fmt.Fprintln(os.Stderr, "  v/x        Set or clear the target volume")
		fmt.Fprintln(os.Stderr, "  f/a/g      Edit flags, add exception, add mute group (Policy tab)")
		fmt.Fprintln(os.Stderr, "  l          Toggle lock")
		fmt.Fprintln(os.Stderr, "  r          Refresh now")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C  Quit")
		return 0
	}
	if code, ok := parseNoArgs("tui", "Interactive dashboard for the running daemon.", args); !ok {
		return code
	}

	if err := tui.Run(ipc.NewClient()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceEnv:
		if src.Name != "" {
			return "env:" + src.Name
		}
		return "env"
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}

func displayOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func writePIDFile() (string, error) {
	path, err := runtimepath.PIDFilePath()
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0600)
}

func readDaemonPID() int {
	path, err := runtimepath.PIDFilePath()
	if err != nil {
		return 0
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid
}

// eventLooper is implemented by backends that need a blocking event loop
// for global hotkeys.
type eventLooper interface {
	EventLoop()
	QuitEventLoop()
}

func runDaemon() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	log.Printf("Configuration loaded (backend: %s, tick: %s)", cfg.Backend, cfg.TickInterval)

	// Policy file
	statePath := cfg.GetStateFile()
	if statePath == "" {
		if statePath, err = store.DefaultPath(); err != nil {
			log.Printf("Failed to resolve state file: %v", err)
			return 1
		}
	}
	stateStore := store.New(statePath)
	doc, err := stateStore.Load()
	switch {
	case errors.Is(err, store.ErrCorrupt):
		log.Printf("Warning: %v (starting from defaults)", err)
	case err != nil:
		log.Printf("Failed to load policy: %v", err)
		return 1
	}
	state := policy.New(doc, stateStore, logger)
	log.Printf("Policy loaded from %s (%d exceptions)", statePath, len(doc.Exceptions))

	// Audio and focus backend
	backend, err := platform.Open(cfg.Backend)
	if err != nil {
		log.Printf("Failed to open %s backend: %v", cfg.Backend, err)
		return 1
	}
	defer backend.Close()

	eng := engine.New(backend, engine.Options{
		ActivityWindow:  cfg.ActivityWindowTicks,
		VolumeTolerance: cfg.VolumeTolerance,
		Logger:          logger,
	})

	// Optional action log
	if logCfg := cfg.GetLoggingConfig(); logCfg.Enabled {
		actions, err := actionlog.NewLogger(actionlog.LogConfig{
			Enabled:   true,
			Level:     actionlog.ParseLogLevel(logCfg.Level),
			FilePath:  logCfg.File,
			MaxSizeMB: logCfg.MaxSizeMB,
			MaxFiles:  logCfg.MaxFiles,
		})
		if err != nil {
			log.Printf("Warning: failed to initialize action log: %v", err)
		} else {
			defer actions.Close()
			eng.AddSink(actions)
		}
	}

	// Optional transition history
	var (
		historyReader ipc.HistoryReader
		maintenance   func(ctx context.Context) error
	)
	if histCfg := cfg.GetHistoryConfig(); histCfg.Enabled {
		hist, err := history.Open(histCfg.Path, logger)
		if err != nil {
			log.Printf("Warning: failed to open history: %v", err)
		} else {
			defer hist.Close()
			eng.AddSink(hist)
			historyReader = hist
			if histCfg.Retention > 0 {
				maintenance = func(ctx context.Context) error {
					n, err := hist.Prune(ctx, time.Now().Add(-histCfg.Retention))
					if n > 0 {
						logger.Info("pruned history", "removed", n)
					}
					return err
				}
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional metrics endpoint
	if cfg.Metrics.Enabled {
		m := metrics.New()
		eng.AddSink(m)
		eng.AddObserver(m)
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				log.Printf("Warning: metrics server stopped: %v", err)
			}
		}()
	}

	runner := daemon.NewRunner(daemon.RunnerConfig{
		Interval:            cfg.TickInterval,
		MaintenanceInterval: time.Hour,
		Maintenance:         maintenance,
		Logger:              logger,
	}, eng, state)

	if maintenance != nil {
		if err := maintenance(ctx); err != nil {
			log.Printf("Warning: history prune failed: %v", err)
		}
	}
	go runner.Run(ctx)

	// reload re-reads config.yaml and the policy file. The state file
	// location and backend are fixed for the lifetime of the daemon.
	reload := func() error {
		newCfg, err := config.Load()
		if err != nil {
			return err
		}
		doc, err := stateStore.Load()
		if err != nil {
			return err
		}
		runner.UpdateInterval(newCfg.TickInterval)
		opCtx, opCancel := context.WithTimeout(ctx, 5*time.Second)
		defer opCancel()
		return runner.Do(opCtx, func(st *policy.State) error {
			eng.SetActivityWindow(newCfg.ActivityWindowTicks)
			st.Reload(doc)
			return nil
		})
	}

	// Start IPC server
	ipcServer, err := ipc.NewServer(runner, ipc.ServerOptions{
		Backend: backend.Name(),
		History: historyReader,
		Reload:  reload,
	})
	if err != nil {
		log.Printf("Failed to create IPC server: %v", err)
		return 1
	}
	if err := ipcServer.Start(); err != nil {
		log.Printf("Failed to start IPC server: %v", err)
		return 1
	}
	defer ipcServer.Stop()

	if pidPath, err := writePIDFile(); err != nil {
		log.Printf("Warning: failed to write pid file: %v", err)
	} else {
		defer os.Remove(pidPath)
	}

	// Lock hotkey
	if cfg.LockHotkey != "" {
		handler, err := hotkeys.NewHandler(backend, runner)
		switch {
		case errors.Is(err, hotkeys.ErrNoX11):
			log.Printf("Lock hotkey not available on the %s backend", backend.Name())
		case err != nil:
			log.Printf("Warning: failed to set up hotkeys: %v", err)
		default:
			if err := handler.RegisterLockToggle(cfg.LockHotkey); err != nil {
				log.Printf("Warning: failed to register lock hotkey: %v", err)
			} else {
				log.Printf("Lock hotkey registered: %s", cfg.LockHotkey)
			}
		}
	}

	// Setup signal handlers
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	looper, hasLoop := backend.(eventLooper)

	go func() {
		for {
			select {
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGHUP:
					log.Println("Received SIGHUP, reloading config...")
					if err := reload(); err != nil {
						log.Printf("Reload failed: %v", err)
						continue
					}
					log.Println("Config reloaded successfully")
				default:
					log.Println("Shutting down focusmute daemon...")
					cancel()
					if hasLoop {
						looper.QuitEventLoop()
					}
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("focusmute daemon started (backend: %s, socket: %s)", backend.Name(), ipcServer.SocketPath())

	if hasLoop {
		// Start event loop (blocking)
		looper.EventLoop()
		cancel()
	} else {
		<-ctx.Done()
	}
	<-runner.Done()
	return 0
}
