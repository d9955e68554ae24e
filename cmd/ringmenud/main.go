package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ringmenu"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("ringmenud v%s\n", version)
	fmt.Println("Rotary selection daemon for ring-menu renderers")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  ringmenud [OPTIONS]")
	fmt.Println("  ringmenud send [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that turns scroll-wheel gestures and selection requests into")
	fmt.Println("  shortest-path rotation targets for 3D ring-menu renderers connected")
	fmt.Println("  over WebSocket. Renderers animate; ringmenud owns selection state,")
	fmt.Println("  contention policy and stuck-lock recovery.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional; flags override file values)")
	fmt.Println()
	fmt.Println("  -ws-addr string")
	fmt.Printf("        WebSocket listen address (default %q)\n", defaultWSAddr)
	fmt.Println()
	fmt.Println("  -ws-path string")
	fmt.Printf("        WebSocket endpoint path (default %q)\n", defaultWSPath)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux input event device with a wheel/dial axis (optional)")
	fmt.Println()
	fmt.Println("  -wheel-sensitivity float")
	fmt.Printf("        Wheel sensitivity multiplier (default %.1f)\n", ringmenu.DefaultSensitivity)
	fmt.Println()
	fmt.Println("  -wheel-threshold-px float")
	fmt.Printf("        Pixels of accumulated travel per impulse (default %.0f)\n", ringmenu.DefaultThresholdPx)
	fmt.Println()
	fmt.Println("  -wheel-max-burst int")
	fmt.Printf("        Maximum impulses from one gesture (default %d)\n", ringmenu.DefaultMaxBurst)
	fmt.Println()
	fmt.Println("  -update-hz int")
	fmt.Printf("        Auto-repair sweep frequency in Hz (default %d)\n", defaultUpdateHz)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("SUBCOMMANDS:")
	fmt.Println("  send")
	fmt.Println("        Send one event to a running daemon over IPC")
	fmt.Println("        Options: -socket, -type, -menu, -index, -immediate, -sign,")
	fmt.Println("                 -delta, -unit, -locked, -suppressed, -force")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with defaults (renderer connects to ws://127.0.0.1:8137/ws)")
	fmt.Println("  ringmenud")
	fmt.Println()
	fmt.Println("  # Drive the menu from a USB dial")
	fmt.Println("  ringmenud -input-device /dev/input/event4")
	fmt.Println()
	fmt.Println("  # Select item 3 on the default menu from a script")
	fmt.Println("  ringmenud send -type select_index -index 3")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Input devices require read access (root or the 'input' group)")
	fmt.Println("  - Renderers must acknowledge animations with animation_complete;")
	fmt.Println("    unacknowledged animations are auto-repaired after max_hold_ms")
	fmt.Println()
}

func main() {
	// Check for subcommand mode first
	if len(os.Args) > 1 && os.Args[1] == "send" {
		runSendSubcommand()
		return
	}

	// Check for version/help flags early (for main command)
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath       = flag.String("config", defaultConfigPath, "Path to YAML config file")
		wsAddr           = flag.String("ws-addr", defaultWSAddr, "WebSocket listen address")
		wsPath           = flag.String("ws-path", defaultWSPath, "WebSocket endpoint path")
		ipcSocketPath    = flag.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for IPC")
		inputDevice      = flag.String("input-device", "", "Linux input event device with a wheel/dial axis")
		wheelSensitivity = flag.Float64("wheel-sensitivity", ringmenu.DefaultSensitivity, "Wheel sensitivity multiplier")
		wheelThresholdPx = flag.Float64("wheel-threshold-px", ringmenu.DefaultThresholdPx, "Pixels of accumulated travel per impulse")
		wheelMaxBurst    = flag.Int("wheel-max-burst", ringmenu.DefaultMaxBurst, "Maximum impulses from one gesture")
		updateHz         = flag.Int("update-hz", defaultUpdateHz, "Auto-repair sweep frequency in Hz")
		logLevelStr      = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion      = flag.Bool("version", false, "Print version and exit")
		showHelp         = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Load config file (when given), then let explicitly-set flags override.
	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	overrides := FlagOverrides{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ws-addr":
			overrides.WSAddr = wsAddr
		case "ws-path":
			overrides.WSPath = wsPath
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "input-device":
			overrides.InputDevice = inputDevice
		case "wheel-sensitivity":
			overrides.WheelSensitivity = wheelSensitivity
		case "wheel-threshold-px":
			overrides.WheelThresholdPx = wheelThresholdPx
		case "wheel-max-burst":
			overrides.WheelMaxBurst = wheelMaxBurst
		case "update-hz":
			overrides.UpdateHz = updateHz
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	// Central event bus: every source funnels into the daemon loop.
	events := make(chan Event, 256)

	wsServer := NewServer(logger, events, ServerConfig{})

	menus, err := newMenuRuntimes(&cfg, wsServer.Hub(), logger)
	if err != nil {
		logger.Error("failed to build menus", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsServer.Hub().Run(ctx)
		return nil
	})

	g.Go(func() error {
		runDaemon(ctx, events, menus, &cfg, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, events, logger)
	})

	mux := http.NewServeMux()
	wsServer.Register(mux, cfg.WS.Path)
	httpSrv := &http.Server{
		Addr:              cfg.WS.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("ws listening", "addr", cfg.WS.Addr, "path", cfg.WS.Path)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ws server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if len(cfg.Input.Devices) > 0 {
		g.Go(func() error {
			return runInputReader(ctx, cfg.Input.Devices, cfg.inputMenuID(), events, logger)
		})
	}

	logger.Info("ringmenud started",
		"version", version,
		"menus", len(menus),
		"ws_addr", cfg.WS.Addr,
		"ipc", cfg.IPC.SocketPath,
		"input_devices", len(cfg.Input.Devices),
		"update_hz", cfg.UpdateHz)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func printSendUsage() {
	fmt.Printf("ringmenud send v%s\n", version)
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  ringmenud send -type EVENT [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Sends one event to a running ringmenud over its IPC socket.")
	fmt.Println()
	fmt.Println("EVENT TYPES:")
	fmt.Println("  select_index        -index (required), -immediate")
	fmt.Println("  scroll_impulse      -sign (+1 or -1)")
	fmt.Println("  wheel_delta         -delta, -unit (pixel|line|page)")
	fmt.Println("  animation_complete")
	fmt.Println("  begin_transition")
	fmt.Println("  end_transition")
	fmt.Println("  set_rotation_lock   -locked")
	fmt.Println("  suppress_highlight  -suppressed")
	fmt.Println("  update_highlight    -force")
	fmt.Println("  reset_menu")
	fmt.Println()
	fmt.Println("  All types accept -menu (defaults to the daemon's default menu).")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  ringmenud send -type select_index -index 3")
	fmt.Println("  ringmenud send -type wheel_delta -delta -120 -unit pixel")
	fmt.Println("  ringmenud send -type begin_transition -menu main")
	fmt.Println()
}

func parseUnit(s string) (ringmenu.DeltaUnit, error) {
	switch s {
	case "pixel", "px":
		return ringmenu.UnitPixel, nil
	case "line":
		return ringmenu.UnitLine, nil
	case "page":
		return ringmenu.UnitPage, nil
	default:
		return 0, fmt.Errorf("unknown unit %q (expected pixel, line or page)", s)
	}
}

// runSendSubcommand handles `ringmenud send`
func runSendSubcommand() {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	socketPath := fs.String("socket", defaultIPCSocket, "Unix domain socket path for IPC")
	evType := fs.String("type", "", "Event type to send")
	menu := fs.String("menu", "", "Target menu id (empty = daemon default)")
	index := fs.Int("index", -1, "Item index for select_index")
	immediate := fs.Bool("immediate", false, "Skip the animation for select_index")
	sign := fs.Int("sign", 1, "Impulse direction for scroll_impulse (+1 or -1)")
	delta := fs.Float64("delta", 0, "Raw delta for wheel_delta")
	unit := fs.String("unit", "pixel", "Delta unit for wheel_delta: pixel, line or page")
	locked := fs.Bool("locked", false, "Lock state for set_rotation_lock")
	suppressed := fs.Bool("suppressed", false, "Suppression state for suppress_highlight")
	force := fs.Bool("force", false, "Force recompute for update_highlight")
	showHelp := fs.Bool("help", false, "Print help message")

	fs.Usage = printSendUsage
	fs.Parse(os.Args[2:])

	if *showHelp || *evType == "" {
		printSendUsage()
		if *evType == "" && !*showHelp {
			os.Exit(2)
		}
		return
	}

	var ev Event
	switch *evType {
	case "select_index":
		if *index < 0 {
			fmt.Fprintln(os.Stderr, "error: -index is required for select_index")
			os.Exit(2)
		}
		ev = SelectIndex{Menu: *menu, Index: *index, Immediate: *immediate}

	case "scroll_impulse":
		if *sign != 1 && *sign != -1 {
			fmt.Fprintln(os.Stderr, "error: -sign must be +1 or -1")
			os.Exit(2)
		}
		ev = ScrollImpulse{Menu: *menu, Sign: *sign}

	case "wheel_delta":
		u, err := parseUnit(*unit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(2)
		}
		ev = WheelDelta{Menu: *menu, Delta: *delta, Unit: u}

	case "animation_complete":
		ev = AnimationComplete{Menu: *menu}
	case "begin_transition":
		ev = BeginTransition{Menu: *menu}
	case "end_transition":
		ev = EndTransition{Menu: *menu}
	case "set_rotation_lock":
		ev = SetRotationLock{Menu: *menu, Locked: *locked}
	case "suppress_highlight":
		ev = SuppressHighlight{Menu: *menu, Suppressed: *suppressed}
	case "update_highlight":
		ev = UpdateHighlight{Menu: *menu, Force: *force}
	case "reset_menu":
		ev = ResetMenu{Menu: *menu}

	default:
		fmt.Fprintf(os.Stderr, "error: unknown event type %q\n", *evType)
		os.Exit(2)
	}

	if err := SendIPCEvent(*socketPath, ev); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println("ok")
}
