// snapfixd - Background daemon that fixes selected text in place.
//
// Press the correction hotkey in any application and the current
// selection is sent to the correction service and replaced with the
// corrected text. A second hotkey reverts the most recent correction.
//
//	snapfixd run            Run the daemon (default)
//	snapfixd init           Write a default config file
//	snapfixd version        Print version
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hrithikthakur/snapfix/internal/config"
)

// Version is the daemon version, stamped at build time.
var Version = "1.0.0"

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && args[0][0] != '-' {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "run":
		cmdRun(args)
	case "init":
		cmdInit()
	case "version":
		fmt.Printf("snapfixd %s\n", Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`snapfixd - fix selected text in place

USAGE:
    snapfixd [command] [options]

COMMANDS:
    run                 Run the daemon (default)
    init                Write a default config file
    version             Print version
    help                Show this help message

RUN OPTIONS:
    -config <path>      Config file path (default: platform config dir)
    -log-level <level>  Override the configured log level
    -no-tray            Run without the system tray icon

SETUP:
    1. snapfixd init                        # write the default config
    2. export SNAPFIX_API_KEY=...           # or set corrector.api_key
    3. snapfixd                             # run; press ctrl+shift+c on any selection

The selection leaves the machine only for the correction request itself;
nothing the user types or selects is ever logged or stored.`)
}

func cmdInit() {
	path := config.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return
	}

	cfg := config.DefaultConfig()
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directories: %v\n", err)
		os.Exit(1)
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote default config: %s\n", path)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set SNAPFIX_API_KEY (or corrector.api_key in the config)")
	fmt.Println("  2. Run 'snapfixd' and press ctrl+shift+c on any selected text")
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", config.ConfigPath(), "config file path")
	logLevel := fs.String("log-level", "", "override the configured log level")
	noTray := fs.Bool("no-tray", false, "run without the system tray icon")
	fs.Parse(args)

	if *logLevel != "" {
		os.Setenv("SNAPFIX_LOG_LEVEL", *logLevel)
	}

	daemon, err := NewDaemon(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	if *noTray {
		if err := daemon.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	runTray(daemon)
}
