// snapfixctl is the control CLI for snapfixd.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hrithikthakur/snapfix/internal/config"
)

// Version is stamped at build time.
var Version = "1.0.0"

var (
	socketPath = flag.String("socket", "", "daemon socket path (default: from config)")
	configPath = flag.String("config", "", "path to config file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "status":
		cmdStatus()
	case "correct":
		cmdCorrect()
	case "undo":
		cmdUndo()
	case "ping":
		cmdPing()
	case "metrics":
		cmdMetrics(flag.Args()[1:])
	case "watch":
		cmdWatch()
	case "reload":
		cmdReload()
	case "stop":
		cmdStop()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `snapfixctl - Control utility for snapfixd

Usage: snapfixctl [options] <command>

Commands:
  status          Show daemon status
  correct         Correct the current selection, as the hotkey would
  undo            Revert the most recent correction
  ping            Check whether the daemon is responding
  metrics         Dump correction cycle counters and timings
                  (--prometheus for exposition format)
  watch           Stream correction events until interrupted
  reload          Ask the daemon to reload its config file
  stop            Ask the daemon to exit
  help            Show this help message

Options:
  -socket <path>  Daemon socket path (default: from config)
  -config <path>  Path to config file`)
}

// daemonSocketPath resolves the socket to connect to: flag, then config
// file, then the built-in default.
func daemonSocketPath() string {
	if *socketPath != "" {
		return *socketPath
	}

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.DefaultConfig().IPC.SocketPath
	}
	return cfg.IPC.SocketPath
}
