// Package main provides the IPC-backed commands for snapfixctl.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/hrithikthakur/snapfix/internal/ipc"
)

// palette holds the ANSI codes used for terminal output. Empty codes
// disable coloring.
type palette struct {
	Bold  string
	Dim   string
	Green string
	Red   string
	Reset string
}

var c = newPalette()

func newPalette() palette {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return palette{}
	}
	return palette{
		Bold:  "\033[1m",
		Dim:   "\033[2m",
		Green: "\033[32m",
		Red:   "\033[31m",
		Reset: "\033[0m",
	}
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "  %s%sERROR%s  %s\n", c.Bold, c.Red, c.Reset, msg)
}

// connect opens an authenticated connection to the daemon.
func connect() *ipc.IPCClient {
	cfg := ipc.DefaultClientConfig(daemonSocketPath())
	cfg.ClientName = "snapfixctl"
	cfg.ClientVersion = Version

	client := ipc.NewClient(cfg)
	if err := client.Connect(); err != nil {
		printError(fmt.Sprintf("Cannot connect to daemon: %v", err))
		fmt.Fprintf(os.Stderr, "  %sTip%s: Start the daemon with: snapfixd\n", c.Dim, c.Reset)
		os.Exit(1)
	}
	return client
}

func cmdStatus() {
	client := connect()
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		printError(fmt.Sprintf("Failed to get status: %v", err))
		os.Exit(1)
	}

	fmt.Printf("%sDAEMON STATUS%s\n\n", c.Bold, c.Reset)
	fmt.Printf("  %sVersion%s     %s\n", c.Dim, c.Reset, status.Version)
	fmt.Printf("  %sUptime%s      %s\n", c.Dim, c.Reset, status.Uptime.Round(time.Second))
	fmt.Printf("  %sCapability%s  %s\n", c.Dim, c.Reset, status.Capability)

	perm := fmt.Sprintf("%sgranted%s", c.Green, c.Reset)
	if !status.PermissionGranted {
		perm = fmt.Sprintf("%smissing%s", c.Red, c.Reset)
	}
	fmt.Printf("  %sPermission%s  %s\n", c.Dim, c.Reset, perm)

	busy := "idle"
	if status.Busy {
		busy = "correcting"
	}
	fmt.Printf("  %sState%s       %s\n", c.Dim, c.Reset, busy)
	fmt.Printf("  %sUndo depth%s  %d\n", c.Dim, c.Reset, status.UndoDepth)

	if status.LastOutcome != "" {
		fmt.Printf("  %sLast cycle%s  %s", c.Dim, c.Reset, status.LastOutcome)
		if status.LastReason != "" && status.LastReason != "none" {
			fmt.Printf(" (%s)", status.LastReason)
		}
		fmt.Println()
	}

	fmt.Printf("\n  %sHotkeys%s     correct: %s   undo: %s\n",
		c.Dim, c.Reset, status.HotkeyCorrect, status.HotkeyUndo)
}

func cmdCorrect() {
	client := connect()
	defer client.Close()

	resp, err := client.Correct()
	if err != nil {
		printError(fmt.Sprintf("Correction failed: %v", err))
		os.Exit(1)
	}

	printOutcome(resp.Outcome, resp.Reason, resp.Message)
	if resp.Outcome == "failed" {
		os.Exit(1)
	}
}

func cmdUndo() {
	client := connect()
	defer client.Close()

	resp, err := client.Undo()
	if err != nil {
		printError(fmt.Sprintf("Undo failed: %v", err))
		os.Exit(1)
	}

	printOutcome(resp.Outcome, resp.Reason, resp.Message)
	if resp.Outcome == "failed" {
		os.Exit(1)
	}
}

func printOutcome(outcome, reason, message string) {
	color := c.Green
	switch outcome {
	case "failed":
		color = c.Red
	case "partial", "nothing-to-undo":
		color = c.Dim
	}
	fmt.Printf("  %s%s%s%s", c.Bold, color, outcome, c.Reset)
	if message != "" {
		fmt.Printf("  %s", message)
	} else if reason != "" {
		fmt.Printf("  (%s)", reason)
	}
	fmt.Println()
}

func cmdPing() {
	client := connect()
	defer client.Close()

	start := time.Now()
	if err := client.Ping(); err != nil {
		fmt.Printf("  %sDaemon%s  %s%sNOT RESPONDING%s (%v)\n", c.Dim, c.Reset, c.Bold, c.Red, c.Reset, err)
		os.Exit(1)
	}
	latency := time.Since(start)

	fmt.Printf("  %sDaemon%s  %s%sRUNNING%s (latency: %s)\n",
		c.Dim, c.Reset, c.Bold, c.Green, c.Reset, latency.Round(time.Microsecond))
}

func cmdMetrics(args []string) {
	prometheus := false
	for _, arg := range args {
		if arg == "--prometheus" {
			prometheus = true
		}
	}

	client := connect()
	defer client.Close()

	format := ""
	if prometheus {
		format = "prometheus"
	}
	resp, err := client.Metrics(format)
	if err != nil {
		printError(fmt.Sprintf("Failed to get metrics: %v", err))
		os.Exit(1)
	}

	if prometheus {
		fmt.Print(resp.Prometheus)
		return
	}

	names := make([]string, 0, len(resp.Metrics))
	for name := range resp.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%sDaemon Metrics%s\n\n", c.Bold, c.Reset)
	for _, name := range names {
		switch v := resp.Metrics[name].(type) {
		case float64:
			// Sums and means are fractional, counts are not.
			if v == float64(int64(v)) {
				fmt.Printf("  %s%-45s%s %d\n", c.Dim, name, c.Reset, int64(v))
			} else {
				fmt.Printf("  %s%-45s%s %.3f\n", c.Dim, name, c.Reset, v)
			}
		default:
			fmt.Printf("  %s%-45s%s %v\n", c.Dim, name, c.Reset, v)
		}
	}
}

func cmdWatch() {
	client := connect()
	defer client.Close()

	if err := client.Subscribe(nil); err != nil {
		printError(fmt.Sprintf("Failed to subscribe: %v", err))
		os.Exit(1)
	}

	fmt.Println("Waiting for events... Press Ctrl+C to stop")
	fmt.Println()

	for event := range client.Events() {
		data, _ := json.Marshal(event)
		fmt.Printf("[%s] %s %s\n",
			event.Timestamp.Format("15:04:05"),
			eventTypeName(event.Type),
			string(data))
	}
}

func eventTypeName(et ipc.EventType) string {
	switch et {
	case ipc.EventCorrectionStarted:
		return "CorrectionStarted"
	case ipc.EventCorrectionFinished:
		return "CorrectionFinished"
	case ipc.EventUndoFinished:
		return "UndoFinished"
	case ipc.EventError:
		return "Error"
	case ipc.EventDaemonShutdown:
		return "DaemonShutdown"
	case ipc.EventConfigChanged:
		return "ConfigChanged"
	default:
		return fmt.Sprintf("Unknown(%d)", et)
	}
}

func cmdReload() {
	client := connect()
	defer client.Close()

	if err := client.ReloadConfig(); err != nil {
		printError(fmt.Sprintf("Reload failed: %v", err))
		os.Exit(1)
	}
	fmt.Println("  Config reloaded")
}

func cmdStop() {
	client := connect()
	defer client.Close()

	if err := client.Shutdown(); err != nil {
		printError(fmt.Sprintf("Stop failed: %v", err))
		os.Exit(1)
	}
	fmt.Println("  Daemon stopping")
}
