package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hrithikthakur/snapfix/internal/bridge"
	"github.com/hrithikthakur/snapfix/internal/clipboard"
	"github.com/hrithikthakur/snapfix/internal/config"
	"github.com/hrithikthakur/snapfix/internal/corrector"
	"github.com/hrithikthakur/snapfix/internal/engine"
	"github.com/hrithikthakur/snapfix/internal/fallback"
	"github.com/hrithikthakur/snapfix/internal/hotkeys"
	"github.com/hrithikthakur/snapfix/internal/ipc"
	"github.com/hrithikthakur/snapfix/internal/logging"
	"github.com/hrithikthakur/snapfix/internal/metrics"
	"github.com/hrithikthakur/snapfix/internal/notify"
	"github.com/hrithikthakur/snapfix/internal/undo"
)

// Daemon wires the correction engine, hotkeys, IPC server and config
// hot-reload into one process.
type Daemon struct {
	configPath string
	loader     *config.Loader
	log        *logging.Logger
	crash      *logging.CrashHandler
	stats      *metrics.DaemonMetrics

	// The engine and ledger live for the whole process; config reloads
	// reconfigure them in place so the single-flight gate and the undo
	// history survive.
	engine *engine.Engine
	ledger *undo.Ledger

	mu        sync.RWMutex
	cfg       *config.Config
	brg       bridge.Bridge
	hotkeyMgr *hotkeys.Manager

	server  *ipc.Server
	handler *ipc.DaemonHandler

	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	cancel context.CancelFunc
}

// NewDaemon loads configuration and builds the daemon. Nothing is
// listening or registered until Run or Start is called.
func NewDaemon(configPath string) (*Daemon, error) {
	cfg, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logging.SetDefault(log)

	crash := logging.DefaultCrashHandler()
	crash.SetVersion(Version)
	if err := crash.CleanupOldCrashReports(30 * 24 * time.Hour); err != nil {
		log.Warn("crash report cleanup failed", "error", err)
	}

	d := &Daemon{
		configPath: configPath,
		log:        log,
		crash:      crash,
		stats:      metrics.NewDaemonMetrics(nil),
		ledger:     undo.NewLedger(cfg.Undo.Depth),
		cfg:        cfg,
		shutdownCh: make(chan struct{}),
	}
	deps, brg := buildDeps(cfg, log, d.ledger)
	d.engine = engine.New(deps)
	d.brg = brg

	if created {
		log.Info("wrote default config", "path", configPath)
	}
	log.Info("daemon configured",
		"capability", d.brg.Capability().String(),
		"hotkey_correct", cfg.Hotkeys.Correct,
		"hotkey_undo", cfg.Hotkeys.Undo)

	return d, nil
}

// newLogger maps the file config onto the logging package.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := logging.DefaultConfig()

	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		lc.Level = level
	}
	if cfg.Logging.Format == "json" {
		lc.Format = logging.FormatJSON
	}
	if cfg.Logging.Output != "" {
		lc.Output = cfg.Logging.Output
	}
	if p := cfg.LogPath(); p != "" {
		lc.FilePath = p
	}
	if cfg.Logging.MaxSizeMB > 0 {
		lc.MaxSize = int64(cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups > 0 {
		lc.MaxBackups = cfg.Logging.MaxBackups
	}
	if cfg.Logging.MaxAgeDays > 0 {
		lc.MaxAge = cfg.Logging.MaxAgeDays
	}
	lc.Compress = cfg.Logging.Compress

	return logging.New(lc)
}

// buildDeps assembles the engine's collaborators from the current
// config. Everything here is cheap to construct, so config reloads
// rebuild the set and swap it into the running engine. The ledger is
// owned by the daemon and shared across swaps.
func buildDeps(cfg *config.Config, log *logging.Logger, ledger *undo.Ledger) (engine.Deps, bridge.Bridge) {
	clip := clipboard.System()
	orch := fallback.New(clip, fallback.NewInjector(), fallback.Config{
		CopySettle:  cfg.CopySettle(),
		PasteSettle: cfg.PasteSettle(),
	})
	brg := bridge.New(orch, log.Logger)

	corr := corrector.New(corrector.Config{
		APIKey:    cfg.Corrector.APIKey,
		Endpoints: cfg.Corrector.Endpoints,
		Timeout:   cfg.CorrectorTimeout(),
		Prompt:    cfg.Corrector.Prompt,
	}, nil)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notifications.Enabled {
		notifier = notify.NewDesktop(log.Logger)
	}

	deps := engine.Deps{
		Bridge:               brg,
		Corrector:            corr,
		Clipboard:            clip,
		Ledger:               ledger,
		Notifier:             notifier,
		Logger:               log.Logger,
		OpenSettingsOnDenied: true,
	}

	return deps, brg
}

// Run starts everything and blocks until a shutdown signal or an IPC
// shutdown request arrives.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		d.log.Info("signal received", "signal", sig.String())
	case <-d.shutdownCh:
		d.log.Info("shutdown requested over ipc")
	}

	d.Stop()
	return nil
}

// Start brings up the IPC server, hotkeys and the config watcher.
func (d *Daemon) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	cfg := d.config()

	if cfg.IPC.Enabled {
		d.handler = ipc.NewDaemonHandler(Version, d)

		serverCfg := ipc.DefaultServerConfig(cfg.IPC.SocketPath)
		serverCfg.Version = Version
		serverCfg.MaxConnections = cfg.IPC.MaxConnections

		server, err := ipc.NewServer(serverCfg, d.handler)
		if err != nil {
			return fmt.Errorf("create ipc server: %w", err)
		}
		d.handler.SetBroadcaster(server.Broadcast)

		if err := server.Start(); err != nil {
			return fmt.Errorf("start ipc server: %w", err)
		}
		d.server = server
		d.log.Info("ipc server listening", "socket", server.SocketPath())
	}

	// One startup probe on native platforms: when the permission is not
	// yet granted this provokes the OS dialog before the first hotkey use.
	if d.brg.Capability() == bridge.CapabilityNative && !d.brg.HasAccessPermission(ctx) {
		d.log.Warn("accessibility permission not granted yet")
		if err := d.brg.RequestPermission(ctx); err != nil {
			d.log.Debug("permission request", "error", err)
		}
	}

	if err := d.startHotkeys(ctx, cfg); err != nil {
		// The daemon is still useful over IPC and the tray menu, so a
		// hotkey conflict degrades rather than aborts.
		d.log.Error("hotkey registration failed", "error", err)
	}

	d.startConfigWatcher()

	return nil
}

// Stop tears everything down in reverse order.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}

	d.mu.Lock()
	mgr := d.hotkeyMgr
	d.hotkeyMgr = nil
	d.mu.Unlock()
	if mgr != nil {
		mgr.Stop()
	}

	if d.loader != nil {
		d.loader.Close()
	}

	if d.server != nil {
		d.server.Stop()
	}

	d.log.Info("daemon stopped",
		"cycles", d.stats.CyclesTotal.Value(),
		"undos", d.stats.UndosTotal.Value())
	d.log.Close()
}

// startHotkeys registers the correct and undo combos.
func (d *Daemon) startHotkeys(ctx context.Context, cfg *config.Config) error {
	mgr := hotkeys.NewManager(d.log.Logger)

	bindings := []hotkeys.Binding{
		{Combo: cfg.Hotkeys.Correct, Action: func() {
			defer d.crash.RecoverGoroutine()
			d.correctCycle(context.Background())
		}},
		{Combo: cfg.Hotkeys.Undo, Action: func() {
			defer d.crash.RecoverGoroutine()
			d.undoCycle(context.Background())
		}},
	}

	if err := mgr.Start(ctx, bindings); err != nil {
		return err
	}

	d.mu.Lock()
	d.hotkeyMgr = mgr
	d.mu.Unlock()
	return nil
}

// startConfigWatcher hot-reloads the config file on change.
func (d *Daemon) startConfigWatcher() {
	loader := config.NewLoader(d.configPath)
	if _, err := loader.Load(); err != nil {
		d.log.Warn("config watcher disabled", "error", err)
		return
	}

	loader.OnChange(func(cfg *config.Config) {
		d.log.Info("config file changed, applying")
		d.applyConfig(cfg)
	})

	if err := loader.Watch(); err != nil {
		d.log.Warn("config watcher disabled", "error", err)
		loader.Close()
		return
	}

	d.loader = loader
}

// applyConfig reconfigures the running engine from cfg and re-registers
// hotkeys when the combos changed. The engine and ledger are never
// replaced, so an in-flight cycle keeps its single-flight slot and the
// undo history carries across the reload.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.ledger.SetCapacity(cfg.Undo.Depth)
	deps, brg := buildDeps(cfg, d.log, d.ledger)
	d.engine.Reconfigure(deps)

	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	d.brg = brg
	mgr := d.hotkeyMgr
	d.mu.Unlock()

	combosChanged := old.Hotkeys.Correct != cfg.Hotkeys.Correct ||
		old.Hotkeys.Undo != cfg.Hotkeys.Undo
	if combosChanged && mgr != nil {
		mgr.Stop()
		if err := d.startHotkeys(context.Background(), cfg); err != nil {
			d.log.Error("hotkey re-registration failed", "error", err)
		}
	}
}

func (d *Daemon) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Daemon) currentBridge() bridge.Bridge {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.brg
}

// correctCycle runs one correction cycle and records it. Every entry
// point (hotkey, tray, IPC) funnels through here so the counters agree.
func (d *Daemon) correctCycle(ctx context.Context) engine.Result {
	eng := d.engine
	start := time.Now()
	res := eng.Correct(ctx)
	d.stats.RecordCycle(res.Outcome.String(), res.Reason.String(), time.Since(start))
	d.stats.SetUndoDepth(eng.UndoDepth())
	return res
}

// undoCycle reverts the most recent correction and records it.
func (d *Daemon) undoCycle(ctx context.Context) engine.Result {
	eng := d.engine
	start := time.Now()
	res := eng.Undo(ctx)
	d.stats.RecordUndo(res.Outcome.String(), time.Since(start))
	d.stats.SetUndoDepth(eng.UndoDepth())
	return res
}

// ipc.Controller implementation

// Snapshot reports current daemon state for status requests.
func (d *Daemon) Snapshot() ipc.StatusSnapshot {
	cfg := d.config()
	eng := d.engine
	brg := d.currentBridge()

	snap := ipc.StatusSnapshot{
		Capability:        brg.Capability().String(),
		PermissionGranted: true,
		Busy:              eng.Busy(),
		UndoDepth:         eng.UndoDepth(),
		HotkeyCorrect:     cfg.Hotkeys.Correct,
		HotkeyUndo:        cfg.Hotkeys.Undo,
	}

	if brg.Capability() == bridge.CapabilityNative {
		snap.PermissionGranted = brg.HasAccessPermission(context.Background())
	}

	if last, ok := eng.LastResult(); ok {
		snap.LastOutcome = last.Outcome.String()
		snap.LastReason = last.Reason.String()
	}

	return snap
}

// Correct runs a correction cycle on behalf of an IPC client.
func (d *Daemon) Correct(ctx context.Context) ipc.OutcomeInfo {
	return outcomeInfo(d.correctCycle(ctx))
}

// Undo reverts the most recent correction on behalf of an IPC client.
func (d *Daemon) Undo(ctx context.Context) ipc.OutcomeInfo {
	return outcomeInfo(d.undoCycle(ctx))
}

// Metrics reports the daemon's metrics snapshot for IPC clients.
func (d *Daemon) Metrics() map[string]interface{} {
	return d.stats.Snapshot()
}

// MetricsText renders the metrics in Prometheus exposition format.
func (d *Daemon) MetricsText() string {
	return d.stats.PrometheusText()
}

// ReloadConfig re-reads the config file on request.
func (d *Daemon) ReloadConfig() error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		return err
	}
	d.applyConfig(cfg)
	return nil
}

// RequestShutdown asks the daemon to exit.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

// ShutdownRequested exposes the shutdown channel for the tray loop.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}

func outcomeInfo(res engine.Result) ipc.OutcomeInfo {
	info := ipc.OutcomeInfo{
		Outcome: res.Outcome.String(),
		CycleID: res.CycleID,
	}
	if res.Reason != engine.ReasonNone {
		info.Reason = res.Reason.String()
		info.Message = res.Reason.Message()
	}
	return info
}
