// Package daemon runs the dailyd background process: the engine tick loop,
// the UDS control socket, and the data-dir file watcher.
package daemon

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"dailyd/internal/engine"
	"dailyd/internal/events"
	"dailyd/internal/lock"
	"dailyd/internal/monitor"
	"dailyd/internal/notify"
	"dailyd/internal/store"
	"dailyd/internal/uds"
)

const appName = "dailyd"

// Daemon wires the stores, engine, notifier, and IPC surface together and
// owns their lifecycles.
type Daemon struct {
	dataDir  string
	config   configHolder
	logLevel engine.LogLevel
	logger   *log.Logger
	logFile  io.Closer

	fileLock *lock.FileLock
	server   *uds.Server
	watcher  *fsnotify.Watcher
	ticker   *time.Ticker

	tasks    *store.TaskStore
	settings *store.SettingsStore
	eng      *engine.Engine
	bus      *events.Bus
	audit    *events.AuditLogger

	wg       sync.WaitGroup
	stopCh   chan struct{}
	shutdown sync.Once

	forceExit atomic.Bool
}

type configHolder struct {
	tickInterval    time.Duration
	shutdownTimeout time.Duration
	notifyTimeout   time.Duration
	caseInsensitive *bool
}

// New creates a Daemon for the given data directory, logging to
// logs/daemon.log inside it.
func New(dataDir string) (*Daemon, error) {
	logPath := filepath.Join(dataDir, "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}

	return newDaemon(dataDir, logFile, logFile)
}

// newDaemon is the internal constructor for testing.
func newDaemon(dataDir string, w io.Writer, closer io.Closer) (*Daemon, error) {
	cfg, err := LoadConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	tickInterval := time.Duration(cfg.Daemon.TickIntervalSec) * time.Second
	if tickInterval <= 0 {
		tickInterval = 10 * time.Second
	}
	shutdownTimeout := time.Duration(cfg.Daemon.ShutdownTimeoutSec) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	notifyTimeout := time.Duration(cfg.Notify.TimeoutSec) * time.Second

	d := &Daemon{
		dataDir: dataDir,
		config: configHolder{
			tickInterval:    tickInterval,
			shutdownTimeout: shutdownTimeout,
			notifyTimeout:   notifyTimeout,
			caseInsensitive: cfg.Monitor.CaseInsensitive,
		},
		logLevel: engine.ParseLogLevel(cfg.Logging.Level),
		logger:   log.New(w, "", 0),
		logFile:  closer,
		fileLock: lock.NewFileLock(filepath.Join(dataDir, "locks", "daemon.lock")),
		server:   uds.NewServer(filepath.Join(dataDir, uds.DefaultSocketName)),
		ticker:   time.NewTicker(tickInterval),
		stopCh:   make(chan struct{}),
	}
	return d, nil
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	// Step 1: Single instance
	if err := os.MkdirAll(filepath.Join(d.dataDir, "locks"), 0755); err != nil {
		return fmt.Errorf("create locks dir: %w", err)
	}
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.log(engine.LogLevelInfo, "daemon starting pid=%d data_dir=%s", os.Getpid(), d.dataDir)

	// Step 2: Stores
	tasks, err := store.OpenTasks(d.dataDir)
	if err != nil {
		d.cleanup()
		return fmt.Errorf("open task store: %w", err)
	}
	settings, err := store.OpenSettings(d.dataDir)
	if err != nil {
		d.cleanup()
		return fmt.Errorf("open settings store: %w", err)
	}
	d.tasks = tasks
	d.settings = settings

	// Step 3: Event bus and audit log
	d.bus = events.NewBus(0)
	audit, err := events.NewAuditLogger(filepath.Join(d.dataDir, "logs", "events"+events.LogFileExtension), 0)
	if err != nil {
		d.cleanup()
		return fmt.Errorf("open audit log: %w", err)
	}
	d.audit = audit
	for _, et := range []events.EventType{events.EventTaskStarted, events.EventActivityRecorded, events.EventAlertFired} {
		d.bus.Subscribe(et, func(ev events.Event) {
			if err := d.audit.Record(ev); err != nil {
				d.log(engine.LogLevelWarn, "audit record: %v", err)
			}
		})
	}

	// Step 4: Engine
	d.eng = engine.New(engine.Options{
		Tasks:           tasks,
		Settings:        settings,
		Observer:        monitor.NewPSObserver(),
		Notifier:        notify.NewDesktop(appName),
		Bus:             d.bus,
		Logger:          d.logger,
		LogLevel:        d.logLevel,
		CaseInsensitive: d.config.caseInsensitive,
		NotifyTimeout:   d.config.notifyTimeout,
	})

	// Step 5: Watch the data dir so CLI/manual edits take effect immediately
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.cleanup()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	d.watcher = watcher
	if err := watcher.Add(d.dataDir); err != nil {
		d.cleanup()
		return fmt.Errorf("watch %s: %w", d.dataDir, err)
	}

	// Step 6: UDS control surface
	d.registerHandlers()
	if err := d.server.Start(); err != nil {
		d.cleanup()
		return fmt.Errorf("start UDS server: %w", err)
	}
	d.log(engine.LogLevelInfo, "UDS server listening on %s", filepath.Join(d.dataDir, uds.DefaultSocketName))

	// Step 7: Background loops
	d.wg.Add(2)
	go d.fsnotifyLoop()
	go d.tickerLoop()

	// Step 8: Initial tick
	d.eng.OnTick()
	d.log(engine.LogLevelInfo, "daemon ready tick_interval=%s", d.config.tickInterval)

	d.waitSignals()
	return nil
}

// fsnotifyLoop reloads a store when its file changes on disk and re-runs the
// engine so the change is visible without waiting for the next tick.
func (d *Daemon) fsnotifyLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			switch filepath.Base(event.Name) {
			case "tasks.yaml":
				d.log(engine.LogLevelDebug, "tasks.yaml changed on disk, reloading")
				if err := d.tasks.Reload(); err != nil {
					d.log(engine.LogLevelError, "reload tasks: %v", err)
					continue
				}
				d.eng.OnTick()
			case "settings.yaml":
				d.log(engine.LogLevelDebug, "settings.yaml changed on disk, reloading")
				if err := d.settings.Reload(); err != nil {
					d.log(engine.LogLevelError, "reload settings: %v", err)
					continue
				}
				d.eng.OnTick()
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log(engine.LogLevelError, "fsnotify error=%v", err)
		}
	}
}

// tickerLoop drives the engine at the configured interval.
func (d *Daemon) tickerLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case <-d.ticker.C:
			d.log(engine.LogLevelDebug, "periodic tick")
			d.eng.OnTick()
		}
	}
}

// waitSignals blocks until a shutdown signal is received.
func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	d.log(engine.LogLevelInfo, "received signal=%s, initiating graceful shutdown", sig)

	// Second signal → force exit
	go func() {
		<-sigCh
		d.log(engine.LogLevelWarn, "received second signal, forcing exit")
		d.forceExit.Store(true)
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown performs graceful shutdown (idempotent via sync.Once).
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log(engine.LogLevelInfo, "shutdown started")

		// 1. Stop producers
		close(d.stopCh)
		d.ticker.Stop()
		if d.watcher != nil {
			d.watcher.Close()
		}
		if d.server != nil {
			d.server.Stop()
		}

		// 2. Drain loops and in-flight notification dispatches
		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			if d.eng != nil {
				d.eng.Stop()
			}
			close(done)
		}()

		select {
		case <-done:
			d.log(engine.LogLevelInfo, "all goroutines drained")
		case <-time.After(d.config.shutdownTimeout):
			d.log(engine.LogLevelWarn, "shutdown timeout after %s, some operations may be incomplete", d.config.shutdownTimeout)
		}

		// 3. Cleanup
		if d.bus != nil {
			d.bus.Close()
		}
		if d.audit != nil {
			d.audit.Close()
		}
		d.cleanup()
		d.log(engine.LogLevelInfo, "daemon stopped")
	})
}

// cleanup releases resources.
func (d *Daemon) cleanup() {
	os.Remove(filepath.Join(d.dataDir, uds.DefaultSocketName))
	d.fileLock.Unlock()
	if d.logFile != nil {
		d.logFile.Close()
	}
}

func (d *Daemon) log(level engine.LogLevel, format string, args ...any) {
	if level < d.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case engine.LogLevelDebug:
		levelStr = "DEBUG"
	case engine.LogLevelWarn:
		levelStr = "WARN"
	case engine.LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	d.logger.Printf("%s %s daemon: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
