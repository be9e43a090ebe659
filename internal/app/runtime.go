package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skobkin/wedgego/internal/api"
	"github.com/skobkin/wedgego/internal/bus"
	"github.com/skobkin/wedgego/internal/config"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/datawedge"
	"github.com/skobkin/wedgego/internal/intentlink"
	"github.com/skobkin/wedgego/internal/logging"
	"github.com/skobkin/wedgego/internal/notifications"
	"github.com/skobkin/wedgego/internal/persistence"
	"github.com/skobkin/wedgego/internal/platform"
	"github.com/skobkin/wedgego/internal/scanner"
)

const sessionCloseTimeout = 3 * time.Second

var ErrJournalDisabled = errors.New("scan journal is disabled")

// Options tune Initialize. The zero value resolves paths from the user config
// dir and talks to a real relay.
type Options struct {
	// Paths overrides the resolved runtime file locations.
	Paths *Paths
	// Simulate replaces the relay link with an in-process simulator.
	Simulate bool
	// Config overrides the config file. It is validated but not saved.
	Config *config.AppConfig
}

type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus

	DB          *sql.DB
	ScanRepo    *persistence.ScanRepo
	WriterQueue *persistence.WriterQueue

	RelayTransport *RelayTransport
	Link                *intentlink.Link
	Simulator           *Simulator
	Session             *scanner.Session
	APIServer           *api.Server

	relayLock  platform.Lock
	wantActive atomic.Bool

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool
}

func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	paths, err := resolveRuntimePaths(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := loadRuntimeConfig(paths, opts)
	if err != nil {
		return nil, err
	}
	if !opts.Simulate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", paths.ConfigFile, err)
		}
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting wedgego runtime", "version", BuildVersion(), "build_date", BuildDateYMD(), "simulate", opts.Simulate)

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go rt.captureConnStatus(ctx, connSub)

	if cfg.History.Enabled {
		if err := rt.openJournal(ctx, cfg.History, logMgr.Logger("persistence")); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	var broadcaster intentlink.Broadcaster
	if opts.Simulate {
		loopback := intentlink.NewLoopback()
		rt.Simulator = NewSimulator(loopback, cfg.Profile.ScanAction)
		broadcaster = loopback
	} else {
		lock, err := platform.AcquireRelayLock(Name, ConnectionTarget(cfg.Connection))
		if err != nil {
			_ = rt.Close()
			if errors.Is(err, platform.ErrLockHeld) {
				return nil, fmt.Errorf("relay %s is already used by another %s process: %w", ConnectionTarget(cfg.Connection), Name, err)
			}
			return nil, fmt.Errorf("acquire relay lock: %w", err)
		}
		rt.relayLock = lock

		relay, err := NewRelayTransport(cfg.Connection)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("initialize transport: %w", err)
		}
		rt.RelayTransport = relay
		rt.Link = intentlink.NewLink(logMgr.Logger("intentlink"), b, relay)
		broadcaster = rt.Link
	}

	rt.Session = scanner.New(logMgr.Logger("scanner"), b, broadcaster, scanner.Config{
		Profile:          ProfileFromConfig(cfg.Profile),
		StopOnDeactivate: cfg.Scanner.StopOnDeactivate,
	})
	if rt.Link != nil {
		rt.Link.Start(ctx)
	}

	return rt, nil
}

func resolveRuntimePaths(opts Options) (Paths, error) {
	if opts.Paths != nil {
		return *opts.Paths, nil
	}

	return ResolvePaths()
}

func loadRuntimeConfig(paths Paths, opts Options) (config.AppConfig, error) {
	if opts.Config != nil {
		cfg := *opts.Config
		cfg.FillMissingDefaults()
		return cfg, nil
	}

	return config.Load(paths.ConfigFile)
}

func (r *Runtime) openJournal(ctx context.Context, history config.HistoryConfig, logger *slog.Logger) error {
	db, err := persistence.Open(ctx, r.Paths.DBFile)
	if err != nil {
		return err
	}
	r.DB = db
	r.ScanRepo = persistence.NewScanRepo(db)
	if err := persistence.Cleanup(ctx, logger, r.ScanRepo, history.RetentionDays, time.Now()); err != nil {
		logger.Warn("scan journal cleanup failed", "error", err)
	}

	r.WriterQueue = persistence.NewWriterQueue(logger, 512)
	r.WriterQueue.Start(ctx)
	persistence.StartJournalProjection(ctx, r.Bus, r.WriterQueue, r.ScanRepo)

	return nil
}

// ProfileFromConfig maps the persisted profile section to the DataWedge profile.
func ProfileFromConfig(cfg config.ProfileConfig) datawedge.Profile {
	decoders := make(map[string]bool, len(cfg.Decoders))
	for name, enabled := range cfg.Decoders {
		decoders[name] = enabled
	}

	return datawedge.Profile{
		Name:             cfg.Name,
		PackageName:      cfg.PackageName,
		ScanAction:       cfg.ScanAction,
		ScannerSelection: cfg.ScannerSelection,
		Decoders:         decoders,
	}
}

// StartNotifications routes scan and status events to sender.
func (r *Runtime) StartNotifications(sender notifications.Sender, isForeground func() bool) {
	service := NewNotificationService(r.Bus, r.CurrentConfig, isForeground, sender, r.LogManager.Logger("app.notifications"))
	service.Start(r.Ctx)
}

// Activate marks the app as foreground and activates the scan session. When
// the relay is not connected yet, activation is retried once it connects.
func (r *Runtime) Activate(ctx context.Context) error {
	r.wantActive.Store(true)
	if err := r.Session.Activate(ctx); err != nil {
		slog.Warn("scan session activation deferred", "error", err)
		return err
	}

	return nil
}

func (r *Runtime) Deactivate(ctx context.Context) error {
	r.wantActive.Store(false)

	return r.Session.Deactivate(ctx)
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status)
			if status.State == connectors.ConnectionStateConnected {
				go r.restoreSession(ctx)
			}
		}
	}
}

// restoreSession pushes the profile again after the relay (re)connects, since
// the device side may have been restarted in between.
func (r *Runtime) restoreSession(ctx context.Context) {
	if !r.wantActive.Load() || r.Session == nil {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := r.Session.Reconfigure(opCtx)
	if errors.Is(err, scanner.ErrNotActive) {
		err = r.Session.Activate(opCtx)
	}
	if err != nil {
		slog.Warn("restore scan session after reconnect", "error", err)
	}
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = true
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()
	if !known && r.Simulator != nil {
		return connectors.ConnectionStatus{
			State:         connectors.ConnectionStateConnected,
			TransportName: "simulator",
		}, true
	}
	return status, known
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

// SaveAndApplyConfig persists cfg and applies logging and connection changes.
// Profile and scanner changes take effect on the next start.
func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.Config
	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		r.mu.Unlock()
		return err
	}
	r.Config = cfg
	r.mu.Unlock()

	if err := r.LogManager.Configure(cfg.Logging, r.Paths.LogFile); err != nil {
		return err
	}

	if r.RelayTransport != nil && prev.Connection != cfg.Connection {
		if err := r.swapRelayLock(cfg.Connection); err != nil {
			return err
		}
		if err := r.RelayTransport.Apply(cfg.Connection); err != nil {
			return err
		}
	}
	if prev.Scanner != cfg.Scanner || prev.Profile.Name != cfg.Profile.Name || prev.Profile.ScanAction != cfg.Profile.ScanAction {
		slog.Info("profile and scanner settings apply after restart")
	}

	return nil
}

func (r *Runtime) swapRelayLock(next config.ConnectionConfig) error {
	lock, err := platform.AcquireRelayLock(Name, ConnectionTarget(next))
	if err != nil {
		return fmt.Errorf("acquire relay lock: %w", err)
	}

	r.mu.Lock()
	prev := r.relayLock
	r.relayLock = lock
	r.mu.Unlock()

	if prev != nil {
		if err := prev.Release(); err != nil {
			slog.Warn("release previous relay lock", "error", err)
		}
	}

	return nil
}

// ClearHistory deletes every journaled scan.
func (r *Runtime) ClearHistory(ctx context.Context) error {
	if r.DB == nil {
		return ErrJournalDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := persistence.ClearDatabase(ctx, r.DB); err != nil {
		return err
	}
	slog.Info("scan journal cleared")

	return nil
}

func (r *Runtime) Close() error {
	var errs []error
	if r.Session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
		if err := r.Session.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close scan session: %w", err))
		}
		cancel()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.APIServer != nil {
		<-r.APIServer.Done()
	}
	if r.WriterQueue != nil {
		<-r.WriterQueue.Done()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.RelayTransport != nil {
		_ = r.RelayTransport.Close()
	}
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	if r.relayLock != nil {
		if err := r.relayLock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release relay lock: %w", err))
		}
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return errors.Join(errs...)
}
