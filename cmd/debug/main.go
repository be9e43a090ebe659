package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/skobkin/wedgego/internal/app"
	"github.com/skobkin/wedgego/internal/bluetoothutil"
	"github.com/skobkin/wedgego/internal/bus"
	"github.com/skobkin/wedgego/internal/config"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/datawedge"
	"github.com/skobkin/wedgego/internal/transport"
)

const (
	activateTimeout   = 15 * time.Second
	simulateScanDelay = 300 * time.Millisecond
	maxHexPreviewLen  = 64
)

type runMode string

const (
	modeOnce       runMode = "once"
	modeContinuous runMode = "continuous"
	modeTest       runMode = "test"
)

type debugOptions struct {
	Connector        string
	Host             string
	Port             int
	SerialPort       string
	Baud             int
	BLE              string
	BLEAdapter       string
	Simulate         bool
	SimulateBarcodes []string
	Mode             runMode
	TestSuccess      bool
	ListenFor        time.Duration
	ListPorts        bool
	ListBLE          bool
	Notify           bool
	API              bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("run debug tool", "error", err)
		os.Exit(1)
	}
}

func parseOptions(args []string, output io.Writer) (debugOptions, error) {
	var (
		opts     debugOptions
		mode     string
		barcodes string
	)
	fs := flag.NewFlagSet("wedgego-debug", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.Connector, "connector", "", "connector type: ip, serial or bluetooth (default from config)")
	fs.StringVar(&opts.Host, "host", "", "relay ip/hostname")
	fs.IntVar(&opts.Port, "port", 0, "relay tcp port")
	fs.StringVar(&opts.SerialPort, "serial", "", "relay serial port")
	fs.IntVar(&opts.Baud, "baud", 0, "serial baud rate")
	fs.StringVar(&opts.BLE, "ble", "", "relay bluetooth address")
	fs.StringVar(&opts.BLEAdapter, "ble-adapter", "", "bluetooth adapter id, e.g. hci1")
	fs.BoolVar(&opts.Simulate, "simulate", false, "use the built-in device simulator instead of a relay")
	fs.StringVar(&barcodes, "simulate-barcodes", "", "comma separated barcodes the simulator scans")
	fs.StringVar(&mode, "mode", string(modeOnce), "run mode: once, continuous or test")
	fs.BoolVar(&opts.TestSuccess, "test-success", true, "TestScan outcome in test mode")
	fs.DurationVar(&opts.ListenFor, "listen-for", 0, "how long to wait for scans, e.g. 30s (0 waits until interrupt)")
	fs.BoolVar(&opts.ListPorts, "list-ports", false, "list serial ports and exit")
	fs.BoolVar(&opts.ListBLE, "list-ble", false, "discover bluetooth relays and exit")
	fs.BoolVar(&opts.Notify, "notify", false, "send desktop notifications for scans")
	fs.BoolVar(&opts.API, "api", false, "serve the http api while running")
	if err := fs.Parse(args); err != nil {
		return debugOptions{}, err
	}
	if fs.NArg() > 0 {
		return debugOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	switch runMode(mode) {
	case modeOnce, modeContinuous, modeTest:
		opts.Mode = runMode(mode)
	default:
		return debugOptions{}, fmt.Errorf("unknown mode %q", mode)
	}
	opts.SimulateBarcodes = splitBarcodes(barcodes)
	if len(opts.SimulateBarcodes) > 0 && !opts.Simulate {
		return debugOptions{}, errors.New("-simulate-barcodes requires -simulate")
	}

	return opts, nil
}

func splitBarcodes(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

// applyOverrides merges connection flags into the persisted connection config.
func applyOverrides(cfg *config.ConnectionConfig, opts debugOptions) {
	if v := strings.TrimSpace(opts.Connector); v != "" {
		cfg.Connector = config.ConnectorType(strings.ToLower(v))
	}
	if v := strings.TrimSpace(opts.Host); v != "" {
		cfg.Host = v
	}
	if opts.Port > 0 {
		cfg.Port = opts.Port
	}
	if v := strings.TrimSpace(opts.SerialPort); v != "" {
		cfg.SerialPort = v
	}
	if opts.Baud > 0 {
		cfg.SerialBaud = opts.Baud
	}
	if v := strings.TrimSpace(opts.BLE); v != "" {
		cfg.BluetoothAddress = v
	}
	if v := strings.TrimSpace(opts.BLEAdapter); v != "" {
		cfg.BluetoothAdapter = v
	}
}

func run(args []string) error {
	opts, err := parseOptions(args, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.ListPorts {
		return listSerialPorts()
	}
	if opts.ListBLE {
		return listBluetoothRelays(ctx, opts)
	}

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg.Connection, opts)
	cfg.Logging.LogToFile = false
	cfg.API.Enabled = opts.API

	rt, err := app.Initialize(ctx, app.Options{Paths: &paths, Simulate: opts.Simulate, Config: &cfg})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			slog.Warn("close runtime", "error", closeErr)
		}
	}()
	logger := rt.LogManager.Logger("cli")
	logger.Info("starting wedgego debug", "version", app.BuildVersion(), "build_date", app.BuildDateYMD(), "mode", opts.Mode)

	watch(ctx, rt.Bus, logger)
	if opts.Notify {
		rt.StartNotifications(app.NewBeeepSender(rt.LogManager.Logger("notifications")), func() bool { return false })
	}
	if err := rt.StartAPI(); err != nil {
		return fmt.Errorf("start http api: %w", err)
	}

	if opts.Mode == modeTest {
		result, err := rt.Session.TestScan(opts.TestSuccess)
		if err != nil {
			return err
		}
		logger.Info("test scan", "result", result)
		return nil
	}

	activateCtx, cancelActivate := context.WithTimeout(ctx, activateTimeout)
	err = rt.Activate(activateCtx)
	cancelActivate()
	if err != nil {
		logger.Warn("activation failed, it is retried when the relay connects", "error", err)
	}
	defer func() {
		deactivateCtx, cancel := context.WithTimeout(context.Background(), activateTimeout)
		defer cancel()
		if err := rt.Deactivate(deactivateCtx); err != nil {
			logger.Warn("deactivate", "error", err)
		}
	}()

	waitCtx := ctx
	if opts.ListenFor > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.ListenFor)
		defer cancel()
	}

	if opts.Mode == modeOnce {
		req := rt.Session.ScanOnce()
		feedSimulator(waitCtx, rt.Simulator, opts.SimulateBarcodes, logger)
		barcode, err := req.Wait(waitCtx)
		if err != nil {
			req.Cancel()
			return fmt.Errorf("scan once: %w", err)
		}
		logger.Info("scanned", "barcode", barcode)
		return nil
	}

	sub := rt.Session.Subscribe()
	defer sub.Close()
	first := rt.Session.StartScanning()
	firstDone := first.Done()
	defer rt.Session.StopScanning()
	feedSimulator(waitCtx, rt.Simulator, opts.SimulateBarcodes, logger)

	var count int
	for {
		select {
		case <-waitCtx.Done():
			logger.Info("continuous scanning finished", "scans", count)
			return nil
		case <-firstDone:
			if _, err := first.Result(); err != nil {
				logger.Warn("start scanning request ended", "error", err)
			}
			firstDone = nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			count++
			logger.Info("barcode", "barcode", ev.Barcode, "count", count)
		}
	}
}

// feedSimulator scans barcodes one by one in the background.
func feedSimulator(ctx context.Context, sim *app.Simulator, barcodes []string, logger *slog.Logger) {
	if sim == nil || len(barcodes) == 0 {
		return
	}

	go func() {
		for _, barcode := range barcodes {
			select {
			case <-ctx.Done():
				return
			case <-time.After(simulateScanDelay):
			}
			if n := sim.Scan(barcode, "CODE128"); n == 0 {
				logger.Warn("simulated scan had no receiver", "barcode", barcode)
			}
		}
	}()
}

func listSerialPorts() error {
	ports, err := transport.ListSerialPorts()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, port := range ports {
		fmt.Println(port)
	}

	return nil
}

func listBluetoothRelays(ctx context.Context, opts debugOptions) error {
	if opts.ListenFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ListenFor)
		defer cancel()
	}
	relays, err := bluetoothutil.DiscoverRelays(ctx, bluetoothutil.ResolveAdapter(opts.BLEAdapter))
	if err != nil {
		return fmt.Errorf("discover bluetooth relays: %w", err)
	}
	if len(relays) == 0 {
		fmt.Println("no bluetooth relays found")
		return nil
	}
	for _, relay := range relays {
		fmt.Printf("%s\t%d dBm\t%s\n", relay.Address, relay.RSSI, relay.Name)
	}

	return nil
}

func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	topics := []string{
		connectors.TopicConnStatus,
		connectors.TopicRawFrameIn,
		connectors.TopicRawFrameOut,
		connectors.TopicIntentIn,
		connectors.TopicIntentOut,
		connectors.TopicScan,
		connectors.TopicScannerStatus,
		connectors.TopicCommandResult,
		connectors.TopicVersion,
		connectors.TopicSession,
	}
	sub := b.Subscribe(topics...)

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.Unsubscribe(sub, topics...)
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				logEvent(logger, raw)
			}
		}
	}()
}

func logEvent(logger *slog.Logger, raw any) {
	switch ev := raw.(type) {
	case connectors.ConnectionStatus:
		logger.Info("conn", "state", ev.State, "transport", ev.TransportName, "target", ev.Target, "error", ev.Err)
	case connectors.RawFrame:
		logger.Debug("raw-frame", "len", ev.Len, "hex", previewHex(ev.Hex))
	case datawedge.Intent:
		logger.Debug("intent", "intent", ev.String())
	case connectors.ScanRecord:
		logger.Info("scan", "barcode", ev.Barcode, "symbology", ev.Symbology, "mode", ev.Mode)
	case connectors.ScannerStatus:
		logger.Info("scanner-status", "status", ev.Status, "profile", ev.ProfileName)
	case connectors.CommandResult:
		logger.Warn("command-result", "command", ev.Command, "result", ev.Result, "info", ev.Info)
	case connectors.VersionInfo:
		logger.Info("datawedge-version", "version", ev.DataWedge, "supported", ev.Supported, "min_required", ev.MinRequired)
	case connectors.SessionState:
		logger.Info("session", "active", ev.Active, "continuous", ev.Continuous)
	}
}

func previewHex(hex string) string {
	hex = strings.TrimSpace(hex)
	if len(hex) <= maxHexPreviewLen {
		return hex
	}
	return hex[:maxHexPreviewLen] + "..."
}
