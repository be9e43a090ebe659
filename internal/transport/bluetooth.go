package transport

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/wedgego/internal/bluetoothutil"
	"tinygo.org/x/bluetooth"
)

const (
	defaultBluetoothFrameQueueSize = 128
	defaultBluetoothMTU            = 20
	defaultBluetoothDiscoverWait   = 12 * time.Second
	defaultBluetoothSubscribeWait  = 8 * time.Second
)

type bluetoothConnState struct {
	device bluetooth.Device
	rx     bluetooth.DeviceCharacteristic
	tx     *bluetooth.DeviceCharacteristic

	asmMu sync.Mutex
	asm   frameAssembler

	frameCh chan []byte
	closed  chan struct{}

	closeOnce sync.Once
	errMu     sync.RWMutex
	asyncErr  error
}

// BluetoothTransport exchanges framed intents with a BLE relay over the Nordic
// UART service. Frames may span several notifications and writes.
type BluetoothTransport struct {
	address   string
	adapterID string
	mtu       int

	mu      sync.RWMutex
	conn    *bluetoothConnState
	writeMu sync.Mutex
}

func NewBluetoothTransport(address, adapterID string, mtu int) *BluetoothTransport {
	if mtu <= 0 {
		mtu = defaultBluetoothMTU
	}

	return &BluetoothTransport{
		address:   strings.TrimSpace(address),
		adapterID: strings.TrimSpace(adapterID),
		mtu:       mtu,
	}
}

func (t *BluetoothTransport) Name() string {
	return "bluetooth"
}

func (t *BluetoothTransport) StatusTarget() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.address
}

func (t *BluetoothTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := connectorLogger("bluetooth", "address", t.address, "adapter", t.adapterID)

	if t.conn != nil {
		logger.Debug("connect skipped: already connected")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr, err := parseBluetoothAddress(t.address)
	if err != nil {
		logger.Warn("connect failed: invalid address", "error", err)
		return err
	}

	logger.Info("connecting")
	adapter, err := bluetoothutil.OpenAdapter(t.adapterID)
	if err != nil {
		logger.Warn("enable adapter failed", "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	device, err := adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil && shouldRetryBluetoothConnectWithDiscovery(err) {
		logger.Info("direct connect failed, trying discovery fallback", "error", err)
		if discoverErr := discoverBluetoothDevice(ctx, adapter, addr); discoverErr != nil {
			return fmt.Errorf("connect bluetooth device %q: %w", t.address, errors.Join(err, fmt.Errorf("discovery failed: %w", discoverErr)))
		}
		device, err = adapter.Connect(addr, bluetooth.ConnectionParams{})
	}
	if err != nil {
		logger.Warn("connect device failed", "error", err)
		return fmt.Errorf("connect bluetooth device %q: %w", t.address, err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{bluetoothutil.UARTServiceUUID()})
	if err != nil {
		_ = device.Disconnect()
		return fmt.Errorf("discover uart service: %w", err)
	}
	if len(services) == 0 {
		_ = device.Disconnect()
		return errors.New("relay does not expose the UART service")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{
		bluetoothutil.UARTRXUUID(),
		bluetoothutil.UARTTXUUID(),
	})
	if err != nil {
		_ = device.Disconnect()
		return fmt.Errorf("discover uart characteristics: %w", err)
	}
	if len(chars) != 2 {
		_ = device.Disconnect()
		return fmt.Errorf("unexpected characteristic count: %d", len(chars))
	}
	logger.Debug("uart characteristics discovered")

	tx := chars[1]
	state := &bluetoothConnState{
		device:  device,
		rx:      chars[0],
		tx:      &tx,
		frameCh: make(chan []byte, defaultBluetoothFrameQueueSize),
		closed:  make(chan struct{}),
	}

	if err := enableBluetoothNotificationsWithTimeout(ctx, device, *state.tx, func(chunk []byte) {
		t.handleChunk(state, chunk)
	}, defaultBluetoothSubscribeWait); err != nil {
		_ = device.Disconnect()
		logger.Warn("subscribe to notifications failed", "error", err)
		return fmt.Errorf("subscribe to TX notifications: %w", err)
	}

	if err := ctx.Err(); err != nil {
		state.markClosed()
		_ = state.tx.EnableNotifications(nil)
		_ = device.Disconnect()
		return err
	}

	t.conn = state
	logger.Info("connected", "mtu", t.mtu)
	return nil
}

func (t *BluetoothTransport) Close() error {
	t.mu.Lock()
	logger := connectorLogger("bluetooth", "address", t.address, "adapter", t.adapterID)
	state := t.conn
	t.conn = nil
	t.mu.Unlock()
	if state == nil {
		logger.Debug("close skipped: not connected")
		return nil
	}

	state.markClosed()

	var closeErr error
	if state.tx != nil {
		if err := state.tx.EnableNotifications(nil); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("disable TX notifications: %w", err))
		}
	}
	if err := state.device.Disconnect(); err != nil {
		closeErr = errors.Join(closeErr, fmt.Errorf("disconnect bluetooth device: %w", err))
	}
	if closeErr != nil {
		logger.Warn("close failed", "error", closeErr)
		return closeErr
	}
	logger.Info("closed")

	return nil
}

func (t *BluetoothTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	state, err := t.currentState()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-state.closed:
		if err := state.closeErr(); err != nil {
			return nil, err
		}
		return nil, errors.New("transport is closed")
	case payload := <-state.frameCh:
		return payload, nil
	}
}

func (t *BluetoothTransport) WriteFrame(ctx context.Context, payload []byte) error {
	logger := connectorLogger("bluetooth")
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}

	state, err := t.currentState()
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for _, chunk := range splitChunks(frame, t.mtu) {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-state.closed:
			if err := state.closeErr(); err != nil {
				return err
			}
			return errors.New("transport is closed")
		default:
		}

		written, err := state.rx.WriteWithoutResponse(chunk)
		if err != nil {
			logger.Warn("write chunk failed", "chunk_len", len(chunk), "error", err)
			return fmt.Errorf("write to RX: %w", err)
		}
		if written != len(chunk) {
			return fmt.Errorf("short write to RX: wrote %d of %d", written, len(chunk))
		}
	}
	logger.Debug("write frame", "payload_len", len(payload), "frame_len", len(frame))

	return nil
}

func (t *BluetoothTransport) currentState() (*bluetoothConnState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn == nil {
		return nil, ErrNotConnected
	}
	return t.conn, nil
}

func (t *BluetoothTransport) handleChunk(state *bluetoothConnState, chunk []byte) {
	state.asmMu.Lock()
	frames := state.asm.Feed(chunk)
	state.asmMu.Unlock()

	for _, frame := range frames {
		t.enqueueFrame(state, frame)
	}
}

func (t *BluetoothTransport) enqueueFrame(state *bluetoothConnState, payload []byte) {
	select {
	case <-state.closed:
		return
	default:
	}

	select {
	case state.frameCh <- payload:
	default:
		connectorLogger("bluetooth").Warn("frame queue full, dropping oldest frame", "capacity", cap(state.frameCh))
		select {
		case <-state.frameCh:
		default:
		}
		select {
		case state.frameCh <- payload:
		default:
		}
	}
}

func parseBluetoothAddress(raw string) (bluetooth.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return bluetooth.Address{}, errors.New("bluetooth address is empty")
	}

	mac, err := bluetooth.ParseMAC(strings.ToUpper(trimmed))
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("invalid bluetooth address %q: %w", trimmed, err)
	}

	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, nil
}

func shouldRetryBluetoothConnectWithDiscovery(err error) bool {
	if err == nil || runtime.GOOS != "linux" {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "org.freedesktop.dbus.properties") || !strings.Contains(msg, "method \"get\"") {
		return false
	}

	return bluetoothutil.IsDBusErrorName(err, "org.freedesktop.DBus.Error.UnknownMethod") ||
		strings.Contains(msg, "doesn't exist")
}

func discoverBluetoothDevice(ctx context.Context, adapter *bluetooth.Adapter, target bluetooth.Address) error {
	logger := connectorLogger("bluetooth", "target", target.String())
	if err := bluetoothutil.StopScan(adapter); err != nil {
		return fmt.Errorf("reset bluetooth scan state: %w", err)
	}

	scanCtx := ctx
	if _, hasDeadline := scanCtx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(scanCtx, defaultBluetoothDiscoverWait)
		defer cancel()
	}

	foundCh := make(chan struct{}, 1)
	scanErrCh := make(chan error, 1)
	go func() {
		scanErrCh <- adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if result.Address.MAC != target.MAC {
				return
			}
			select {
			case foundCh <- struct{}{}:
			default:
			}
			_ = adapter.StopScan()
		})
	}()

	found := false
	select {
	case <-foundCh:
		found = true
	case <-scanCtx.Done():
		_ = bluetoothutil.StopScan(adapter)
	}

	if scanErr := bluetoothutil.NormalizeScanError(<-scanErrCh); scanErr != nil {
		return fmt.Errorf("scan bluetooth devices: %w", scanErr)
	}
	if !found {
		return fmt.Errorf("relay %q was not discovered; keep it nearby and advertising", target.String())
	}
	logger.Info("relay discovered")

	return nil
}

func (s *bluetoothConnState) markClosed() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

func (s *bluetoothConnState) setAsyncError(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	if s.asyncErr == nil {
		s.asyncErr = err
	}
	s.errMu.Unlock()
}

func (s *bluetoothConnState) closeErr() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.asyncErr
}

func enableBluetoothNotificationsWithTimeout(
	ctx context.Context,
	device bluetooth.Device,
	char bluetooth.DeviceCharacteristic,
	callback func([]byte),
	wait time.Duration,
) error {
	if wait <= 0 {
		wait = defaultBluetoothSubscribeWait
	}

	done := make(chan error, 1)
	go func() {
		done <- char.EnableNotifications(callback)
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = device.Disconnect()
		return ctx.Err()
	case <-timer.C:
		_ = device.Disconnect()
		return fmt.Errorf("timed out after %s", wait)
	}
}
