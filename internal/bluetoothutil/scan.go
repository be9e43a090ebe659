package bluetoothutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

const DefaultDiscoverWait = 10 * time.Second

// Peripheral is a relay candidate seen during discovery.
type Peripheral struct {
	Address string
	Name    string
	RSSI    int16
}

func StopScan(adapter *bluetooth.Adapter) error {
	err := adapter.StopScan()
	if err != nil && !IsBenignStopScanError(err) {
		return err
	}

	return nil
}

func NormalizeScanError(err error) error {
	if err == nil || IsBenignStopScanError(err) {
		return nil
	}

	return err
}

// DiscoverRelays scans until ctx ends (or DefaultDiscoverWait without a deadline)
// and returns peripherals advertising the UART service, strongest signal first.
func DiscoverRelays(ctx context.Context, adapter *bluetooth.Adapter) ([]Peripheral, error) {
	if adapter == nil {
		return nil, errors.New("bluetooth adapter is nil")
	}
	if err := EnableAdapter(adapter); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	if err := StopScan(adapter); err != nil {
		return nil, fmt.Errorf("reset bluetooth scan state: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDiscoverWait)
		defer cancel()
	}

	var (
		mu    sync.Mutex
		found = make(map[string]Peripheral)
	)
	scanErrCh := make(chan error, 1)
	go func() {
		scanErrCh <- adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(UARTServiceUUID()) {
				return
			}
			addr := strings.ToUpper(result.Address.String())
			mu.Lock()
			found[addr] = Peripheral{Address: addr, Name: result.LocalName(), RSSI: result.RSSI}
			mu.Unlock()
		})
	}()

	<-ctx.Done()
	_ = StopScan(adapter)
	if err := NormalizeScanError(<-scanErrCh); err != nil {
		if IsScanAlreadyInProgressError(err) {
			return nil, fmt.Errorf("another bluetooth scan is running: %w", err)
		}
		return nil, fmt.Errorf("scan bluetooth devices: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Peripheral, 0, len(found))
	for _, p := range found {
		out = append(out, p)
	}
	sortPeripherals(out)

	return out, nil
}

func sortPeripherals(items []Peripheral) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].RSSI != items[j].RSSI {
			return items[i].RSSI > items[j].RSSI
		}
		return items[i].Address < items[j].Address
	})
}
