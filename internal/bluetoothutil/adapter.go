package bluetoothutil

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"tinygo.org/x/bluetooth"
)

// NormalizeAdapterID maps a bare controller index such as "1" to its BlueZ
// name "hci1". Empty input selects the default adapter.
func NormalizeAdapterID(adapterID string) string {
	trimmed := strings.TrimSpace(adapterID)
	if trimmed == "" {
		return ""
	}
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 0 {
		return "hci" + strconv.Itoa(n)
	}

	return strings.ToLower(trimmed)
}

// ResolveAdapter returns the adapter for adapterID without enabling it.
func ResolveAdapter(adapterID string) *bluetooth.Adapter {
	return adapterByID(NormalizeAdapterID(adapterID))
}

// OpenAdapter resolves and enables the adapter the relay is reached through.
func OpenAdapter(adapterID string) (*bluetooth.Adapter, error) {
	adapter := ResolveAdapter(adapterID)
	if err := EnableAdapter(adapter); err != nil {
		name := NormalizeAdapterID(adapterID)
		if name == "" {
			name = "default"
		}

		return nil, fmt.Errorf("enable bluetooth adapter %s: %w", name, err)
	}

	return adapter, nil
}

func EnableAdapter(adapter *bluetooth.Adapter) error {
	if adapter == nil {
		return fmt.Errorf("bluetooth adapter is nil")
	}
	if err := adapter.Enable(); err != nil && !alreadyInitialized(runtime.GOOS, err) {
		return err
	}

	return nil
}

// alreadyInitialized reports the Windows RoInitialize S_FALSE result, which the
// bluetooth package surfaces as "Incorrect function." when COM is already up.
func alreadyInitialized(goos string, err error) bool {
	if err == nil || goos != "windows" {
		return false
	}

	msg := strings.TrimSuffix(strings.TrimSpace(strings.ToLower(err.Error())), ".")

	return msg == "incorrect function"
}
