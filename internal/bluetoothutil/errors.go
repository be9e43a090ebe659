package bluetoothutil

import (
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"
)

// BlueZ D-Bus error names seen while starting and stopping discovery.
const (
	BlueZErrNotReady   = "org.bluez.Error.NotReady"
	BlueZErrFailed     = "org.bluez.Error.Failed"
	BlueZErrInProgress = "org.bluez.Error.InProgress"
)

// DBusErrorName returns the D-Bus error name wrapped in err, if any.
func DBusErrorName(err error) (string, bool) {
	var ptr *dbus.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Name, true
	}
	var val dbus.Error
	if errors.As(err, &val) {
		return val.Name, true
	}

	return "", false
}

func IsDBusErrorName(err error, want string) bool {
	name, ok := DBusErrorName(err)

	return ok && name == want
}

// IsBenignStopScanError reports errors meaning discovery was not running.
func IsBenignStopScanError(err error) bool {
	if err == nil {
		return true
	}

	msg := strings.ToLower(err.Error())
	switch name, _ := DBusErrorName(err); name {
	case BlueZErrNotReady:
		return true
	case BlueZErrFailed:
		return strings.Contains(msg, "no discovery started")
	}

	for _, marker := range []string{"cancel", "stopped", "not scanning", "no scan in progress"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

func IsScanAlreadyInProgressError(err error) bool {
	if err == nil {
		return false
	}

	return IsDBusErrorName(err, BlueZErrInProgress) ||
		strings.Contains(strings.ToLower(err.Error()), "already in progress")
}
