//go:build !linux

package bluetoothutil

import "tinygo.org/x/bluetooth"

// Only BlueZ can address a specific controller.
func adapterByID(string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
