//go:build linux

package bluetoothutil

import "tinygo.org/x/bluetooth"

func adapterByID(id string) *bluetooth.Adapter {
	if id == "" {
		return bluetooth.DefaultAdapter
	}

	return bluetooth.NewAdapter(id)
}
