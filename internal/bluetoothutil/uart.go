package bluetoothutil

import (
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// The relay exposes intents over the Nordic UART service: the host writes to RX
// and receives TX notifications.
var (
	uartServiceUUID = mustParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	uartRXUUID      = mustParseUUID("6e400002-b5a3-f393-e0a9-e50e24dcca9e")
	uartTXUUID      = mustParseUUID("6e400003-b5a3-f393-e0a9-e50e24dcca9e")
)

func mustParseUUID(raw string) bluetooth.UUID {
	uuid, err := bluetooth.ParseUUID(strings.TrimSpace(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid bluetooth UUID %q: %v", raw, err))
	}

	return uuid
}

func UARTServiceUUID() bluetooth.UUID {
	return uartServiceUUID
}

func UARTRXUUID() bluetooth.UUID {
	return uartRXUUID
}

func UARTTXUUID() bluetooth.UUID {
	return uartTXUUID
}
