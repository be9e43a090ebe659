package app

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/skobkin/wedgego/internal/config"
	"github.com/skobkin/wedgego/internal/connectors"
)

func TransportNameFromConnector(connector config.ConnectorType) string {
	switch connector {
	case config.ConnectorIP:
		return "ip"
	case config.ConnectorSerial:
		return "serial"
	case config.ConnectorBluetooth:
		return "bluetooth"
	default:
		if value := strings.TrimSpace(string(connector)); value != "" {
			return value
		}
		return "unknown"
	}
}

func ConnectionTarget(cfg config.ConnectionConfig) string {
	switch cfg.Connector {
	case config.ConnectorIP:
		host := strings.TrimSpace(cfg.Host)
		if host == "" {
			return ""
		}
		port := cfg.Port
		if port <= 0 {
			port = config.DefaultIPPort
		}
		return net.JoinHostPort(host, strconv.Itoa(port))
	case config.ConnectorSerial:
		port := strings.TrimSpace(cfg.SerialPort)
		if port == "" || cfg.SerialBaud <= 0 {
			return port
		}
		return fmt.Sprintf("%s@%d", port, cfg.SerialBaud)
	case config.ConnectorBluetooth:
		return strings.ToUpper(strings.TrimSpace(cfg.BluetoothAddress))
	default:
		return ""
	}
}

func ConnectionStatusFromConfig(cfg config.ConnectionConfig) connectors.ConnectionStatus {
	status := connectors.ConnectionStatus{
		State:         connectors.ConnectionStateDisconnected,
		TransportName: TransportNameFromConnector(cfg.Connector),
		Target:        ConnectionTarget(cfg),
	}
	if status.Target != "" {
		status.State = connectors.ConnectionStateConnecting
	}

	return status
}
