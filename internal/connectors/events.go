package connectors

import "time"

// ConnectionState describes the intent link lifecycle state.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus is a bus event snapshot of current link status.
type ConnectionStatus struct {
	State         ConnectionState `json:"state"`
	Err           string          `json:"error,omitempty"`
	TransportName string          `json:"transport"`
	Target        string          `json:"target,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// RawFrame carries frame diagnostics for debug/log views.
type RawFrame struct {
	Hex string
	Len int
}

// BarcodeScanned is the continuous-session event delivered to application listeners.
type BarcodeScanned struct {
	Barcode string `json:"barcode"`
}

// ScanMode tells which request kinds a scan was routed to.
type ScanMode string

const (
	ScanModeSingle     ScanMode = "single"
	ScanModeContinuous ScanMode = "continuous"
	ScanModeUnclaimed  ScanMode = "unclaimed"
)

// ScanRecord describes one accepted scan, for the journal and notifications.
type ScanRecord struct {
	Barcode   string    `json:"barcode"`
	Symbology string    `json:"symbology,omitempty"`
	Source    string    `json:"source,omitempty"`
	Mode      ScanMode  `json:"mode"`
	At        time.Time `json:"at"`
}

// ScannerStatus is a SCANNER_STATUS notification from the scanner subsystem.
type ScannerStatus struct {
	Status      string    `json:"status"`
	ProfileName string    `json:"profile_name,omitempty"`
	At          time.Time `json:"at"`
}

// CommandResult is a result reply for a configuration command.
type CommandResult struct {
	Command    string
	Identifier string
	Result     string
	Info       map[string]any
	At         time.Time
}

// VersionInfo is the scanner subsystem version reported on activation.
type VersionInfo struct {
	DataWedge   string `json:"datawedge"`
	Supported   bool   `json:"supported"`
	MinRequired string `json:"min_required"`
}

// SessionState is published whenever continuous scanning or activation changes.
type SessionState struct {
	Active     bool `json:"active"`
	Continuous bool `json:"continuous"`
}
