package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConnectorType identifies which transport backend reaches the on-device relay.
type ConnectorType string

const (
	ConnectorIP        ConnectorType = "ip"
	ConnectorBluetooth ConnectorType = "bluetooth"
	ConnectorSerial    ConnectorType = "serial"

	DefaultSerialBaud   = 115200
	DefaultIPPort       = 4403
	DefaultBluetoothMTU = 20

	DefaultProfileName      = "ReactNativeZebraScannerModule"
	DefaultScanAction       = "com.reactnativezebrascanner.BARCODE_SCANNED"
	DefaultPackageName      = "com.reactnativezebrascanner"
	DefaultScannerSelection = "auto"

	DefaultAPIListen     = "127.0.0.1:8765"
	DefaultRetentionDays = 30
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	Format    string `json:"format"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig contains connector-specific connection parameters.
type ConnectionConfig struct {
	Connector        ConnectorType `json:"connector"`
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	SerialPort       string        `json:"serial_port"`
	SerialBaud       int           `json:"serial_baud"`
	BluetoothAddress string        `json:"bluetooth_address"`
	BluetoothAdapter string        `json:"bluetooth_adapter"`
	BluetoothMTU     int           `json:"bluetooth_mtu"`
}

// ProfileConfig describes the DataWedge profile pushed on every activation.
type ProfileConfig struct {
	Name             string          `json:"name"`
	PackageName      string          `json:"package_name"`
	ScanAction       string          `json:"scan_action"`
	ScannerSelection string          `json:"scanner_selection"`
	Decoders         map[string]bool `json:"decoders"`
}

// ScannerConfig holds scan session behavior toggles.
type ScannerConfig struct {
	StopOnDeactivate bool `json:"stop_on_deactivate"`
}

// APIConfig controls the HTTP surface.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
}

// HistoryConfig controls the scan journal.
type HistoryConfig struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retention_days"`
}

// NotificationConfig stores per-event notification toggles.
type NotificationConfig struct {
	NotifyWhenFocused bool `json:"notify_when_focused"`
	Scanned           bool `json:"scanned"`
	ScannerStatus     bool `json:"scanner_status"`
	ConnectionStatus  bool `json:"connection_status"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection    ConnectionConfig   `json:"connection"`
	Logging       LoggingConfig      `json:"logging"`
	Profile       ProfileConfig      `json:"profile"`
	Scanner       ScannerConfig      `json:"scanner"`
	API           APIConfig          `json:"api"`
	History       HistoryConfig      `json:"history"`
	Notifications NotificationConfig `json:"notifications"`
}

// DefaultDecoders returns the decoder set enabled on the barcode plugin.
func DefaultDecoders() map[string]bool {
	return map[string]bool{
		"code39":  true,
		"code128": true,
		"ean13":   true,
		"upca":    true,
	}
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:    ConnectorIP,
			Port:         DefaultIPPort,
			SerialBaud:   DefaultSerialBaud,
			BluetoothMTU: DefaultBluetoothMTU,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Profile: ProfileConfig{
			Name:             DefaultProfileName,
			PackageName:      DefaultPackageName,
			ScanAction:       DefaultScanAction,
			ScannerSelection: DefaultScannerSelection,
			Decoders:         DefaultDecoders(),
		},
		API: APIConfig{
			Enabled: true,
			Listen:  DefaultAPIListen,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: DefaultRetentionDays,
		},
		Notifications: NotificationConfig{
			Scanned:          true,
			ScannerStatus:    true,
			ConnectionStatus: true,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Connection.Connector == "" {
		c.Connection.Connector = ConnectorIP
	}
	if c.Connection.Port <= 0 {
		c.Connection.Port = DefaultIPPort
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	if c.Connection.BluetoothMTU <= 0 {
		c.Connection.BluetoothMTU = DefaultBluetoothMTU
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = normalizeLogFormat(c.Logging.Format)
	if strings.TrimSpace(c.Profile.Name) == "" {
		c.Profile.Name = DefaultProfileName
	}
	if strings.TrimSpace(c.Profile.PackageName) == "" {
		c.Profile.PackageName = DefaultPackageName
	}
	if strings.TrimSpace(c.Profile.ScanAction) == "" {
		c.Profile.ScanAction = DefaultScanAction
	}
	if strings.TrimSpace(c.Profile.ScannerSelection) == "" {
		c.Profile.ScannerSelection = DefaultScannerSelection
	}
	if len(c.Profile.Decoders) == 0 {
		c.Profile.Decoders = DefaultDecoders()
	}
	if strings.TrimSpace(c.API.Listen) == "" {
		c.API.Listen = DefaultAPIListen
	}
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = DefaultRetentionDays
	}
}

func normalizeLogFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return "json"
	default:
		return "text"
	}
}

func (c AppConfig) Validate() error {
	switch c.Connection.Connector {
	case ConnectorIP:
		if strings.TrimSpace(c.Connection.Host) == "" {
			return errors.New("ip host is required")
		}
	case ConnectorSerial:
		if strings.TrimSpace(c.Connection.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Connection.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	case ConnectorBluetooth:
		if strings.TrimSpace(c.Connection.BluetoothAddress) == "" {
			return errors.New("bluetooth address is required")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}
	if strings.TrimSpace(c.Profile.ScanAction) == "" {
		return errors.New("profile scan action is required")
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
