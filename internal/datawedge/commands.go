package datawedge

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Profile is the vendor-side configuration bundle pushed on every activation.
type Profile struct {
	Name             string
	PackageName      string
	ScanAction       string
	ScannerSelection string
	Decoders         map[string]bool
}

// Commands builds outbound configuration intents for a profile.
type Commands struct {
	Profile Profile
	// NextID produces COMMAND_IDENTIFIER values. Defaults to random UUIDs.
	NextID func() string
}

func NewCommands(profile Profile) *Commands {
	return &Commands{Profile: profile, NextID: uuid.NewString}
}

// ActivationSequence returns the idempotent configuration sequence in send order.
func (c *Commands) ActivationSequence() []Intent {
	return []Intent{
		c.CreateProfile(),
		c.SetBarcodeConfig(),
		c.SetIntentConfig(),
		c.RegisterNotification(),
		c.GetVersionInfo(),
	}
}

func (c *Commands) CreateProfile() Intent {
	return c.command(ExtraCreateProfile, c.Profile.Name)
}

// SetBarcodeConfig enables the barcode plugin with the configured decoders.
func (c *Commands) SetBarcodeConfig() Intent {
	params := Bundle{
		"scanner_selection":     c.scannerSelection(),
		"scanner_input_enabled": "true",
	}
	decoders := normalizeDecoders(c.Profile.Decoders)
	for _, name := range sortedKeys(decoders) {
		params["decoder_"+name] = boolString(decoders[name])
	}

	cfg := c.profileBundle()
	cfg["PLUGIN_CONFIG"] = Bundle{
		"PLUGIN_NAME":  "BARCODE",
		"RESET_CONFIG": "true",
		"PARAM_LIST":   params,
	}

	return c.command(ExtraSetConfig, cfg)
}

// SetIntentConfig routes decoded data to ScanAction via sendBroadcast.
func (c *Commands) SetIntentConfig() Intent {
	cfg := c.profileBundle()
	cfg["PLUGIN_CONFIG"] = Bundle{
		"PLUGIN_NAME":  "INTENT",
		"RESET_CONFIG": "false",
		"PARAM_LIST": Bundle{
			"intent_output_enabled": "true",
			"intent_action":         c.Profile.ScanAction,
			"intent_delivery":       IntentDeliveryBroadcast,
		},
	}

	return c.command(ExtraSetConfig, cfg)
}

func (c *Commands) RegisterNotification() Intent {
	return c.command(ExtraRegisterNotification, c.notificationBundle())
}

func (c *Commands) UnregisterNotification() Intent {
	return c.command(ExtraUnregisterNotification, c.notificationBundle())
}

func (c *Commands) GetVersionInfo() Intent {
	return c.command(ExtraGetVersionInfo, "")
}

func (c *Commands) profileBundle() Bundle {
	return Bundle{
		"PROFILE_NAME":    c.Profile.Name,
		"PROFILE_ENABLED": "true",
		"CONFIG_MODE":     "CREATE_IF_NOT_EXIST",
		"APP_LIST": []Bundle{{
			"PACKAGE_NAME":  c.Profile.PackageName,
			"ACTIVITY_LIST": []string{"*"},
		}},
	}
}

func (c *Commands) notificationBundle() Bundle {
	return Bundle{
		ExtraApplicationName:  c.Profile.PackageName,
		ExtraNotificationType: NotificationTypeScannerStatus,
	}
}

func (c *Commands) command(extra string, value any) Intent {
	in := NewIntent(ActionAPI)
	in.Extras[extra] = value
	in.Extras[ExtraSendResult] = "true"
	in.Extras[ExtraCommandIdentifier] = c.nextID()
	return in
}

func (c *Commands) nextID() string {
	if c.NextID == nil {
		return uuid.NewString()
	}
	return c.NextID()
}

func (c *Commands) scannerSelection() string {
	if v := strings.TrimSpace(c.Profile.ScannerSelection); v != "" {
		return v
	}
	return "auto"
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func normalizeDecoders(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for name, enabled := range in {
		name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "decoder_")
		if name == "" {
			continue
		}
		out[name] = enabled
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
