package datawedge

import (
	"fmt"
	"testing"
)

func testCommands() *Commands {
	n := 0
	c := NewCommands(Profile{
		Name:        "ReactNativeZebraScannerModule",
		PackageName: "com.example.app",
		ScanAction:  "com.example.SCAN",
		Decoders:    map[string]bool{"code39": true, "Code128": true, "ean13": true, "upca": true, "qrcode": false},
	})
	c.NextID = func() string {
		n++
		return fmt.Sprintf("cmd-%d", n)
	}
	return c
}

func TestActivationSequenceOrder(t *testing.T) {
	seq := testCommands().ActivationSequence()
	want := []string{ExtraCreateProfile, ExtraSetConfig, ExtraSetConfig, ExtraRegisterNotification, ExtraGetVersionInfo}
	if len(seq) != len(want) {
		t.Fatalf("unexpected sequence length: %d", len(seq))
	}
	for i, in := range seq {
		if in.Action != ActionAPI {
			t.Fatalf("intent %d: unexpected action %q", i, in.Action)
		}
		if !in.Extras.Has(want[i]) {
			t.Fatalf("intent %d: expected extra %q, got %v", i, want[i], in.Keys())
		}
		if got, _ := in.StringExtra(ExtraSendResult); got != "true" {
			t.Fatalf("intent %d: expected SEND_RESULT=true, got %q", i, got)
		}
		if got, _ := in.StringExtra(ExtraCommandIdentifier); got != fmt.Sprintf("cmd-%d", i+1) {
			t.Fatalf("intent %d: unexpected command id %q", i, got)
		}
	}
}

func TestSetBarcodeConfigDecoders(t *testing.T) {
	in := testCommands().SetBarcodeConfig()
	cfg, ok := in.Extras.Bundle(ExtraSetConfig)
	if !ok {
		t.Fatalf("expected SET_CONFIG bundle")
	}
	if got, _ := cfg.String("PROFILE_NAME"); got != "ReactNativeZebraScannerModule" {
		t.Fatalf("unexpected profile name %q", got)
	}
	if got, _ := cfg.String("CONFIG_MODE"); got != "CREATE_IF_NOT_EXIST" {
		t.Fatalf("unexpected config mode %q", got)
	}
	plugin, _ := cfg.Bundle("PLUGIN_CONFIG")
	if got, _ := plugin.String("PLUGIN_NAME"); got != "BARCODE" {
		t.Fatalf("unexpected plugin %q", got)
	}
	params, _ := plugin.Bundle("PARAM_LIST")
	for key, want := range map[string]string{
		"scanner_selection":     "auto",
		"scanner_input_enabled": "true",
		"decoder_code39":        "true",
		"decoder_code128":       "true",
		"decoder_ean13":         "true",
		"decoder_upca":          "true",
		"decoder_qrcode":        "false",
	} {
		if got, _ := params.String(key); got != want {
			t.Fatalf("param %s: got %q, want %q", key, got, want)
		}
	}
	apps, ok := cfg["APP_LIST"].([]Bundle)
	if !ok || len(apps) != 1 {
		t.Fatalf("unexpected app list: %#v", cfg["APP_LIST"])
	}
	if got, _ := apps[0].String("PACKAGE_NAME"); got != "com.example.app" {
		t.Fatalf("unexpected package %q", got)
	}
}

func TestSetIntentConfigRoutesToScanAction(t *testing.T) {
	in := testCommands().SetIntentConfig()
	cfg, _ := in.Extras.Bundle(ExtraSetConfig)
	plugin, _ := cfg.Bundle("PLUGIN_CONFIG")
	if got, _ := plugin.String("PLUGIN_NAME"); got != "INTENT" {
		t.Fatalf("unexpected plugin %q", got)
	}
	if got, _ := plugin.String("RESET_CONFIG"); got != "false" {
		t.Fatalf("intent plugin must not reset config, got %q", got)
	}
	params, _ := plugin.Bundle("PARAM_LIST")
	if got, _ := params.String("intent_action"); got != "com.example.SCAN" {
		t.Fatalf("unexpected intent action %q", got)
	}
	if got, _ := params.String("intent_delivery"); got != IntentDeliveryBroadcast {
		t.Fatalf("unexpected delivery %q", got)
	}
}

func TestUnregisterNotificationUsesAPIAction(t *testing.T) {
	in := testCommands().UnregisterNotification()
	if in.Action != ActionAPI {
		t.Fatalf("unexpected action %q", in.Action)
	}
	note, ok := in.Extras.Bundle(ExtraUnregisterNotification)
	if !ok {
		t.Fatalf("expected unregister bundle")
	}
	if got, _ := note.String(ExtraApplicationName); got != "com.example.app" {
		t.Fatalf("unexpected application name %q", got)
	}
	if got, _ := note.String(ExtraNotificationType); got != NotificationTypeScannerStatus {
		t.Fatalf("unexpected notification type %q", got)
	}
}
