package bluetoothutil

import (
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestDBusErrorName(t *testing.T) {
	err := dbus.NewError(BlueZErrInProgress, nil)

	name, ok := DBusErrorName(fmt.Errorf("start discovery: %w", err))
	if !ok || name != BlueZErrInProgress {
		t.Fatalf("expected wrapped name %q, got %q (ok=%v)", BlueZErrInProgress, name, ok)
	}
	if _, ok := DBusErrorName(testErr("plain")); ok {
		t.Fatalf("plain error must not carry a dbus name")
	}
	if !IsDBusErrorName(err, BlueZErrInProgress) || IsDBusErrorName(err, BlueZErrFailed) {
		t.Fatalf("unexpected IsDBusErrorName result")
	}
}

func TestIsBenignStopScanError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: true},
		{name: "not ready", err: dbus.NewError(BlueZErrNotReady, nil), want: true},
		{name: "no discovery", err: dbus.NewError(BlueZErrFailed, []interface{}{"No discovery started"}), want: true},
		{name: "failed other", err: dbus.NewError(BlueZErrFailed, []interface{}{"Resource busy"}), want: false},
		{name: "cancelled text", err: testErr("scan cancelled"), want: true},
		{name: "serious", err: testErr("adapter vanished"), want: false},
	}

	for _, tc := range tests {
		if got := IsBenignStopScanError(tc.err); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsScanAlreadyInProgressError(t *testing.T) {
	if IsScanAlreadyInProgressError(nil) {
		t.Fatalf("nil should not match")
	}
	if !IsScanAlreadyInProgressError(dbus.NewError(BlueZErrInProgress, nil)) {
		t.Fatalf("dbus in-progress should match")
	}
	if !IsScanAlreadyInProgressError(testErr("Operation already in progress")) {
		t.Fatalf("text fallback should match")
	}
	if IsScanAlreadyInProgressError(testErr("another error")) {
		t.Fatalf("unexpected positive match")
	}
}

type testErr string

func (e testErr) Error() string {
	return string(e)
}
