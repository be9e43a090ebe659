package main

import (
	"testing"

	"github.com/skobkin/wedgego/internal/app"
)

func TestParseLaunchOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    launchOptions
		wantErr bool
	}{
		{name: "no flags", args: nil, want: launchOptions{}},
		{name: "tray only", args: []string{"--start-hidden"}, want: launchOptions{StartHidden: true}},
		{name: "simulated relay", args: []string{"-simulate", "--start-hidden"}, want: launchOptions{StartHidden: true, Simulate: true}},
		{name: "api disabled", args: []string{"-no-api"}, want: launchOptions{NoAPI: true}},
		{name: "version", args: []string{"-version"}, want: launchOptions{Version: true}},
		{name: "positional argument", args: []string{"scan"}, wantErr: true},
		{name: "unknown flag", args: []string{"--listen=:8080"}, wantErr: true},
	}

	for _, tc := range tests {
		got, err := parseLaunchOptions(tc.args)
		switch {
		case tc.wantErr && err == nil:
			t.Fatalf("%s: expected error for %v", tc.name, tc.args)
		case tc.wantErr:
			continue
		case err != nil:
			t.Fatalf("%s: parse %v: %v", tc.name, tc.args, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestVersionLine(t *testing.T) {
	if got := versionLine(app.BuildInfo{Name: "wedgego", Version: "v0.3.1", Date: "2026-01-02"}); got != "wedgego v0.3.1 (2026-01-02)" {
		t.Fatalf("unexpected version line %q", got)
	}
	if got := versionLine(app.BuildInfo{Name: "wedgego", Version: "dev"}); got != "wedgego dev" {
		t.Fatalf("unexpected version line without date %q", got)
	}
}
