package datawedge

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Scan is decoded barcode output.
type Scan struct {
	Data      string
	LabelType string
	Source    string
}

// ParseScan extracts barcode output from an intent delivered on scanAction.
// ok is false for any other action or when the data extra is missing.
func ParseScan(in Intent, scanAction string) (Scan, bool) {
	if in.Action == "" || in.Action != scanAction {
		return Scan{}, false
	}
	data, ok := in.StringExtra(ExtraDataString)
	if !ok {
		return Scan{}, false
	}
	labelType, _ := in.StringExtra(ExtraLabelType)
	source, _ := in.StringExtra(ExtraSource)

	return Scan{
		Data:      data,
		LabelType: strings.TrimPrefix(labelType, "LABEL-TYPE-"),
		Source:    source,
	}, true
}

// ScannerStatus is a decoded SCANNER_STATUS notification.
type ScannerStatus struct {
	Status      string
	ProfileName string
}

func ParseScannerStatus(in Intent) (ScannerStatus, bool) {
	if in.Action != ActionNotification {
		return ScannerStatus{}, false
	}
	note, ok := in.Extras.Bundle(ExtraNotification)
	if !ok {
		return ScannerStatus{}, false
	}
	if kind, _ := note.String(ExtraNotificationType); kind != NotificationTypeScannerStatus {
		return ScannerStatus{}, false
	}
	status, ok := note.String(ExtraStatus)
	if !ok || strings.TrimSpace(status) == "" {
		return ScannerStatus{}, false
	}
	profile, _ := note.String(ExtraProfileName)

	return ScannerStatus{Status: strings.ToUpper(strings.TrimSpace(status)), ProfileName: profile}, true
}

// CommandResult is a decoded reply to a command sent with SEND_RESULT.
type CommandResult struct {
	Command    string
	Identifier string
	Result     string
	Info       Bundle
}

func (r CommandResult) Failed() bool {
	return strings.EqualFold(r.Result, ResultFailure)
}

func ParseCommandResult(in Intent) (CommandResult, bool) {
	if in.Action != ActionResult {
		return CommandResult{}, false
	}
	result, ok := in.StringExtra(ExtraResult)
	if !ok {
		return CommandResult{}, false
	}
	command, _ := in.StringExtra(ExtraCommand)
	id, _ := in.StringExtra(ExtraCommandIdentifier)
	info, _ := in.Extras.Bundle(ExtraResultInfo)

	return CommandResult{Command: command, Identifier: id, Result: result, Info: info}, true
}

// ParseVersionInfo returns the scanner subsystem version from a GET_VERSION_INFO reply.
func ParseVersionInfo(in Intent) (string, bool) {
	if in.Action != ActionResult {
		return "", false
	}
	info, ok := in.Extras.Bundle(ExtraResultVersionInfo)
	if !ok {
		return "", false
	}
	version, ok := info.String(VersionInfoDataWedgeKey)
	if !ok || strings.TrimSpace(version) == "" {
		return "", false
	}
	return strings.TrimSpace(version), true
}

var versionPrefix = regexp.MustCompile(`^\d+(\.\d+){0,2}`)

// CanonicalVersion turns a vendor version string such as "8.2.48" into a
// semver string ("v8.2.48"). It returns "" when no numeric prefix is found.
func CanonicalVersion(raw string) string {
	m := versionPrefix.FindString(strings.TrimPrefix(strings.TrimSpace(raw), "v"))
	if m == "" {
		return ""
	}
	v := "v" + m
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// VersionSupported reports whether raw is at least MinimumVersion.
func VersionSupported(raw string) bool {
	v := CanonicalVersion(raw)
	if v == "" {
		return false
	}
	return semver.Compare(v, CanonicalVersion(MinimumVersion)) >= 0
}
