package ui

import "github.com/skobkin/wedgego/internal/scanner"

// ScanController is the scan session surface the demo window drives.
type ScanController interface {
	ScanOnce() *scanner.Request
	StartScanning() *scanner.Request
	StopScanning()
	Subscribe() *scanner.Subscription
	TestScan(success bool) (string, error)
}
